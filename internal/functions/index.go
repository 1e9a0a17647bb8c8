package functions

import (
	"strings"

	"github.com/hashicorp/go-set/v2"

	"github.com/project-euler/queryassist/internal/vocab"
)

var descriptionStopwords = set.From([]string{
	"a", "an", "the", "of", "on", "in", "to", "for", "and", "or", "its", "it", "is", "by",
	"with", "from", "at", "as", "over", "across", "until", "per", "each", "into",
})

var keywordSynonyms = map[string][]string{
	"profit":    {"earnings"},
	"earnings":  {"profit"},
	"interest":  {"rate"},
	"rate":      {"interest"},
	"balance":   {"principal"},
	"principal": {"balance"},
}

type indexedFunction struct {
	library  string
	fn       *Function
	phrases  []string
	declared *set.Set[string]
	keywords *set.Set[string]
	name     string
}

type keywordIndex struct {
	functions []indexedFunction
	phrases   []string
	all       *set.Set[string]
}

// keywordIndex returns the cached index, building it once for concurrent callers
func (r *Registry) keywordIndex() *keywordIndex {
	r.mu.RLock()
	idx := r.index
	r.mu.RUnlock()
	if idx != nil {
		return idx
	}

	v, _, _ := r.build.Do("index", func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.index == nil {
			r.index = buildIndex(r.entries)
			r.logger.Debug("keyword index built", "functions", len(r.entries))
		}
		return r.index, nil
	})
	return v.(*keywordIndex)
}

func buildIndex(entries []entry) *keywordIndex {
	idx := &keywordIndex{all: set.New[string](64)}
	seenPhrase := set.New[string](16)

	for _, e := range entries {
		f := indexedFunction{
			library:  e.library,
			fn:       e.fn,
			declared: set.New[string](8),
			keywords: set.New[string](16),
			name:     strings.ToLower(e.fn.Name),
		}

		for _, kw := range e.fn.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			f.phrases = append(f.phrases, kw)
			f.declared.Insert(kw)
			for _, tok := range strings.Fields(kw) {
				f.declared.Insert(tok)
			}
		}

		f.declared.Insert(f.name)
		for _, tok := range vocab.Tokenize(e.fn.Name) {
			f.declared.Insert(tok)
		}

		f.keywords.InsertSlice(f.declared.Slice())
		for _, word := range vocab.Tokenize(e.fn.Description) {
			if descriptionStopwords.Contains(word) || len(word) < 2 {
				continue
			}
			for _, variant := range wordVariants(word) {
				f.keywords.Insert(variant)
			}
		}

		idx.functions = append(idx.functions, f)
		idx.all.InsertSlice(f.keywords.Slice())
		for _, p := range f.phrases {
			if seenPhrase.Insert(p) {
				idx.phrases = append(idx.phrases, p)
			}
		}
		for _, tok := range vocab.Tokenize(e.fn.Name) {
			if len(tok) > 3 && seenPhrase.Insert(tok) {
				idx.phrases = append(idx.phrases, tok)
			}
		}
	}
	return idx
}

// wordVariants expands a description word with plural/singular forms and synonyms
func wordVariants(word string) []string {
	out := []string{word}
	stem := vocab.Stem(word)
	if stem != word {
		out = append(out, stem)
	} else if !strings.HasSuffix(word, "s") {
		out = append(out, word+"s")
	}
	for _, base := range []string{word, stem} {
		out = append(out, keywordSynonyms[base]...)
	}
	return out
}

// Keywords returns the declared keyword phrases and name pieces, for substring
// scanning of prompts
func (r *Registry) Keywords() []string {
	return append([]string(nil), r.keywordIndex().phrases...)
}

// HasKeyword reports whether the term is anywhere in the keyword index
func (r *Registry) HasKeyword(term string) bool {
	return r.keywordIndex().all.Contains(strings.ToLower(strings.TrimSpace(term)))
}

// FindBestFunctionByPrompt scores every function against the prompt and
// returns the highest scorer, or nil when nothing scores. Functions whose
// declared entities miss every target entity are skipped.
func (r *Registry) FindBestFunctionByPrompt(text string, targetEntities []string) *Match {
	prompt := strings.ToLower(text)
	tokens := uniqueTokens(prompt)
	targets := set.From(targetEntities)

	idx := r.keywordIndex()
	var best *indexedFunction
	bestScore := 0
	for i := range idx.functions {
		f := &idx.functions[i]
		if targets.Size() > 0 && len(f.fn.Entities) > 0 && !sharesAny(targets, f.fn.Entities) {
			continue
		}
		score := scoreFunction(f, prompt, tokens)
		if score > bestScore {
			best, bestScore = f, score
		}
	}
	if best == nil {
		return nil
	}
	return &Match{
		Library:      best.library,
		FunctionName: best.fn.Name,
		Function:     best.fn,
		Entities:     best.fn.Entities,
		ReturnType:   best.fn.ReturnType,
		Score:        bestScore,
	}
}

func scoreFunction(f *indexedFunction, prompt string, tokens []string) int {
	score := 0
	for _, phrase := range f.phrases {
		if strings.Contains(prompt, phrase) {
			score += 3
		}
	}
	nameBonus := false
	for _, tok := range tokens {
		if f.keywords.Contains(tok) {
			if f.declared.Contains(tok) {
				score += 2
			} else {
				score++
			}
		}
		if len(tok) > 3 && strings.Contains(f.name, tok) {
			nameBonus = true
		}
	}
	if nameBonus {
		score += 3
	}
	return score
}

func uniqueTokens(prompt string) []string {
	seen := set.New[string](8)
	var out []string
	for _, tok := range vocab.Tokenize(prompt) {
		if seen.Insert(tok) {
			out = append(out, tok)
		}
	}
	return out
}

func sharesAny(s *set.Set[string], items []string) bool {
	for _, it := range items {
		if s.Contains(it) {
			return true
		}
	}
	return false
}
