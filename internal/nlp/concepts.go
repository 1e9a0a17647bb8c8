package nlp

import (
	"strings"

	"github.com/hashicorp/go-set/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/project-euler/queryassist/internal/vocab"
)

// DefaultConceptCacheSize bounds the concept cache when no size is configured
const DefaultConceptCacheSize = 256

// FallbackConcept is used when nothing in the context names a field
const FallbackConcept = "balance"

// ConceptCache remembers concept guesses per normalised context. Guessing is
// deterministic, so the cache never changes what a prompt parses to.
type ConceptCache struct {
	cache *lru.Cache[string, conceptGuess]
}

type conceptGuess struct {
	concept   string
	confident bool
}

// NewConceptCache creates a cache holding at most size contexts
func NewConceptCache(size int) (*ConceptCache, error) {
	if size <= 0 {
		size = DefaultConceptCacheSize
	}
	c, err := lru.New[string, conceptGuess](size)
	if err != nil {
		return nil, err
	}
	return &ConceptCache{cache: c}, nil
}

// Len returns the number of cached contexts
func (c *ConceptCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached guess
func (c *ConceptCache) Purge() {
	c.cache.Purge()
}

var (
	loanWords    = set.From([]string{"loan", "loans", "mortgage", "mortgages"})
	depositWords = set.From([]string{"checking", "account", "accounts", "deposit", "deposits", "savings", "dda"})
	rateWords    = set.From([]string{"rate", "rates", "interest", "apr", "yield"})
	paymentWords = set.From([]string{"payment", "payments", "installment", "installments"})
	termWords    = set.From([]string{"term", "terms", "months", "tenor", "duration"})
)

type domainRule struct {
	entity  *set.Set[string]
	words   *set.Set[string]
	concept string
}

// domainRules are keyed by the entity named near the comparison. A rule with
// no words applies only when no other field word is present.
var domainRules = []domainRule{
	{loanWords, rateWords, "rate"},
	{loanWords, paymentWords, "payment"},
	{loanWords, termWords, "term"},
	{loanWords, nil, "principal"},
	{depositWords, rateWords, "rate"},
	{depositWords, nil, "balance"},
}

// conceptFor guesses from the local clause, widens to the fragment prefix,
// then inherits the previous comparison's concept before falling back
func (p *Parser) conceptFor(local, prefix, previous string) string {
	if c, ok := p.guess(local); ok {
		return c
	}
	if prefix != "" && prefix != local {
		if c, ok := p.guess(prefix); ok {
			return c
		}
	}
	if previous != "" {
		return previous
	}
	return FallbackConcept
}

func (p *Parser) guess(context string) (string, bool) {
	tokens := vocab.Tokenize(context)
	key := strings.Join(tokens, " ")
	if p.concepts != nil {
		if g, ok := p.concepts.cache.Get(key); ok {
			return g.concept, g.confident
		}
	}
	concept, confident := guessConcept(tokens)
	if p.concepts != nil {
		p.concepts.cache.Add(key, conceptGuess{concept: concept, confident: confident})
	}
	return concept, confident
}

// guessConcept applies the layers in order: domain rules keyed by entity
// words, noun adjuncts, nearest keyword, fallback. confident is false only for
// the fallback.
func guessConcept(tokens []string) (string, bool) {
	if c, ok := domainConcept(tokens); ok {
		return c, true
	}
	if c, ok := adjunctConcept(tokens); ok {
		return c, true
	}
	if c, ok := nearestKeyword(tokens); ok {
		return c, true
	}
	return FallbackConcept, false
}

func domainConcept(tokens []string) (string, bool) {
	for _, rule := range domainRules {
		if !containsAny(rule.entity, tokens) {
			continue
		}
		if rule.words == nil {
			if !hasFieldWord(tokens) {
				return rule.concept, true
			}
			continue
		}
		if containsAny(rule.words, tokens) {
			return rule.concept, true
		}
	}
	return "", false
}

// adjunctConcept reads "branch number" as "branch"
func adjunctConcept(tokens []string) (string, bool) {
	for i := len(tokens) - 1; i > 0; i-- {
		if !vocab.NounAdjuncts.Contains(tokens[i]) {
			continue
		}
		head := tokens[i-1]
		if vocab.NounAdjuncts.Contains(head) || !isDomainWord(head) {
			continue
		}
		return vocab.Stem(head), true
	}
	return "", false
}

// nearestKeyword walks back from the comparison to the closest field word
func nearestKeyword(tokens []string) (string, bool) {
	for i := len(tokens) - 1; i >= 0; i-- {
		tok := tokens[i]
		if c, ok := vocab.ConceptKeywords[tok]; ok {
			return c, true
		}
		if isEntityWord(tok) {
			continue
		}
		if g := vocab.GroupContaining(tok); g != nil {
			return g[0], true
		}
	}
	return "", false
}

func hasFieldWord(tokens []string) bool {
	for _, tok := range tokens {
		if _, ok := vocab.ConceptKeywords[tok]; ok {
			return true
		}
		if isEntityWord(tok) {
			continue
		}
		if len(vocab.GroupsOf(tok)) > 0 {
			return true
		}
	}
	return false
}

func isDomainWord(tok string) bool {
	if _, ok := vocab.ConceptKeywords[tok]; ok {
		return true
	}
	return isEntityWord(tok) || len(vocab.GroupsOf(tok)) > 0
}

func isEntityWord(tok string) bool {
	_, ok := vocab.EntityAliases[tok]
	return ok || loanWords.Contains(tok) || depositWords.Contains(tok)
}

func containsAny(s *set.Set[string], tokens []string) bool {
	for _, tok := range tokens {
		if s.Contains(tok) {
			return true
		}
	}
	return false
}
