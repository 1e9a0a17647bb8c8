// Package translator converts human-readable names (branch names, officer
// names) into the numeric codes stored in the data.
package translator

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Options carries per-type metadata supplied at registration
type Options struct {
	Synonyms []string `json:"synonyms,omitempty"`
}

// Match is a registered name found in free text
type Match struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Code  int    `json:"code"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Entry is a snapshot of one translator type
type Entry struct {
	Type     string         `json:"type"`
	Names    map[string]int `json:"names"`
	Synonyms []string       `json:"synonyms"`
}

// Registry maps type -> lowercased name -> code. Entries are only ever added;
// registering a type again merges into it.
type Registry struct {
	mu       sync.RWMutex
	names    map[string]map[string]int
	synonyms map[string][]string
	order    []string
	// whole-word pattern per name, compiled once at registration
	patterns map[string]*regexp.Regexp
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		names:    make(map[string]map[string]int),
		synonyms: make(map[string][]string),
		patterns: make(map[string]*regexp.Regexp),
	}
}

// Register merges name->code pairs into the given type
func (r *Registry) Register(typ string, nameToCode map[string]int, opts Options) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.names[typ]
	if !ok {
		m = make(map[string]int)
		r.names[typ] = m
		r.order = append(r.order, typ)
	}
	for name, code := range nameToCode {
		key := normalizeName(name)
		if key == "" {
			continue
		}
		m[key] = code
		if _, ok := r.patterns[key]; !ok {
			r.patterns[key] = regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`)
		}
	}

	for _, syn := range opts.Synonyms {
		syn = strings.ToLower(strings.TrimSpace(syn))
		if syn != "" && !contains(r.synonyms[typ], syn) {
			r.synonyms[typ] = append(r.synonyms[typ], syn)
		}
	}
}

// Lookup resolves a name of the given type to its code, case-insensitively.
// The type may also be one of the type's synonyms.
func (r *Registry) Lookup(typ, name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.names[r.resolveTypeLocked(typ)]
	if !ok {
		return 0, false
	}
	code, ok := m[normalizeName(name)]
	return code, ok
}

// Synonyms returns the synonym list registered for a type
func (r *Registry) Synonyms(typ string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.synonyms[r.resolveTypeLocked(typ)]...)
}

// Types lists the registered types in registration order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Entries returns a copy of every type for listing
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, typ := range r.order {
		names := make(map[string]int, len(r.names[typ]))
		for k, v := range r.names[typ] {
			names[k] = v
		}
		out = append(out, Entry{Type: typ, Names: names, Synonyms: append([]string(nil), r.synonyms[typ]...)})
	}
	return out
}

// FindInText returns every registered name that appears in the text as whole
// words. Longer names win over names they contain; matches are ordered by
// position.
func (r *Registry) FindInText(text string) []Match {
	lower := strings.ToLower(text)

	r.mu.RLock()
	type candidate struct {
		typ, name string
		code      int
		re        *regexp.Regexp
	}
	var candidates []candidate
	for _, typ := range r.order {
		for name, code := range r.names[typ] {
			if strings.Contains(lower, name) {
				candidates = append(candidates, candidate{typ, name, code, r.patterns[name]})
			}
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		if len(candidates[i].name) != len(candidates[j].name) {
			return len(candidates[i].name) > len(candidates[j].name)
		}
		if candidates[i].typ != candidates[j].typ {
			return candidates[i].typ < candidates[j].typ
		}
		return candidates[i].name < candidates[j].name
	})

	taken := make([]bool, len(lower))
	var matches []Match
	for _, c := range candidates {
		for _, loc := range c.re.FindAllStringIndex(lower, -1) {
			if overlaps(taken, loc[0], loc[1]) {
				continue
			}
			for i := loc[0]; i < loc[1]; i++ {
				taken[i] = true
			}
			matches = append(matches, Match{Type: c.typ, Name: c.name, Code: c.code, Start: loc[0], End: loc[1]})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	return matches
}

// Suggest returns the closest registered name of a type when no exact match
// exists, if it is similar enough
func (r *Registry) Suggest(typ, name string, threshold float64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := normalizeName(name)
	best, bestScore := "", 0.0
	jw := metrics.NewJaroWinkler()
	for candidate := range r.names[r.resolveTypeLocked(typ)] {
		score := strutil.Similarity(key, candidate, jw)
		if score > bestScore || (score == bestScore && candidate < best) {
			best, bestScore = candidate, score
		}
	}
	if best == "" || bestScore < threshold {
		return "", false
	}
	return best, true
}

func (r *Registry) resolveTypeLocked(typ string) string {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if _, ok := r.names[typ]; ok {
		return typ
	}
	for _, t := range r.order {
		if contains(r.synonyms[t], typ) {
			return t
		}
	}
	return typ
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func overlaps(taken []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if taken[i] {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
