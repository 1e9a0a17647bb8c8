// Package vocab holds the static domain vocabulary: semantic groups of
// synonymous banking terms, entity aliases, noun adjuncts and the word lists the
// prompt parser keys on.
package vocab

import (
	"strings"
	"unicode"
)

// SemanticGroups lists families of interchangeable terms. Order is stable and
// used as a tie-break where a word belongs to several families.
var SemanticGroups = [][]string{
	{"branch", "location", "office", "site", "center", "centre", "region", "brn"},
	{"officer", "rm", "manager", "banker", "advisor", "adviser", "relationship", "lender", "agent"},
	{"principal", "balance", "amount", "outstanding", "value", "amt", "bal", "exposure"},
	{"rate", "interest", "apr", "yield", "coupon"},
	{"open", "opened", "opening", "origination", "originated", "start", "issue", "issued", "booked"},
	{"close", "closed", "closing", "end", "terminated"},
	{"maturity", "matured", "mature", "expiration", "expiry", "due"},
	{"customer", "client", "portfolio", "holder", "member", "id", "identifier", "cif"},
	{"type", "category", "product", "class", "kind"},
	{"payment", "installment", "instalment", "pmt"},
	{"term", "months", "duration", "tenor"},
	{"date", "day", "dt"},
	{"status", "state"},
	{"name", "title", "label"},
}

var groupIndex = buildGroupIndex()

func buildGroupIndex() map[string][]int {
	idx := make(map[string][]int)
	for i, group := range SemanticGroups {
		for _, w := range group {
			idx[w] = append(idx[w], i)
		}
	}
	return idx
}

// GroupsOf returns the indices of every group containing the word or its stem
func GroupsOf(word string) []int {
	word = strings.ToLower(word)
	if g, ok := groupIndex[word]; ok {
		return g
	}
	return groupIndex[Stem(word)]
}

// GroupContaining returns the first group holding the word, or nil
func GroupContaining(word string) []string {
	g := GroupsOf(word)
	if len(g) == 0 {
		return nil
	}
	return SemanticGroups[g[0]]
}

// InGroup reports whether the word (or its stem) belongs to the given group
func InGroup(word string, group []string) bool {
	word = strings.ToLower(word)
	stem := Stem(word)
	for _, w := range group {
		if w == word || w == stem {
			return true
		}
	}
	return false
}

// ShareGroup reports whether two words co-occur in at least one group
func ShareGroup(a, b string) bool {
	ga, gb := GroupsOf(a), GroupsOf(b)
	for _, i := range ga {
		for _, j := range gb {
			if i == j {
				return true
			}
		}
	}
	return false
}

// Tokenize splits a field name or phrase into lowercase words, breaking on
// punctuation, whitespace and camelCase boundaries
func Tokenize(s string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			flush()
		}
		cur = append(cur, r)
	}
	flush()
	return tokens
}
