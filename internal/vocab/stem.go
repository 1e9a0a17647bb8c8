package vocab

import (
	"strings"

	"github.com/hashicorp/go-set/v2"
)

// Stem strips a simple English plural: -ies -> -y, -es dropped, trailing -s dropped.
// Words ending in -ss are left alone.
func Stem(word string) string {
	w := strings.ToLower(word)
	switch {
	case len(w) > 3 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "es") && isSibilantPlural(w):
		return w[:len(w)-2]
	case len(w) > 1 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// isSibilantPlural catches branches/boxes/sketches where the -es belongs to the plural
func isSibilantPlural(w string) bool {
	base := w[:len(w)-2]
	for _, suf := range []string{"ch", "sh", "x", "z", "ss"} {
		if strings.HasSuffix(base, suf) {
			return true
		}
	}
	return false
}

// NounAdjuncts trail a noun without changing what it refers to ("branch number").
var NounAdjuncts = set.From([]string{"number", "id", "code", "key", "reference", "identifier", "no", "num", "#"})

// BaseNoun strips a trailing noun adjunct from a phrase: "branch number" -> "branch".
// A phrase made only of an adjunct is returned unchanged.
func BaseNoun(phrase string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(phrase)))
	if len(words) < 2 {
		return strings.Join(words, " ")
	}
	last := strings.Trim(words[len(words)-1], ".")
	if NounAdjuncts.Contains(last) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
