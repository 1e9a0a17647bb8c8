package nlp

import (
	"strings"

	"github.com/project-euler/queryassist/internal/vocab"
)

// IntentShow is the default intent
const IntentShow = "show"

const (
	confidenceExplicit = 0.95
	confidenceImplicit = 0.8
	confidenceDefault  = 0.5
)

var politePrefixes = []string{"please ", "can you ", "could you ", "would you "}

// classifyIntent reads an explicit leading verb, else infers "show" from any
// banking noun
func classifyIntent(prompt string) (string, float64) {
	rest := prompt
	for trimmed := true; trimmed; {
		trimmed = false
		for _, prefix := range politePrefixes {
			if strings.HasPrefix(rest, prefix) {
				rest = strings.TrimPrefix(rest, prefix)
				trimmed = true
			}
		}
	}

	words := strings.Fields(rest)
	if len(words) > 0 {
		first := strings.Trim(words[0], ".,!?:;")
		for _, verb := range vocab.ActionVerbs {
			if first == verb || first == verb+"s" {
				return verb, confidenceExplicit
			}
		}
	}

	for _, w := range strings.Fields(prompt) {
		if vocab.BankingNouns.Contains(strings.Trim(w, ".,!?:;'\"")) {
			return IntentShow, confidenceImplicit
		}
	}
	return IntentShow, confidenceDefault
}
