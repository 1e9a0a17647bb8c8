package nlp

import (
	"strings"

	"github.com/project-euler/queryassist/internal/functions"
	"github.com/project-euler/queryassist/internal/vocab"
)

var functionTriggers = []string{"find", "get"}

// detectFunction looks for a registered function the prompt asks to compute.
// It runs only for computation verbs or an aggregation noun with find/get, and
// never for prompts naming several entities.
func (p *Parser) detectFunction(prompt string, entities []string) *functions.Match {
	if p.functions == nil || len(entities) > 1 {
		return nil
	}
	words := vocab.Tokenize(prompt)
	if !wantsComputation(prompt, words) {
		return nil
	}

	for _, kw := range p.functions.Keywords() {
		if strings.Contains(prompt, kw) {
			return p.functions.FindBestFunctionByPrompt(prompt, entities)
		}
	}

	for i := 0; i+1 < len(words); i++ {
		bigram := words[i] + " " + words[i+1]
		if !p.functions.HasKeyword(bigram) {
			continue
		}
		if m := p.functions.FindBestFunctionByPrompt(bigram, entities); m != nil {
			return m
		}
	}
	return nil
}

func wantsComputation(prompt string, words []string) bool {
	has := func(w string) bool {
		for _, x := range words {
			if x == w || x == w+"s" {
				return true
			}
		}
		return false
	}
	for _, verb := range vocab.ComputationVerbs {
		if has(verb) {
			return true
		}
	}

	trigger := false
	for _, t := range functionTriggers {
		trigger = trigger || has(t)
	}
	if !trigger {
		return false
	}
	padded := " " + prompt + " "
	for _, noun := range vocab.AggregationNouns {
		if strings.Contains(padded, " "+noun+" ") {
			return true
		}
	}
	return false
}
