package nlp

import (
	"regexp"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
	"github.com/hashicorp/go-set/v2"

	"github.com/project-euler/queryassist/internal/vocab"
)

const (
	maxEntityDistance   = 2
	minEntitySimilarity = 0.8
	minFuzzyTokenLength = 4
)

var tokenRe = regexp.MustCompile(`\S+`)

var entityMetric = metrics.NewLevenshtein()

// extractEntities finds entity mentions by alias, then by fuzzy match, in
// order of first appearance. Tokens inside masked spans (branch filters,
// translated names) are not mentions.
func extractEntities(prompt string, masked []span) []string {
	out := []string{}
	seen := set.New[string](len(vocab.Entities))

	for _, loc := range tokenRe.FindAllStringIndex(prompt, -1) {
		if isMasked(masked, loc[0], loc[1]) {
			continue
		}
		tok := strings.Trim(prompt[loc[0]:loc[1]], ".,;:!?'\"()[]{}")
		if tok == "" {
			continue
		}
		entity, ok := matchEntity(tok)
		if ok && seen.Insert(entity) {
			out = append(out, entity)
		}
	}
	return out
}

func matchEntity(tok string) (string, bool) {
	if e, ok := vocab.EntityAliases[tok]; ok {
		return e, true
	}
	if len(tok) < minFuzzyTokenLength {
		return "", false
	}
	for _, alias := range vocab.AliasOrder {
		if levenshtein.ComputeDistance(tok, alias) > maxEntityDistance {
			continue
		}
		if strutil.Similarity(tok, alias, entityMetric) >= minEntitySimilarity {
			return vocab.EntityAliases[alias], true
		}
	}
	return "", false
}

func isMasked(masked []span, start, end int) bool {
	for _, s := range masked {
		if s.overlaps(start, end) {
			return true
		}
	}
	return false
}
