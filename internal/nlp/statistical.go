package nlp

import (
	"regexp"
	"strings"

	"github.com/hashicorp/go-set/v2"

	"github.com/project-euler/queryassist/internal/vocab"
)

type statMatcher struct {
	op string
	re *regexp.Regexp
}

var statMatchers = func() []statMatcher {
	out := make([]statMatcher, 0, len(vocab.StatPhrases))
	for _, sp := range vocab.StatPhrases {
		out = append(out, statMatcher{
			op: sp.Op,
			re: regexp.MustCompile(`\b` + regexp.QuoteMeta(sp.Phrase) + `\s+of\s+(.+)$`),
		})
	}
	return out
}()

// phraseBoundaries end a statistical field phrase
var phraseBoundaries = set.From([]string{
	"for", "in", "where", "with", "over", "under", "above", "below", "across",
	"from", "on", "at", "by", "that", "which", "between", "and", "or", "per",
})

const maxFieldPhraseWords = 4

// detectStatistical finds "<op> of <field phrase>". The first vocabulary entry
// that matches wins. A phrase that reduces to nothing yields no op.
func detectStatistical(prompt string) (op, field string) {
	for _, m := range statMatchers {
		sub := m.re.FindStringSubmatch(prompt)
		if sub == nil {
			continue
		}
		if hint := reduceFieldPhrase(sub[1]); hint != "" {
			return m.op, hint
		}
		return "", ""
	}
	return "", ""
}

// reduceFieldPhrase maps "loan rates" to "rate", falling back to the first
// non-generic word
func reduceFieldPhrase(phrase string) string {
	var words []string
	for _, w := range strings.Fields(phrase) {
		w = strings.Trim(w, ".,;:?!'\"()")
		if w == "" || phraseBoundaries.Contains(w) || !isWord(w) {
			break
		}
		words = append(words, w)
		if len(words) == maxFieldPhraseWords {
			break
		}
	}

	for _, w := range words {
		if hint, ok := vocab.FieldHints[w]; ok {
			return hint
		}
	}
	for _, w := range words {
		if !vocab.GenericNouns.Contains(w) {
			return w
		}
	}
	return ""
}

func isWord(w string) bool {
	for _, r := range w {
		if (r < 'a' || r > 'z') && r != '_' && r != '-' {
			return false
		}
	}
	return true
}
