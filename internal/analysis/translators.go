package analysis

import (
	"math"
	"strings"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/values"
	"github.com/project-euler/queryassist/internal/vocab"
)

// TranslatorCandidate is a lookup table found in an import: human names
// mapped to the integer codes other datasets store
type TranslatorCandidate struct {
	Type     string         `json:"type"`
	Names    map[string]int `json:"names"`
	Synonyms []string       `json:"synonyms,omitempty"`
}

// DetectTranslator recognises two column datasets pairing a whole number code
// with a text name, like a branch list. The type comes from the dataset name.
func DetectTranslator(name string, schema *models.Schema, rows []models.Row) (*TranslatorCandidate, bool) {
	if schema == nil || len(schema.Fields) != 2 || len(rows) == 0 {
		return nil, false
	}

	var codeCol, nameCol string
	for _, f := range schema.Fields {
		switch {
		case f.DataType == models.TypeInteger && codeCol == "":
			codeCol = f.ID
		case f.DataType == models.TypeString && nameCol == "":
			nameCol = f.ID
		}
	}
	if codeCol == "" || nameCol == "" {
		return nil, false
	}

	names := make(map[string]int, len(rows))
	for _, r := range rows {
		code, ok := values.Number(r[codeCol])
		label := values.String(r[nameCol])
		if !ok || label == "" || code != math.Trunc(code) {
			continue
		}
		names[label] = int(code)
	}
	if len(names) == 0 {
		return nil, false
	}

	typ := translatorType(name, codeCol)
	if typ == "" {
		return nil, false
	}
	return &TranslatorCandidate{
		Type:     typ,
		Names:    names,
		Synonyms: synonymsFor(typ),
	}, true
}

// translatorType prefers the singular first word of the dataset name and
// falls back to the code column's base noun
func translatorType(name, codeCol string) string {
	for _, src := range []string{name, vocab.BaseNoun(strings.Join(vocab.Tokenize(codeCol), " "))} {
		if toks := vocab.Tokenize(src); len(toks) > 0 {
			return vocab.Stem(toks[0])
		}
	}
	return ""
}

func synonymsFor(typ string) []string {
	group := vocab.GroupContaining(vocab.Stem(typ))
	out := make([]string, 0, len(group))
	for _, w := range group {
		if w != typ {
			out = append(out, w)
		}
	}
	return out
}
