package nlp

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/values"
	"github.com/project-euler/queryassist/internal/vocab"
)

// DefaultDateConcept names the date column when the prompt never says which
const DefaultDateConcept = "date"

const dateTextPattern = `\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}` +
	`|\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2}` +
	`|\d{4}-\d{2}` +
	`|[a-z]+\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}` +
	`|[a-z]+\.?,?\s+\d{4}` +
	`|\d{4}`

var (
	relativeRe = regexp.MustCompile(`\b(?:last|past)\s+(?:(\d+)\s+)?(day|month|year)s?\b`)
	absoluteRe = regexp.MustCompile(
		`(?:\b(opened|open|originated|closed|close|matured|matures|maturing|due)\s+)?\b(before|after)\s+(` + dateTextPattern + `)`)
	dateFieldRe = regexp.MustCompile(`\b(opened|open|originated|closed|close|matured|matures|maturing|due)\b`)
)

var timeUnits = map[string]models.TimeUnit{
	"day":   models.UnitDay,
	"month": models.UnitMonth,
	"year":  models.UnitYear,
}

// dateConditions reads relative offsets and before/after clauses. field
// carries the last named date column across clauses and fragments.
func dateConditions(f fragment, field *string) []models.Condition {
	var found []positioned

	for _, m := range absoluteRe.FindAllStringSubmatchIndex(f.text, -1) {
		if m[2] >= 0 {
			*field = vocab.DateFieldWords[f.text[m[2]:m[3]]]
		}
		at, ok := values.ParseDateText(f.text[m[6]:m[7]])
		if !ok {
			continue
		}
		op := models.OpAfter
		if f.text[m[4]:m[5]] == "before" {
			op = models.OpBefore
		}
		found = append(found, positioned{pos: m[0], cond: models.NewDateCondition(dateConcept(*field), op, at)})
	}

	for _, m := range relativeRe.FindAllStringSubmatchIndex(f.text, -1) {
		n := 1
		if m[2] >= 0 {
			v, err := strconv.Atoi(f.text[m[2]:m[3]])
			if err != nil || v <= 0 {
				continue
			}
			n = v
		}
		if named := lastDateField(f.text[:m[0]]); named != "" {
			*field = named
		}
		unit := timeUnits[f.text[m[4]:m[5]]]
		found = append(found, positioned{pos: m[0], cond: models.NewRelativeCondition(dateConcept(*field), unit, n)})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]models.Condition, 0, len(found))
	for _, fc := range found {
		out = append(out, fc.cond)
	}
	return out
}

func lastDateField(text string) string {
	all := dateFieldRe.FindAllString(text, -1)
	if len(all) == 0 {
		return ""
	}
	return vocab.DateFieldWords[all[len(all)-1]]
}

func dateConcept(field string) string {
	if field == "" {
		return DefaultDateConcept
	}
	return field
}
