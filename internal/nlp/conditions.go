package nlp

import (
	"regexp"
	"sort"
	"strings"

	"github.com/project-euler/queryassist/internal/models"
)

var (
	betweenRe = regexp.MustCompile(`\bbetween\s+(` + amountPattern + `)\s+and\s+(` + amountPattern + `)`)
	fromToRe  = regexp.MustCompile(`\bfrom\s+(` + amountPattern + `)\s+to\s+(` + amountPattern + `)`)

	connectiveRe = regexp.MustCompile(`\s+(and|or)\s+`)

	comparisonRe = regexp.MustCompile(
		`(?:\b(no more than|at least|at most|greater than|more than|higher than|bigger than|larger than|exceeding|over|above|` +
			`less than|fewer than|lower than|smaller than|under|below)\s+|(>=|<=|>|<)\s*)(` + amountPattern + `)`)

	branchEqRe = regexp.MustCompile(`\b(?:in|at)\s+branch\s+(?:number\s+|no\.?\s*|#\s*)?(\d+)\b`)
	typeEqRe   = regexp.MustCompile(`\b(?:of\s+)?type\s+(\d+)\b`)
)

var comparisonOps = map[string]models.Op{
	"greater than": models.OpGt, "more than": models.OpGt, "higher than": models.OpGt,
	"bigger than": models.OpGt, "larger than": models.OpGt, "exceeding": models.OpGt,
	"over": models.OpGt, "above": models.OpGt, ">": models.OpGt,
	"less than": models.OpLt, "fewer than": models.OpLt, "lower than": models.OpLt,
	"smaller than": models.OpLt, "under": models.OpLt, "below": models.OpLt, "<": models.OpLt,
	"at least": models.OpGte, ">=": models.OpGte,
	"at most": models.OpLte, "no more than": models.OpLte, "<=": models.OpLte,
}

const (
	conceptBranch = "branch"
	conceptType   = "type"
)

type extraction struct {
	conditions []models.Condition
	logicalOp  models.LogicalOp
	masked     []span
	hasBranch  bool
}

type fragment struct {
	text       string
	start      int
	connective string
}

type positioned struct {
	pos  int
	cond models.Condition
}

// extractConditions runs range extraction over the whole prompt, then scans
// each and/or fragment. Output order is ranges, fragment conditions, dates.
func (p *Parser) extractConditions(prompt string) extraction {
	ex := extraction{logicalOp: models.LogicalAnd}

	work, ranges := p.extractRanges(prompt)

	var fromFragments, dates []models.Condition
	prevConcept, dateField := "", ""
	for _, f := range splitFragments(work) {
		conds, masks := p.fragmentConditions(f, &prevConcept)
		dconds := dateConditions(f, &dateField)

		if f.connective == "or" && len(conds)+len(dconds) > 0 {
			ex.logicalOp = models.LogicalOr
		}
		for _, c := range conds {
			if isBranchCondition(c) {
				ex.hasBranch = true
			}
		}
		fromFragments = append(fromFragments, conds...)
		dates = append(dates, dconds...)
		ex.masked = append(ex.masked, masks...)
	}

	ex.conditions = make([]models.Condition, 0, len(ranges)+len(fromFragments)+len(dates))
	ex.conditions = append(ex.conditions, ranges...)
	ex.conditions = append(ex.conditions, fromFragments...)
	ex.conditions = append(ex.conditions, dates...)
	return ex
}

// extractRanges pulls "between X and Y" / "from X to Y" out of the prompt and
// blanks them so their "and" is not read as a connective
func (p *Parser) extractRanges(prompt string) (string, []models.Condition) {
	var found []positioned
	work := prompt
	for _, re := range []*regexp.Regexp{betweenRe, fromToRe} {
		for _, m := range re.FindAllStringSubmatchIndex(work, -1) {
			lo, okLo := parseAmount(work[m[2]:m[3]])
			hi, okHi := parseAmount(work[m[4]:m[5]])
			if !okLo || !okHi {
				continue
			}
			concept := p.conceptFor(clauseBefore(work, m[0]), "", "")
			found = append(found, positioned{pos: m[0], cond: models.NewRangeCondition(concept, lo, hi)})
			work = blank(work, m[0], m[1])
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	out := make([]models.Condition, 0, len(found))
	for _, f := range found {
		out = append(out, f.cond)
	}
	return work, out
}

// clauseBefore returns the text between the last connective and idx
func clauseBefore(text string, idx int) string {
	prefix := text[:idx]
	if locs := connectiveRe.FindAllStringIndex(prefix, -1); len(locs) > 0 {
		prefix = prefix[locs[len(locs)-1][1]:]
	}
	return prefix
}

// splitFragments cuts on the words "and"/"or", remembering which one
// introduced each fragment and where it starts in the prompt
func splitFragments(text string) []fragment {
	var out []fragment
	start, connective := 0, ""
	for _, m := range connectiveRe.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, fragment{text: text[start:m[0]], start: start, connective: connective})
		start, connective = m[1], text[m[2]:m[3]]
	}
	return append(out, fragment{text: text[start:], start: start, connective: connective})
}

// fragmentConditions scans one fragment for equality patterns, translator
// names and comparisons, in position order. Equality spans are returned so
// entity extraction can skip them.
func (p *Parser) fragmentConditions(f fragment, prevConcept *string) ([]models.Condition, []span) {
	var found []positioned
	var masks []span
	text := f.text

	for _, m := range branchEqRe.FindAllStringSubmatchIndex(text, -1) {
		if v, ok := parseAmount(text[m[2]:m[3]]); ok {
			found = append(found, positioned{pos: m[0], cond: models.NewNumberCondition(conceptBranch, models.OpEq, v)})
			masks = append(masks, span{f.start + m[0], f.start + m[1]})
			text = blank(text, m[0], m[1])
		}
	}
	for _, m := range typeEqRe.FindAllStringSubmatchIndex(text, -1) {
		if v, ok := parseAmount(text[m[2]:m[3]]); ok {
			found = append(found, positioned{pos: m[0], cond: models.NewNumberCondition(conceptType, models.OpEq, v)})
			text = blank(text, m[0], m[1])
		}
	}
	if p.translators != nil {
		for _, tm := range p.translators.FindInText(text) {
			c := models.NewNumberCondition(tm.Type, models.OpEq, float64(tm.Code))
			c.Translated = true
			c.TranslationSource = tm.Type
			found = append(found, positioned{pos: tm.Start, cond: c})
			masks = append(masks, span{f.start + tm.Start, f.start + tm.End})
			text = blank(text, tm.Start, tm.End)
		}
	}

	lastEnd := 0
	for _, m := range comparisonRe.FindAllStringSubmatchIndex(text, -1) {
		phrase := ""
		switch {
		case m[2] >= 0:
			phrase = text[m[2]:m[3]]
		case m[4] >= 0:
			phrase = text[m[4]:m[5]]
		}
		op, ok := comparisonOps[phrase]
		if !ok {
			continue
		}
		v, ok := parseAmount(text[m[6]:m[7]])
		if !ok {
			continue
		}
		concept := p.conceptFor(text[lastEnd:m[0]], text[:m[0]], *prevConcept)
		*prevConcept = concept
		lastEnd = m[1]
		found = append(found, positioned{pos: m[0], cond: models.NewNumberCondition(concept, op, v)})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })
	out := make([]models.Condition, 0, len(found))
	for _, fc := range found {
		out = append(out, fc.cond)
	}
	return out, masks
}

func isBranchCondition(c models.Condition) bool {
	if c.Concept == conceptBranch {
		return true
	}
	return c.Translated && strings.HasPrefix(c.TranslationSource, conceptBranch)
}
