package service

import (
	"strings"
	"time"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/values"
)

type predicate func(models.Row) bool

func reject(models.Row) bool { return false }

// buildPredicate turns one condition into a row test. Unresolved conditions
// and values that do not parse reject the row.
func buildPredicate(c models.Condition, now time.Time) predicate {
	if !c.Resolved() {
		return reject
	}
	field := c.Field

	switch v := c.Value.(type) {
	case models.NumberValue:
		return func(row models.Row) bool {
			x, ok := values.Number(row[field])
			return ok && compareNumber(c.Op, x, v.Value)
		}
	case models.RangeValue:
		return func(row models.Row) bool {
			x, ok := values.Number(row[field])
			return ok && x >= v.Min && x <= v.Max
		}
	case models.StringValue:
		want := strings.TrimSpace(v.Value)
		return func(row models.Row) bool {
			if values.IsEmpty(row[field]) {
				return false
			}
			return strings.EqualFold(strings.TrimSpace(values.String(row[field])), want)
		}
	case models.AbsoluteDate:
		return datePredicate(field, c.Op, v.At)
	case models.RelativeTime:
		return datePredicate(field, c.Op, v.Boundary(now))
	}
	return reject
}

func compareNumber(op models.Op, x, y float64) bool {
	switch op {
	case models.OpEq:
		return x == y
	case models.OpGt:
		return x > y
	case models.OpLt:
		return x < y
	case models.OpGte:
		return x >= y
	case models.OpLte:
		return x <= y
	}
	return false
}

func datePredicate(field string, op models.Op, boundary time.Time) predicate {
	return func(row models.Row) bool {
		d, ok := values.Date(row[field])
		if !ok {
			return false
		}
		switch op {
		case models.OpAfter:
			return d.After(boundary)
		case models.OpBefore:
			return d.Before(boundary)
		}
		return false
	}
}

// filterRows keeps the rows passing the combined predicates. Conditions
// carrying a function marker are resolved by the function layer, not here.
func filterRows(rows []models.Row, conds []models.Condition, op models.LogicalOp, now time.Time) []models.Row {
	preds := make([]predicate, 0, len(conds))
	for _, c := range conds {
		if c.Function != "" {
			continue
		}
		preds = append(preds, buildPredicate(c, now))
	}

	out := make([]models.Row, 0, len(rows))
	for _, row := range rows {
		if matches(row, preds, op) {
			out = append(out, row)
		}
	}
	return out
}

func matches(row models.Row, preds []predicate, op models.LogicalOp) bool {
	if len(preds) == 0 {
		return true
	}
	if op == models.LogicalOr {
		for _, p := range preds {
			if p(row) {
				return true
			}
		}
		return false
	}
	for _, p := range preds {
		if !p(row) {
			return false
		}
	}
	return true
}
