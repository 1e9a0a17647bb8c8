package analysis

import (
	"math"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/values"
)

// ColumnProfile holds quality metrics for one column of a dataset
type ColumnProfile struct {
	Field           string          `json:"field"`
	DataType        models.DataType `json:"dataType"`
	TotalRows       int             `json:"totalRows"`
	NonEmptyRows    int             `json:"nonEmptyRows"`
	EmptyRate       float64         `json:"emptyRate"`
	DistinctCount   int             `json:"distinctCount"`
	UniquenessRatio float64         `json:"uniquenessRatio"`
	Entropy         float64         `json:"entropy"`
	LikelyKey       bool            `json:"likelyKey"`
	// Unparsed counts non-empty values that do not read as the column's
	// declared numeric or date type
	Unparsed     int     `json:"unparsed"`
	QualityScore float64 `json:"qualityScore"`
}

// Profile computes a ColumnProfile for every schema field, in schema order
func Profile(schema *models.Schema, rows []models.Row) []ColumnProfile {
	if schema == nil {
		return nil
	}
	out := make([]ColumnProfile, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		out = append(out, profileColumn(f, rows))
	}
	return out
}

func profileColumn(f models.Field, rows []models.Row) ColumnProfile {
	p := ColumnProfile{
		Field:     f.ID,
		DataType:  f.DataType,
		TotalRows: len(rows),
	}

	counts := make(map[string]int)
	for _, r := range rows {
		v := r[f.ID]
		if values.IsEmpty(v) {
			continue
		}
		p.NonEmptyRows++
		counts[values.String(v)]++
		if !readsAs(f.DataType, v) {
			p.Unparsed++
		}
	}

	p.DistinctCount = len(counts)
	if p.TotalRows > 0 {
		p.EmptyRate = float64(p.TotalRows-p.NonEmptyRows) / float64(p.TotalRows)
	}
	if p.NonEmptyRows > 0 {
		p.UniquenessRatio = float64(p.DistinctCount) / float64(p.NonEmptyRows)
	}
	p.Entropy = entropy(counts, p.NonEmptyRows)
	p.LikelyKey = p.NonEmptyRows > 1 && p.UniquenessRatio > 0.95 && p.EmptyRate < 0.05
	p.QualityScore = qualityScore(p)
	return p
}

func readsAs(t models.DataType, v any) bool {
	switch {
	case t.IsNumeric():
		_, ok := values.Number(v)
		return ok
	case t == models.TypeDate:
		_, ok := values.Date(v)
		return ok
	default:
		return true
	}
}

// entropy is the Shannon entropy of the value distribution in bits
func entropy(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	e := 0.0
	for _, c := range counts {
		if c > 0 {
			p := float64(c) / float64(total)
			e -= p * math.Log2(p)
		}
	}
	return e
}

// qualityScore is 1 for a fully populated, fully parseable column and falls
// with the share of empty and unreadable cells
func qualityScore(p ColumnProfile) float64 {
	if p.TotalRows == 0 {
		return 0
	}
	score := 1 - p.EmptyRate
	if p.NonEmptyRows > 0 {
		score *= 1 - float64(p.Unparsed)/float64(p.NonEmptyRows)
	}
	return math.Round(math.Max(0, math.Min(1, score))*1000) / 1000
}
