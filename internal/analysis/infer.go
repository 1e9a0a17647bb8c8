package analysis

import (
	"math"
	"strings"
	"time"

	"github.com/hashicorp/go-set/v2"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/values"
	"github.com/project-euler/queryassist/internal/vocab"
)

// TypeInferrer derives a typed schema from parsed rows
type TypeInferrer interface {
	InferSchema(headers []string, rows []models.Row) *models.Schema
}

const (
	DefaultSampleSize    = 20
	DefaultTypeThreshold = 0.8
	maxSampleValues      = 5
)

// idWords mark column names that may hold a unique identifier
var idWords = set.From([]string{
	"id", "identifier", "number", "no", "num", "code", "key", "reference", "ref",
	"portfolio", "account", "acct", "cif",
})

// HeuristicInferrer types a column by the share of its sampled values that
// parse as one format
type HeuristicInferrer struct {
	SampleSize int
	Threshold  float64
}

// NewHeuristicInferrer fills in defaults for non-positive settings
func NewHeuristicInferrer(sampleSize int, threshold float64) *HeuristicInferrer {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultTypeThreshold
	}
	return &HeuristicInferrer{SampleSize: sampleSize, Threshold: threshold}
}

func (h *HeuristicInferrer) InferSchema(headers []string, rows []models.Row) *models.Schema {
	schema := &models.Schema{Fields: make([]models.Field, 0, len(headers))}
	for _, col := range headers {
		sample := h.sample(rows, col)
		field := models.Field{
			ID:        col,
			Name:      col,
			DataType:  h.inferType(sample),
			RoleGuess: models.RoleField,
			Sample:    displaySample(sample),
		}
		if looksLikeID(col) && uniqueValues(rows, col) {
			field.RoleGuess = models.RoleCandidateID
		}
		schema.Fields = append(schema.Fields, field)
	}
	return schema
}

func (h *HeuristicInferrer) sample(rows []models.Row, col string) []any {
	out := make([]any, 0, h.SampleSize)
	for _, r := range rows {
		if len(out) == h.SampleSize {
			break
		}
		if v := r[col]; !values.IsEmpty(v) {
			out = append(out, v)
		}
	}
	return out
}

func (h *HeuristicInferrer) inferType(sample []any) models.DataType {
	if len(sample) == 0 {
		return models.TypeString
	}

	counts := make(map[values.Format]int)
	for _, v := range sample {
		counts[classify(v)]++
	}
	n := float64(len(sample))
	ratio := func(fs ...values.Format) float64 {
		c := 0
		for _, f := range fs {
			c += counts[f]
		}
		return float64(c) / n
	}

	switch {
	case ratio(values.FormatPercentage) >= h.Threshold:
		return models.TypePercentage
	case ratio(values.FormatInteger) >= h.Threshold:
		return models.TypeInteger
	case ratio(values.FormatInteger, values.FormatDecimal, values.FormatCurrency) >= h.Threshold:
		return models.TypeCurrency
	case ratio(values.FormatDate) >= h.Threshold:
		return models.TypeDate
	}
	return models.TypeString
}

// classify detects the format of a raw or already typed value
func classify(v any) values.Format {
	switch x := v.(type) {
	case string:
		return values.DetectFormat(x)
	case []byte:
		return values.DetectFormat(string(x))
	case float64:
		if x == math.Trunc(x) {
			return values.FormatInteger
		}
		return values.FormatDecimal
	case float32:
		return classify(float64(x))
	case int, int32, int64, uint, uint32, uint64:
		return values.FormatInteger
	case time.Time:
		return values.FormatDate
	case nil:
		return values.FormatEmpty
	}
	return values.FormatText
}

func looksLikeID(col string) bool {
	for _, tok := range vocab.Tokenize(col) {
		if idWords.Contains(tok) {
			return true
		}
	}
	return false
}

// uniqueValues reports whether every row carries a distinct non-empty value
func uniqueValues(rows []models.Row, col string) bool {
	if len(rows) == 0 {
		return false
	}
	seen := set.New[string](len(rows))
	for _, r := range rows {
		v := strings.ToLower(values.String(r[col]))
		if v == "" || !seen.Insert(v) {
			return false
		}
	}
	return true
}

func displaySample(sample []any) []string {
	n := min(len(sample), maxSampleValues)
	out := make([]string, 0, n)
	for _, v := range sample[:n] {
		out = append(out, values.String(v))
	}
	return out
}
