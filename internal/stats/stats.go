// Package stats implements the aggregate functions a plan can apply to a
// column of result rows.
package stats

import (
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/guregu/null/v5"

	"github.com/project-euler/queryassist/internal/models"
	"github.com/project-euler/queryassist/internal/values"
	"github.com/project-euler/queryassist/internal/vocab"
)

// ErrUnknownOp is returned for op names outside the statistical vocabulary
var ErrUnknownOp = errors.New("unknown statistical operation")

// Numbers extracts the numeric entries of a column, skipping nulls and text
func Numbers(vals []any) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if values.IsEmpty(v) {
			continue
		}
		if f, ok := values.Number(v); ok && !math.IsNaN(f) {
			out = append(out, f)
		}
	}
	return out
}

// Mean is the arithmetic mean
func Mean(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	return null.FloatFrom(sum(nums) / float64(len(nums)))
}

// Sum adds the numeric entries
func Sum(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	return null.FloatFrom(sum(nums))
}

// Count counts entries that are neither null nor empty strings
func Count(vals []any) null.Float {
	n := 0
	for _, v := range vals {
		if !values.IsEmpty(v) {
			n++
		}
	}
	if n == 0 {
		return null.Float{}
	}
	return null.FloatFrom(float64(n))
}

// Min is the smallest numeric entry
func Min(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	m := nums[0]
	for _, v := range nums[1:] {
		if v < m {
			m = v
		}
	}
	return null.FloatFrom(m)
}

// Max is the largest numeric entry
func Max(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	m := nums[0]
	for _, v := range nums[1:] {
		if v > m {
			m = v
		}
	}
	return null.FloatFrom(m)
}

// Median averages the two middle values for even counts
func Median(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	sort.Float64s(nums)
	mid := len(nums) / 2
	if len(nums)%2 == 0 {
		return null.FloatFrom((nums[mid-1] + nums[mid]) / 2)
	}
	return null.FloatFrom(nums[mid])
}

// Mode returns the first value reaching the highest frequency
func Mode(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	counts := make(map[float64]int, len(nums))
	best, bestCount := nums[0], 0
	for _, v := range nums {
		counts[v]++
	}
	for _, v := range nums {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return null.FloatFrom(best)
}

// Variance is the population variance (divides by n)
func Variance(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	return null.FloatFrom(variance(nums))
}

// StandardDeviation is the population standard deviation
func StandardDeviation(vals []any) null.Float {
	nums := Numbers(vals)
	if len(nums) == 0 {
		return null.Float{}
	}
	return null.FloatFrom(math.Sqrt(variance(nums)))
}

func sum(nums []float64) float64 {
	total := 0.0
	for _, v := range nums {
		total += v
	}
	return total
}

func variance(nums []float64) float64 {
	if len(nums) < 2 {
		return 0
	}
	mean := sum(nums) / float64(len(nums))
	acc := 0.0
	for _, v := range nums {
		d := v - mean
		acc += d * d
	}
	return acc / float64(len(nums))
}

// Canonical resolves an op name or alias ("avg", "std dev") to its canonical form
func Canonical(op string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(op))
	if canonical, ok := vocab.StatOpAliases[key]; ok {
		return canonical, true
	}
	if vocab.StatOps.Contains(op) {
		return op, true
	}
	return "", false
}

// Apply runs the named operation over raw values
func Apply(op string, vals []any) (null.Float, error) {
	canonical, ok := Canonical(op)
	if !ok {
		return null.Float{}, errors.Wrapf(ErrUnknownOp, "%q", op)
	}
	switch canonical {
	case vocab.StatMean:
		return Mean(vals), nil
	case vocab.StatStandardDeviation:
		return StandardDeviation(vals), nil
	case vocab.StatMedian:
		return Median(vals), nil
	case vocab.StatMin:
		return Min(vals), nil
	case vocab.StatMax:
		return Max(vals), nil
	case vocab.StatMode:
		return Mode(vals), nil
	case vocab.StatSum:
		return Sum(vals), nil
	case vocab.StatCount:
		return Count(vals), nil
	case vocab.StatVariance:
		return Variance(vals), nil
	}
	return null.Float{}, errors.Wrapf(ErrUnknownOp, "%q", op)
}

// ApplyStatisticalOperation collects a field across rows and applies the op.
// Unknown ops yield null.
func ApplyStatisticalOperation(rows []models.Row, field, op string) null.Float {
	vals := make([]any, 0, len(rows))
	for _, r := range rows {
		vals = append(vals, r[field])
	}
	result, err := Apply(op, vals)
	if err != nil {
		return null.Float{}
	}
	return result
}
