// Package values coerces raw imported cell values into numbers and dates.
package values

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Format is the detected shape of a raw value
type Format string

const (
	FormatEmpty      Format = "empty"
	FormatInteger    Format = "integer"
	FormatDecimal    Format = "decimal"
	FormatCurrency   Format = "currency"
	FormatPercentage Format = "percentage"
	FormatDate       Format = "date"
	FormatText       Format = "text"
)

var (
	nonNumeric      = regexp.MustCompile(`[^0-9.\-]`)
	currencySymbols = regexp.MustCompile(`[\$€£¥₹]`)
	groupedNumber   = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	plainInteger    = regexp.MustCompile(`^-?\d+$`)
	plainDecimal    = regexp.MustCompile(`^-?\d*\.\d+$`)
	percentValue    = regexp.MustCompile(`^-?\d+(\.\d+)?\s*%$`)
)

// DateLayouts are tried in order when reading dates out of data
var DateLayouts = []string{
	"2006-01-02",          // ISO: 2024-01-15
	"01/02/2006",          // US: 01/15/2024
	"1/2/2006",            // US short: 1/5/2024
	"2006/01/02",          // Alt ISO
	"02-Jan-2006",         // Text: 15-Jan-2024
	"January 2, 2006",     // Full text
	"Jan 2, 2006",         // Short text
	time.RFC3339,          // With time
	"2006-01-02 15:04:05", // SQL datetime
	"2006-01-02T15:04:05", // ISO without zone
	"01/02/06",            // US two-digit year
}

// Number coerces a value to float64. Strings keep only digits, '.' and '-'
// before parsing, so "$5,000" reads as 5000.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool, time.Time:
		return 0, false
	case []byte:
		return parseStripped(string(n))
	case string:
		return parseStripped(n)
	default:
		return parseStripped(fmt.Sprint(n))
	}
}

func parseStripped(s string) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return 0, false
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// NumberOrZero is Number with unparseable values read as 0
func NumberOrZero(v any) float64 {
	f, _ := Number(v)
	return f
}

// Date coerces a value into a time, trying DateLayouts for strings
func Date(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case *time.Time:
		if d == nil {
			return time.Time{}, false
		}
		return *d, !d.IsZero()
	case string:
		return parseLayouts(strings.TrimSpace(d))
	case []byte:
		return parseLayouts(strings.TrimSpace(string(d)))
	}
	return time.Time{}, false
}

func parseLayouts(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsEmpty reports nil and blank strings
func IsEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	case []byte:
		return len(strings.TrimSpace(string(s))) == 0
	}
	return false
}

// String renders a raw value for grouping and display
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case []byte:
		return strings.TrimSpace(string(s))
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case time.Time:
		return s.Format("2006-01-02")
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

// DetectFormat identifies the format of a single raw string
func DetectFormat(value string) Format {
	v := strings.TrimSpace(value)
	if v == "" {
		return FormatEmpty
	}
	if percentValue.MatchString(v) {
		return FormatPercentage
	}
	if currencySymbols.MatchString(v) {
		rest := strings.TrimSpace(currencySymbols.ReplaceAllString(v, ""))
		if _, ok := parseStripped(rest); ok && (groupedNumber.MatchString(rest) || plainDecimal.MatchString(rest) || plainInteger.MatchString(rest)) {
			return FormatCurrency
		}
	}
	if groupedNumber.MatchString(v) {
		return FormatCurrency
	}
	if plainInteger.MatchString(v) {
		return FormatInteger
	}
	if plainDecimal.MatchString(v) {
		return FormatDecimal
	}
	if _, ok := parseLayouts(v); ok {
		return FormatDate
	}
	return FormatText
}
