package nlp

import (
	"strconv"
	"strings"
)

// amountPattern matches a typed amount: optional $, thousands separators,
// decimals and a k/m suffix
const amountPattern = `\$?\d[\d,]*(?:\.\d+)?(?:\s?[km]\b)?`

// parseAmount reads an amount matched by amountPattern
func parseAmount(s string) (float64, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		mult, s = 1e3, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		mult, s = 1e6, strings.TrimSuffix(s, "m")
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	s = strings.TrimRight(s, ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}

// blank overwrites text[start:end] with spaces so later offsets stay valid
func blank(text string, start, end int) string {
	return text[:start] + strings.Repeat(" ", end-start) + text[end:]
}

type span struct {
	start, end int
}

func (s span) overlaps(start, end int) bool {
	return start < s.end && s.start < end
}
