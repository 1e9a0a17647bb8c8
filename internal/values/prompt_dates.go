package values

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	nativeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "2006-01", "2006"}

	monthFirst = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})$`)
	yearFirst  = regexp.MustCompile(`^(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})$`)
	monthName  = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})$`)
	monthYear  = regexp.MustCompile(`^([a-z]+)\.?,?\s+(\d{4})$`)
)

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

// ParseDateText reads a date typed in a prompt. Layers are tried in order:
// native ISO forms, MM/DD/YYYY, YYYY/MM/DD, then "Month Day, Year".
func ParseDateText(text string) (time.Time, bool) {
	s := strings.ToLower(strings.TrimSpace(text))
	s = strings.TrimRight(s, ".,;")
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range nativeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	if m := monthFirst.FindStringSubmatch(s); m != nil {
		year := atoi(m[3])
		if len(m[3]) == 2 {
			year += 2000
		}
		return buildDate(year, atoi(m[1]), atoi(m[2]))
	}

	if m := yearFirst.FindStringSubmatch(s); m != nil {
		return buildDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}

	if m := monthName.FindStringSubmatch(s); m != nil {
		if mon, ok := months[m[1]]; ok {
			return buildDate(atoi(m[3]), int(mon), atoi(m[2]))
		}
	}

	if m := monthYear.FindStringSubmatch(s); m != nil {
		if mon, ok := months[m[1]]; ok {
			return buildDate(atoi(m[2]), int(mon), 1)
		}
	}

	return time.Time{}, false
}

// MonthNames lists every month spelling ParseDateText accepts
func MonthNames() []string {
	names := make([]string, 0, len(months))
	for name := range months {
		names = append(names, name)
	}
	return names
}

func buildDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalises 02/31 into March; reject instead
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
