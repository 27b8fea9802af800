package doc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October,
	"nov": time.November, "dec": time.December,
}

// sheetsEpoch is day zero of spreadsheet serial dates.
var sheetsEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// FormatPrice renders a price as $1,234,567 with no decimals. Values that do
// not parse as numbers are passed through trimmed.
func FormatPrice(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(s)
	num, err := strconv.ParseFloat(strings.TrimSpace(cleaned), 64)
	if err != nil {
		return s
	}
	return "$" + groupThousands(int64(num))
}

func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

var (
	mdyRe       = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	isoRe       = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	monthDayRe  = regexp.MustCompile(`^([A-Za-z]+)\s+(\d{1,2}),?\s+(\d{4})$`)
	monthYearRe = regexp.MustCompile(`^([A-Za-z]+),?\s+(\d{4})$`)
)

// FormatReadyBy normalizes a ready-by date into zero-padded MM/DD/YYYY.
// Accepted inputs: MM/DD/YYYY, YYYY-MM-DD, spreadsheet serial numbers,
// "April 15, 2026", and "April, 2026" (first of the month). Anything else is
// passed through trimmed.
func FormatReadyBy(value string) string {
	s := strings.TrimSpace(value)
	if s == "" {
		return ""
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial > 1 && serial < 200000 {
			d := sheetsEpoch.AddDate(0, 0, int(serial))
			return d.Format("01/02/2006")
		}
		return s
	}

	if m := mdyRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s/%s/%s", pad2(m[1]), pad2(m[2]), m[3])
	}
	if m := isoRe.FindStringSubmatch(s); m != nil {
		return fmt.Sprintf("%s/%s/%s", pad2(m[2]), pad2(m[3]), m[1])
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[strings.ToLower(m[1])]; ok {
			return fmt.Sprintf("%02d/%s/%s", int(month), pad2(m[2]), m[3])
		}
	}
	if m := monthYearRe.FindStringSubmatch(s); m != nil {
		if month, ok := monthNames[strings.ToLower(m[1])]; ok {
			return fmt.Sprintf("%02d/01/%s", int(month), m[2])
		}
	}
	return s
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// NormalizeCompare prepares a value for case-insensitive trimmed comparison.
func NormalizeCompare(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
