package doc

import (
	"regexp"
	"strings"
)

// Canonical header names for the price table.
const (
	HeaderSite    = "SITE"
	HeaderPrice   = "PRICE"
	HeaderAddress = "ADDRESS"
	HeaderReadyBy = "READY BY"
	HeaderNotes   = "NOTES"
)

// ExpectedHeaders is the required column order of a certified template.
var ExpectedHeaders = []string{HeaderSite, HeaderPrice, HeaderAddress, HeaderReadyBy, HeaderNotes}

// HeaderRow is the 0-based row index of the header row in a template table.
// Row 0 is the title row; the header labels sit on the second row.
const HeaderRow = 1

var headerAliases = map[string][]string{
	HeaderSite:    {"SITE", "HOMESITE", "HOME SITE", "HS"},
	HeaderPrice:   {"PRICE", "SALES PRICE", "FINAL PRICE"},
	HeaderAddress: {"ADDRESS", "PROPERTY ADDRESS"},
	HeaderReadyBy: {"READY BY", "READYBY", "READY BY DATE", "MOVE IN", "MOVEIN", "MOVE IN DATE"},
	HeaderNotes:   {"NOTES", "NOTE"},
}

var (
	punctRe = regexp.MustCompile(`[^\w\s]`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeHeader prepares a header cell for matching: trim, uppercase,
// hyphens and underscores to spaces, strip punctuation, collapse whitespace.
func NormalizeHeader(text string) string {
	s := strings.ToUpper(strings.TrimSpace(text))
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	s = punctRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	return s
}

// ResolveHeader maps a normalized header string to its canonical name,
// or "" if unrecognized.
func ResolveHeader(normalized string) string {
	for canonical, aliases := range headerAliases {
		for _, a := range aliases {
			if normalized == a {
				return canonical
			}
		}
	}
	return ""
}

// HeaderMap maps canonical header names to their column index in the table's
// header row. First occurrence wins.
func HeaderMap(t *Table) map[string]int {
	m := map[string]int{}
	if HeaderRow >= len(t.Rows) {
		return m
	}
	for idx, cell := range t.Rows[HeaderRow] {
		canonical := ResolveHeader(NormalizeHeader(cell))
		if canonical != "" {
			if _, seen := m[canonical]; !seen {
				m[canonical] = idx
			}
		}
	}
	return m
}

// MissingHeaders returns the expected headers absent from the map, in
// canonical order.
func MissingHeaders(m map[string]int) []string {
	var missing []string
	for _, h := range ExpectedHeaders {
		if _, ok := m[h]; !ok {
			missing = append(missing, h)
		}
	}
	return missing
}
