package schema

import (
	"fmt"
	"time"
)

// dateLayouts are the accepted date grammars, tried in order. MM/DD (no
// year) appears on some card statements and is accepted but cannot be
// canonicalized to a full calendar date without external context.
var dateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"2006-01-02",
	"02-01-2006",
	"1/2",
	"01/02",
}

// ValidDate reports whether s matches one of the supported date grammars.
func ValidDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// CanonicalDate reformats a validated date string to an unambiguous
// YYYY-MM-DD form. Year-less grammars borrow the given fallback year.
func CanonicalDate(s string, fallbackYear int) (string, error) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.Year() == 0 {
			t = t.AddDate(fallbackYear, 0, 0)
		}
		return t.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unparseable date %q", s)
}
