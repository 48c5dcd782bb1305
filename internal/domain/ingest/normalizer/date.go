package normalizer

import (
	"errors"
	"strings"
	"time"
)

// ErrNotDate indicates a cell that does not parse as a calendar date.
var ErrNotDate = errors.New("not a date")

// dateFormats covers the layouts seen across bank exports. Order matters:
// ISO first, then day-first (the more common statement convention), then
// month-first.
var dateFormats = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
	"02.01.2006",
	"02/01/06",
	"02.01.06",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04",
}

// ParseFlexibleDate parses a statement date, trying the preferred layout
// first when one is known for the document.
func ParseFlexibleDate(raw string, preferred string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrNotDate
	}

	if preferred != "" {
		if t, err := time.Parse(preferred, s); err == nil {
			return fixCentury(t), nil
		}
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return fixCentury(t), nil
		}
	}
	return time.Time{}, ErrNotDate
}

// LooksLikeDate reports whether the cell parses as a date under any known
// layout. Used by header candidate validation.
func LooksLikeDate(raw string) bool {
	_, err := ParseFlexibleDate(raw, "")
	return err == nil
}

// DetectDateFormat returns the layout that parses every sample, preferring
// day-first when a sample proves the first component exceeds 12.
func DetectDateFormat(samples []string) string {
	for _, layout := range dateFormats {
		ok := true
		for _, s := range samples {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, err := time.Parse(layout, s); err != nil {
				ok = false
				break
			}
		}
		if ok && len(samples) > 0 {
			return layout
		}
	}
	return ""
}

// DayFirstCertain reports whether any sample proves a day-first layout (the
// leading component exceeds 12).
func DayFirstCertain(samples []string) bool {
	for _, s := range samples {
		parts := strings.FieldsFunc(s, func(r rune) bool {
			return r == '/' || r == '-' || r == '.'
		})
		if len(parts) < 2 {
			continue
		}
		day := 0
		for _, c := range strings.TrimSpace(parts[0]) {
			if c < '0' || c > '9' {
				break
			}
			day = day*10 + int(c-'0')
		}
		if day > 12 && day <= 31 {
			return true
		}
	}
	return false
}

func fixCentury(t time.Time) time.Time {
	if t.Year() < 100 {
		return t.AddDate(2000, 0, 0)
	}
	return t
}
