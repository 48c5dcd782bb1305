// Package normalizer turns raw statement text into canonical values: signed
// amounts in cents, parsed dates and cleaned descriptions. Parsing never
// panics on malformed input; a bad cell degrades to a row-level error.
package normalizer

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotMoney indicates a cell that does not hold a monetary value.
var ErrNotMoney = errors.New("not a monetary value")

var currencySymbols = []string{"R$", "$", "€", "£", "¥", "₹", "CHF", "EUR", "USD", "GBP"}

// moneyShapeRe matches a full cell holding only a monetary value.
var moneyShapeRe = regexp.MustCompile(`^\(?-?[\d.,']+\)?-?$`)

// AmountSign captures an explicit sign marker carried by the raw text.
type AmountSign int

const (
	SignNone AmountSign = iota
	SignDebit
	SignCredit
)

// ParseAmountCents parses a raw statement amount into signed cents.
//
// Currency symbols, spaces and thousands separators are stripped; a
// parenthesized value or a trailing minus is negative; a trailing "CR"/"DR"
// marker is returned separately so section inference can rank it correctly.
func ParseAmountCents(raw string, european bool) (int64, AmountSign, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, SignNone, ErrNotMoney
	}

	suffix := SignNone
	upper := strings.ToUpper(s)
	switch {
	case strings.HasSuffix(upper, "CR"):
		suffix = SignCredit
		s = strings.TrimSpace(s[:len(s)-2])
	case strings.HasSuffix(upper, "DR"):
		suffix = SignDebit
		s = strings.TrimSpace(s[:len(s)-2])
	}

	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, suffix, ErrNotMoney
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}
	if strings.HasPrefix(s, "+") {
		s = strings.TrimPrefix(s, "+")
	}

	// Swiss thousands separator.
	s = strings.ReplaceAll(s, "'", "")

	if european {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, suffix, ErrNotMoney
	}

	cents := d.Mul(decimal.New(1, 2)).Round(0).IntPart()
	if negative {
		cents = -cents
	}
	return cents, suffix, nil
}

// LooksLikeMoney reports whether the cell is parseable as a pure monetary
// value. Used by the header mapper to disqualify money-shaped description
// columns.
func LooksLikeMoney(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	upper := strings.ToUpper(s)
	for _, suf := range []string{"CR", "DR"} {
		upper = strings.TrimSpace(strings.TrimSuffix(upper, suf))
	}
	for _, sym := range currencySymbols {
		upper = strings.ReplaceAll(upper, strings.ToUpper(sym), "")
	}
	upper = strings.ReplaceAll(upper, " ", "")
	if upper == "" || !moneyShapeRe.MatchString(upper) {
		return false
	}
	if !strings.ContainsAny(upper, "0123456789") {
		return false
	}
	_, _, err := ParseAmountCents(s, false)
	if err == nil {
		return true
	}
	_, _, err = ParseAmountCents(s, true)
	return err == nil
}

// AnalyzeAmountFormat inspects a raw amount and votes on the regional number
// format: >0 European (1.234,56), <0 US (1,234.56), 0 ambiguous.
func AnalyzeAmountFormat(val string) int {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, val)
	cleaned = strings.TrimPrefix(cleaned, "-")
	if cleaned == "" {
		return 0
	}

	hasComma := strings.Contains(cleaned, ",")
	hasDot := strings.Contains(cleaned, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
			return 1
		}
		return -1
	case hasComma:
		if len(cleaned)-strings.LastIndex(cleaned, ",") <= 3 {
			return 1
		}
	case hasDot:
		if len(cleaned)-strings.LastIndex(cleaned, ".") <= 3 {
			return -1
		}
	}
	return 0
}
