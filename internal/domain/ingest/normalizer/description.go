package normalizer

import (
	"regexp"
	"strings"
)

// Common payment-rail prefixes that carry no counterparty information.
var descriptionPrefixes = []string{
	"CARD PURCHASE ", "DEBIT CARD ", "CREDIT CARD ", "POS ",
	"PURCHASE ", "PAYMENT ", "PMT ", "ACH ", "EFT ",
	"COMPRA ", "PAGAMENTO ", "PAG*", "TRF ", "TRANSF ",
	"VISA ", "MASTERCARD ", "MAESTRO ", "CHECKCARD ",
	"RECURRING ", "WEB ID: ",
}

var (
	refSuffixRe   = regexp.MustCompile(`\s*[#*]\s*[A-Za-z0-9]{1,12}$`)
	trailingNumRe = regexp.MustCompile(`\s+\d{4,}$`)
	phoneRe       = regexp.MustCompile(`\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b`)
	dateSuffixRe  = regexp.MustCompile(`\s+\d{1,2}/\d{1,2}/?$`)
	stateSuffixRe = regexp.MustCompile(`\s+(?:AL|AK|AZ|AR|CA|CO|CT|DE|FL|GA|HI|ID|IL|IN|IA|KS|KY|LA|ME|MD|MA|MI|MN|MS|MO|MT|NE|NV|NH|NJ|NM|NY|NC|ND|OH|OK|OR|PA|RI|SC|SD|TN|TX|UT|VT|VA|WA|WV|WI|WY)$`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// CleanDescription strips payment-rail junk from a raw description and
// applies display casing. The raw text is kept separately for audit; the
// cleaned form is recomputable.
func CleanDescription(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	upper := strings.ToUpper(s)
	for _, prefix := range descriptionPrefixes {
		if strings.HasPrefix(upper, prefix) {
			s = strings.TrimSpace(s[len(prefix):])
			break
		}
	}

	s = phoneRe.ReplaceAllString(s, "")
	s = refSuffixRe.ReplaceAllString(s, "")
	s = dateSuffixRe.ReplaceAllString(s, "")
	s = trailingNumRe.ReplaceAllString(s, "")
	s = stateSuffixRe.ReplaceAllString(s, "")
	s = spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")

	return titleCase(s)
}

// Tokens splits a cleaned description into lowercase word tokens for
// token-set matching and the Bayes scorer.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 1 || (len(f) == 1 && f[0] >= '0' && f[0] <= '9') {
			out = append(out, f)
		}
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		if len(word) == 0 {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}
