package normalizer

import (
	"strings"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest"
)

// liabilitySampleSize caps how many early rows the detector inspects.
const liabilitySampleSize = 20

// Merchants that show up with a positive printed sign on credit-card
// statements. Votes for "this document belongs to a liability account".
var expenseKeywords = []string{
	"restaurant", "cafe", "coffee", "starbucks", "mcdonald", "burger",
	"pizza", "grill", "market", "grocery", "supermarket", "pharmacy",
	"fuel", "gas", "shell", "chevron", "amazon", "walmart", "target",
	"uber", "lyft", "netflix", "spotify", "hotel", "airline", "parking",
	"store", "shop", "liquor",
}

// Strings that show up with a positive printed sign on checking statements.
// Votes for "this is an asset account".
var incomeKeywords = []string{
	"payroll", "salary", "direct dep", "deposit", "interest", "dividend",
	"refund", "reimburse", "transfer in", "ach credit", "tax ref",
	"pension", "social security", "cashback",
}

// DetectLiability samples early rows and guesses whether the document belongs
// to a liability account: if positive-signed rows look like expense merchants
// more often than like income, the printed convention is inverted.
//
// This is a fallback for undeclared account types only. Callers must not
// invoke it when the user confirmed the account type; auto-detection is never
// an authority over an explicit declaration.
func DetectLiability(rows []ingest.RawRow, european bool) bool {
	expenseVotes, incomeVotes := 0, 0

	sampled := 0
	for _, row := range rows {
		if sampled >= liabilitySampleSize {
			break
		}
		if row.HasSplitColumns() || row.Amount == "" {
			continue
		}
		cents, suffix, err := ParseAmountCents(row.Amount, european)
		if err != nil || cents <= 0 || suffix != SignNone {
			continue
		}
		sampled++

		desc := strings.ToLower(row.Description)
		if matchesAny(desc, expenseKeywords) {
			expenseVotes++
		} else if matchesAny(desc, incomeKeywords) {
			incomeVotes++
		}
	}

	return expenseVotes > incomeVotes
}

func matchesAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
