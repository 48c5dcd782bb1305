package normalizer

import (
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest"
)

// Movement is a canonical debit/credit pair in cents. Both values are
// non-negative magnitudes; at most one is nonzero after normalization.
type Movement struct {
	DebitCents  int64
	CreditCents int64
}

// SignInput carries everything the sign rule table needs for one row.
type SignInput struct {
	// Split-column magnitudes; SplitColumns is true when the source carried
	// separate debit/credit columns.
	SplitColumns bool
	DebitCents   int64
	CreditCents  int64

	// Single-column signed amount, with any explicit CR/DR suffix found on
	// the raw token.
	AmountCents int64
	Suffix      AmountSign

	Section     ingest.SectionTag
	IsLiability bool
}

// NormalizeSign applies the polarity rule table, first match wins:
//
//  1. split debit/credit columns need no inference;
//  2. a section tag forces the sign regardless of the printed digit;
//  3. a liability account inverts the printed convention (positive is a
//     purchase, negative a payment);
//  4. asset default: negative is outflow, positive is inflow.
//
// An explicit CR/DR suffix outranks rules 3–4 but never a section tag.
// Running the table on an already-normalized movement is a no-op.
func NormalizeSign(in SignInput) Movement {
	if in.SplitColumns {
		return Movement{DebitCents: abs64(in.DebitCents), CreditCents: abs64(in.CreditCents)}
	}

	magnitude := abs64(in.AmountCents)

	switch {
	case in.Section.ForcesCredit():
		return Movement{CreditCents: magnitude}
	case in.Section.ForcesDebit():
		return Movement{DebitCents: magnitude}
	}

	switch in.Suffix {
	case SignCredit:
		return Movement{CreditCents: magnitude}
	case SignDebit:
		return Movement{DebitCents: magnitude}
	}

	if in.IsLiability {
		if in.AmountCents >= 0 {
			return Movement{DebitCents: magnitude}
		}
		return Movement{CreditCents: magnitude}
	}

	if in.AmountCents < 0 {
		return Movement{DebitCents: magnitude}
	}
	return Movement{CreditCents: magnitude}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
