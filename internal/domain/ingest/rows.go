// Package ingest holds the row-level types shared by the extraction stages:
// the header/column mapper, the PDF layout reconstructor, the sign normalizer
// and the transaction assembler all exchange RawRow values.
package ingest

// SectionTag labels a statement section inferred from a PDF section header.
// A tag forces the transaction sign regardless of the printed digit.
type SectionTag string

const (
	SectionNone    SectionTag = ""
	SectionCredits SectionTag = "credits"
	SectionDebits  SectionTag = "debits"
	SectionFees    SectionTag = "fees"
	SectionChecks  SectionTag = "checks"
)

// ForcesCredit reports whether the section forces a positive (inflow) sign.
func (s SectionTag) ForcesCredit() bool {
	return s == SectionCredits
}

// ForcesDebit reports whether the section forces a negative (outflow) sign.
func (s SectionTag) ForcesDebit() bool {
	return s == SectionDebits || s == SectionFees || s == SectionChecks
}

// RawRow is one transaction-shaped record extracted from a source document
// before sign normalization and assembly. All fields are raw source text.
type RawRow struct {
	Line        int
	Date        string
	Description string

	// Amount is the single-column raw value; Debit/Credit are the
	// split-column raw values. A row carries one or the other.
	Amount string
	Debit  string
	Credit string

	Balance   string
	Reference string

	// Section is the nearest preceding statement section header, PDF path
	// only.
	Section SectionTag
}

// HasSplitColumns reports whether the row arrived with separate debit/credit
// columns.
func (r *RawRow) HasSplitColumns() bool {
	return r.Debit != "" || r.Credit != ""
}
