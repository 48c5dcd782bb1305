// Package assembler turns raw extracted rows into finalized ledger
// transactions. Row-level failures are diagnostics, not errors: bad rows are
// dropped and reported, the rest of the file still imports.
package assembler

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/normalizer"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
)

// Options configures one assembly run.
type Options struct {
	AccountID   uuid.UUID
	IsLiability bool

	// Dialect hints from the sniffer.
	EuropeanFormat bool
	DateFormat     string

	// SkipDuplicates drops repeated (date, description, amount) triples
	// inside a single file. Cross-file duplicates are the repository's job.
	SkipDuplicates bool
}

// Result is the outcome of assembling one document.
type Result struct {
	Transactions []ledger.Transaction
	Diagnostics  ledger.ImportDiagnostics
}

// Assemble converts raw rows into transactions, enforcing the movement
// invariant: exactly one of debit/credit positive, both non-negative.
func Assemble(rows []ingest.RawRow, opts Options) Result {
	res := Result{
		Transactions: make([]ledger.Transaction, 0, len(rows)),
	}
	res.Diagnostics.RowsTotal = len(rows)

	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		tx, rowErr := assembleRow(row, opts)
		if rowErr != nil {
			res.Diagnostics.RowsDropped++
			res.Diagnostics.RowErrors = append(res.Diagnostics.RowErrors, *rowErr)
			continue
		}

		if opts.SkipDuplicates {
			key := fmt.Sprintf("%s|%s|%d", tx.Date.Format("2006-01-02"), tx.DescriptionClean, tx.SignedCents())
			if seen[key] {
				res.Diagnostics.DuplicatesSkipped++
				continue
			}
			seen[key] = true
		}

		res.Transactions = append(res.Transactions, *tx)
	}

	return res
}

func assembleRow(row ingest.RawRow, opts Options) (*ledger.Transaction, *ledger.RowError) {
	date, err := normalizer.ParseFlexibleDate(row.Date, opts.DateFormat)
	if err != nil {
		return nil, &ledger.RowError{
			Line:    row.Line,
			Field:   "date",
			Message: "unparseable date",
			Raw:     row.Date,
		}
	}

	desc := strings.TrimSpace(row.Description)
	if desc == "" {
		return nil, &ledger.RowError{
			Line:    row.Line,
			Field:   "description",
			Message: "missing description",
		}
	}

	in := normalizer.SignInput{
		Section:     row.Section,
		IsLiability: opts.IsLiability,
	}

	if row.HasSplitColumns() {
		in.SplitColumns = true
		debit, err := optionalCents(row.Debit, opts.EuropeanFormat)
		if err != nil {
			return nil, &ledger.RowError{Line: row.Line, Field: "debit", Message: "unparseable amount", Raw: row.Debit}
		}
		credit, err := optionalCents(row.Credit, opts.EuropeanFormat)
		if err != nil {
			return nil, &ledger.RowError{Line: row.Line, Field: "credit", Message: "unparseable amount", Raw: row.Credit}
		}
		if debit == 0 && credit == 0 {
			return nil, &ledger.RowError{Line: row.Line, Field: "amount", Message: "empty debit and credit"}
		}
		in.DebitCents, in.CreditCents = debit, credit
	} else {
		if strings.TrimSpace(row.Amount) == "" {
			return nil, &ledger.RowError{Line: row.Line, Field: "amount", Message: "missing amount"}
		}
		cents, suffix, err := normalizer.ParseAmountCents(row.Amount, opts.EuropeanFormat)
		if err != nil {
			return nil, &ledger.RowError{Line: row.Line, Field: "amount", Message: "unparseable amount", Raw: row.Amount}
		}
		if cents == 0 {
			return nil, &ledger.RowError{Line: row.Line, Field: "amount", Message: "zero amount"}
		}
		in.AmountCents, in.Suffix = cents, suffix
	}

	movement := normalizer.NormalizeSign(in)

	tx := &ledger.Transaction{
		ID:               uuid.New(),
		Date:             date,
		DescriptionRaw:   desc,
		DescriptionClean: normalizer.CleanDescription(desc),
		DebitCents:       movement.DebitCents,
		CreditCents:      movement.CreditCents,
		AccountID:        opts.AccountID,
	}

	if balance, err := optionalCentsPtr(row.Balance, opts.EuropeanFormat); err == nil {
		tx.BalanceCents = balance
	}

	if !tx.Valid() {
		return nil, &ledger.RowError{
			Line:    row.Line,
			Field:   "amount",
			Message: "movement violates debit/credit invariant",
		}
	}
	return tx, nil
}

// optionalCents parses a possibly empty money cell into a magnitude.
func optionalCents(raw string, european bool) (int64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	cents, _, err := normalizer.ParseAmountCents(raw, european)
	if err != nil {
		return 0, err
	}
	if cents < 0 {
		cents = -cents
	}
	return cents, nil
}

func optionalCentsPtr(raw string, european bool) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	cents, _, err := normalizer.ParseAmountCents(raw, european)
	if err != nil {
		return nil, err
	}
	return &cents, nil
}
