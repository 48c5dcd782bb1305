// Package ledger defines the canonical entities produced and consumed by the
// statement pipeline: transactions, bank accounts, vendors and learned
// resolution patterns.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Strategy identifies which cascade stage produced a vendor resolution.
type Strategy string

const (
	StrategyExact      Strategy = "exact"
	StrategyHistorical Strategy = "historical"
	StrategyContains   Strategy = "contains"
	StrategyTokenSet   Strategy = "token_set"
	StrategyFuzzy      Strategy = "fuzzy"
	StrategyPhonetic   Strategy = "phonetic"
	StrategyBayesian   Strategy = "bayesian"
	StrategyExternal   Strategy = "external"
	StrategyUnresolved Strategy = "unresolved"
)

// AccountType classifies an institution-side account.
type AccountType string

const (
	AccountChecking     AccountType = "checking"
	AccountSavings      AccountType = "savings"
	AccountCreditCard   AccountType = "credit_card"
	AccountLineOfCredit AccountType = "line_of_credit"
)

// IsLiability reports whether the account type carries the inverted sign
// convention of credit cards and credit lines.
func (t AccountType) IsLiability() bool {
	return t == AccountCreditCard || t == AccountLineOfCredit
}

// BankAccount is an institution-side account owning imported transactions.
type BankAccount struct {
	ID       uuid.UUID
	Name     string
	Type     AccountType
	Currency string

	// TypeConfirmed is true when the user explicitly declared the account
	// type. The liability auto-detector never runs for confirmed accounts.
	TypeConfirmed bool
}

// IsLiability returns the polarity convention for this account.
func (a *BankAccount) IsLiability() bool {
	return a.Type.IsLiability()
}

// Transaction represents one ledger movement extracted from a source document.
//
// DescriptionRaw is the audit trail and is never rewritten after assembly.
// Exactly one of DebitCents/CreditCents is nonzero for a finalized movement.
type Transaction struct {
	ID               uuid.UUID
	Date             time.Time
	DescriptionRaw   string
	DescriptionClean string
	DebitCents       int64
	CreditCents      int64
	BalanceCents     *int64
	AccountID        uuid.UUID

	// Resolution metadata, attached by the vendor cascade.
	VendorID       *uuid.UUID
	GLAccountCode  string
	Confidence     float64
	SourceStrategy Strategy
}

// SignedCents returns the canonical signed amount: expenses negative, income
// positive.
func (t *Transaction) SignedCents() int64 {
	return t.CreditCents - t.DebitCents
}

// Valid reports whether the transaction satisfies the magnitude invariant.
// Invalid transactions are dropped by the assembler, never persisted.
func (t *Transaction) Valid() bool {
	if t.DebitCents < 0 || t.CreditCents < 0 {
		return false
	}
	return t.DebitCents > 0 || t.CreditCents > 0
}

// Resolved reports whether the cascade attached a vendor or account.
func (t *Transaction) Resolved() bool {
	return t.SourceStrategy != "" && t.SourceStrategy != StrategyUnresolved
}

// Unresolve severs the resolution metadata, returning the transaction to the
// unresolved terminal state. Used when the matched vendor is deleted.
func (t *Transaction) Unresolve(suspenseCode string) {
	t.VendorID = nil
	t.GLAccountCode = suspenseCode
	t.Confidence = 0
	t.SourceStrategy = StrategyUnresolved
}

// Vendor is a canonical counterparty.
type Vendor struct {
	ID               uuid.UUID
	CanonicalName    string
	DefaultGLAccount string

	// Patterns are raw descriptions previously seen and confirmed for this
	// vendor, in confirmation order.
	Patterns []string

	// Weight accumulates reinforcement from confirmed matches, capped at 1.0.
	Weight float64
}

// PatternKind distinguishes how a learned pattern matches descriptions.
type PatternKind string

const (
	PatternExact  PatternKind = "exact"
	PatternTokens PatternKind = "tokens"
)

// LearnedPattern is a reinforcement record mapping a description pattern to a
// vendor and account.
type LearnedPattern struct {
	ID            uuid.UUID
	VendorID      uuid.UUID
	Pattern       string
	Kind          PatternKind
	GLAccountCode string
	Confidence    float64
}

// GLAccount is a chart-of-accounts entry.
type GLAccount struct {
	Code string
	Name string
	Type string
}

// ChartOfAccounts resolves ledger account codes. The pipeline uses it only to
// validate and format codes, never to infer them.
type ChartOfAccounts interface {
	Lookup(code string) (GLAccount, bool)
}

// RowError describes a single dropped source row.
type RowError struct {
	Line    int
	Field   string
	Message string
	Raw     string
}

// ImportDiagnostics summarizes row-level failures for a document. Row-level
// problems are data, not errors: they ride alongside the successful result.
type ImportDiagnostics struct {
	RowsTotal          int
	RowsDropped        int
	DuplicatesSkipped  int
	ClassifierFailures int
	RowErrors          []RowError
}
