package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ledger"
	"github.com/FACorreiaa/statement-ledger/pkg/money"
)

// Insights summarizes the quality of one import.
type Insights struct {
	JobID          uuid.UUID
	AccountName    string
	Currency       string
	ResolutionRate float64
	EarliestDate   *time.Time
	LatestDate     *time.Time
	TotalDebits    int64
	TotalCredits   int64
	SuspenseCount  int
	RowsDropped    int
	Issues         []Issue
}

// FormattedDebits renders the debit total in the account currency.
func (i *Insights) FormattedDebits() string {
	return money.New(i.TotalDebits, i.Currency).Display()
}

// FormattedCredits renders the credit total in the account currency.
func (i *Insights) FormattedCredits() string {
	return money.New(i.TotalCredits, i.Currency).Display()
}

// Issue flags one data quality problem worth surfacing to the operator.
type Issue struct {
	Type         string `json:"type"`
	AffectedRows int    `json:"affected_rows"`
	SampleValue  string `json:"sample_value"`
	Suggestion   string `json:"suggestion"`
}

func computeInsights(jobID uuid.UUID, account ledger.BankAccount, txs []ledger.Transaction, diag ledger.ImportDiagnostics) *Insights {
	currency := account.Currency
	if !money.ValidCurrency(currency) {
		currency = money.USD
	}
	ins := &Insights{
		JobID:       jobID,
		AccountName: account.Name,
		Currency:    currency,
		RowsDropped: diag.RowsDropped,
	}

	resolved := 0
	for i := range txs {
		tx := &txs[i]
		ins.TotalDebits += tx.DebitCents
		ins.TotalCredits += tx.CreditCents

		if tx.Resolved() {
			resolved++
		} else if tx.SourceStrategy == ledger.StrategyUnresolved {
			ins.SuspenseCount++
		}

		d := tx.Date
		if ins.EarliestDate == nil || d.Before(*ins.EarliestDate) {
			earliest := d
			ins.EarliestDate = &earliest
		}
		if ins.LatestDate == nil || d.After(*ins.LatestDate) {
			latest := d
			ins.LatestDate = &latest
		}
	}
	if len(txs) > 0 {
		ins.ResolutionRate = float64(resolved) / float64(len(txs))
	}

	ins.Issues = collectIssues(diag, ins)
	return ins
}

func collectIssues(diag ledger.ImportDiagnostics, ins *Insights) []Issue {
	var issues []Issue

	byField := map[string]*Issue{}
	for _, re := range diag.RowErrors {
		iss, ok := byField[re.Field]
		if !ok {
			iss = &Issue{
				Type:       "unparseable_" + re.Field,
				Suggestion: "review the column mapping or the file's regional format",
			}
			byField[re.Field] = iss
		}
		iss.AffectedRows++
		if iss.SampleValue == "" {
			iss.SampleValue = re.Raw
		}
	}
	for _, iss := range byField {
		issues = append(issues, *iss)
	}

	if diag.DuplicatesSkipped > 0 {
		issues = append(issues, Issue{
			Type:         "duplicates",
			AffectedRows: diag.DuplicatesSkipped,
			Suggestion:   "the file may overlap a previous statement period",
		})
	}
	if ins.SuspenseCount > 0 {
		issues = append(issues, Issue{
			Type:         "suspense_bookings",
			AffectedRows: ins.SuspenseCount,
			Suggestion:   "review and confirm vendors to teach the matcher",
		})
	}
	return issues
}
