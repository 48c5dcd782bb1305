package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest"
)

func TestDetectLiability(t *testing.T) {
	t.Run("positive expense merchants read as credit card", func(t *testing.T) {
		rows := []ingest.RawRow{
			{Description: "STARBUCKS #221", Amount: "4.50"},
			{Description: "SHELL GAS STATION", Amount: "52.00"},
			{Description: "AMAZON MARKETPLACE", Amount: "23.99"},
			{Description: "PAYMENT RECEIVED THANK YOU", Amount: "-200.00"},
		}
		assert.True(t, DetectLiability(rows, false))
	})

	t.Run("positive income reads as checking", func(t *testing.T) {
		rows := []ingest.RawRow{
			{Description: "ACME CORP PAYROLL", Amount: "2500.00"},
			{Description: "INTEREST PAID", Amount: "1.23"},
			{Description: "STARBUCKS #221", Amount: "-4.50"},
			{Description: "SHELL GAS STATION", Amount: "-52.00"},
		}
		assert.False(t, DetectLiability(rows, false))
	})

	t.Run("split columns never vote", func(t *testing.T) {
		rows := []ingest.RawRow{
			{Description: "STARBUCKS #221", Debit: "4.50"},
			{Description: "AMAZON MARKETPLACE", Debit: "23.99"},
		}
		assert.False(t, DetectLiability(rows, false))
	})

	t.Run("explicit suffix rows never vote", func(t *testing.T) {
		rows := []ingest.RawRow{
			{Description: "STARBUCKS #221", Amount: "4.50 DR"},
		}
		assert.False(t, DetectLiability(rows, false))
	})

	t.Run("no rows", func(t *testing.T) {
		assert.False(t, DetectLiability(nil, false))
	})
}
