package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "store number suffix", raw: "STARBUCKS #221", want: "Starbucks"},
		{name: "order reference", raw: "AMAZON.COM*A1B2C3", want: "Amazon.com"},
		{name: "card rail prefix", raw: "CARD PURCHASE STARBUCKS #221", want: "Starbucks"},
		{name: "pos prefix and trailing number", raw: "POS WALMART 1234567", want: "Walmart"},
		{name: "state suffix", raw: "NETFLIX.COM CA", want: "Netflix.com"},
		{name: "portuguese prefix", raw: "COMPRA CONTINENTE LISBOA", want: "Continente Lisboa"},
		{name: "collapses whitespace", raw: "  SHELL   OIL  ", want: "Shell Oil"},
		{name: "empty", raw: "", want: ""},
		{name: "already clean", raw: "Rent March", want: "Rent March"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanDescription(tt.raw))
		})
	}
}

func TestCleanDescription_Recomputable(t *testing.T) {
	raw := "DEBIT CARD STARBUCKS #221"
	once := CleanDescription(raw)
	assert.Equal(t, once, CleanDescription(raw))
}

func TestTokens(t *testing.T) {
	t.Run("splits on punctuation", func(t *testing.T) {
		assert.Equal(t, []string{"amazon", "com", "a1b2c3"}, Tokens("Amazon.com*A1B2C3"))
	})

	t.Run("keeps digits and drops single letters", func(t *testing.T) {
		assert.Equal(t, []string{"7", "eleven"}, Tokens("A 7-Eleven"))
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, Tokens(""))
	})
}
