// Package money provides currency-safe amounts for the statement pipeline
// using integer minor units (cents) and ISO-4217 currency codes. Arithmetic
// goes through go-money; precision conversions through shopspring/decimal.
package money

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217).
const (
	USD = "USD"
	EUR = "EUR"
	GBP = "GBP"
	CHF = "CHF"
	CAD = "CAD"
	AUD = "AUD"
	BRL = "BRL"
)

// Money is a monetary value with currency, stored in minor units.
type Money struct {
	m *money.Money
}

// New creates a Money value from cents and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// Zero returns a zero value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// NewFromDecimal converts a decimal amount to Money, respecting the
// currency's fraction digits.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(USD)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, currencyCode)
}

// CentsFromDecimal converts a decimal amount to integer cents for the given
// currency without constructing a Money value.
func CentsFromDecimal(amount decimal.Decimal, currencyCode string) int64 {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(USD)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	return amount.Mul(multiplier).Round(0).IntPart()
}

// ValidCurrency reports whether the code is a known ISO-4217 currency.
func ValidCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(strings.TrimSpace(code))) != nil
}

// Amount returns the value in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero reports whether the amount is zero.
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative reports whether the amount is below zero.
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Abs returns the absolute value.
func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(USD)
	}
	return &Money{m: m.m.Absolute()}
}

// Negate returns the negated value.
func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return Zero(USD)
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two values of the same currency.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, fmt.Errorf("money add: %w", err)
	}
	return &Money{m: result}, nil
}

// Display formats the value with its currency symbol, e.g. "-$4.75".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Display()
}

// String formats the bare decimal value, e.g. "-4.75".
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0"
	}
	currency := m.m.Currency()
	d := decimal.New(m.m.Amount(), -int32(currency.Fraction))
	return d.StringFixed(int32(currency.Fraction))
}
