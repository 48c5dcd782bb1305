package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	t.Run("header below preamble junk", func(t *testing.T) {
		data := []byte("Acme Bank\n" +
			"Statement Period: 2024-01-01 to 2024-01-31\n" +
			"\n" +
			"Date,Description,Amount,Balance\n" +
			"15/01/2024,STARBUCKS #221,-4.50,1200.00\n" +
			"16/01/2024,\"SMITH, JOHN\",-20.00,1180.00\n" +
			"17/01/2024,ACME PAYROLL,2500.00,3680.00\n")

		got, err := Detect(data)
		require.NoError(t, err)

		assert.Equal(t, ',', got.Delimiter)
		assert.Equal(t, 3, got.HeaderRow)
		assert.Equal(t, 0, got.Columns.Date)
		assert.Equal(t, 1, got.Columns.Description)
		assert.Equal(t, 2, got.Columns.Amount)
		assert.Equal(t, 3, got.Columns.Balance)
		assert.False(t, got.Columns.HasSplitColumns())
		assert.NotEmpty(t, got.Fingerprint)

		assert.False(t, got.Dialect.IsEuropeanFormat)
		assert.True(t, got.Dialect.DayFirst)
		assert.Equal(t, "02/01/2006", got.Dialect.DateFormat)
	})

	t.Run("semicolon delimited european export", func(t *testing.T) {
		data := []byte("Data Mov;Descrição;Montante;Saldo\n" +
			"15/01/2024;COMPRA CONTINENTE;-1.234,56;2.500,00\n" +
			"16/01/2024;TRF ORDENADO;1.500,00;4.000,00\n")

		got, err := Detect(data)
		require.NoError(t, err)

		assert.Equal(t, ';', got.Delimiter)
		assert.Equal(t, 0, got.HeaderRow)
		assert.True(t, got.Dialect.IsEuropeanFormat)
		assert.True(t, got.Dialect.DayFirst)
	})

	t.Run("split debit and credit columns", func(t *testing.T) {
		data := []byte("Date,Details,Paid Out,Paid In,Balance\n" +
			"15/01/2024,STARBUCKS,4.50,,1200.00\n" +
			"16/01/2024,SALARY,,2500.00,3700.00\n")

		got, err := Detect(data)
		require.NoError(t, err)

		assert.True(t, got.Columns.HasSplitColumns())
		assert.Equal(t, 2, got.Columns.Debit)
		assert.Equal(t, 3, got.Columns.Credit)
	})

	t.Run("rejects header when date column holds money", func(t *testing.T) {
		data := []byte("Date,Description,Amount\n" +
			"45.00,STARBUCKS,12.00\n" +
			"52.10,SHELL,9.00\n")

		_, err := Detect(data)
		assert.ErrorIs(t, err, ErrNoHeaderFound)
	})

	t.Run("rejects header when description column holds money", func(t *testing.T) {
		data := []byte("Date,Description,Amount\n" +
			"15/01/2024,45.00,12.00\n")

		_, err := Detect(data)
		assert.ErrorIs(t, err, ErrNoHeaderFound)
	})

	t.Run("rejects when no money column validates", func(t *testing.T) {
		data := []byte("Date,Description,Amount\n" +
			"15/01/2024,STARBUCKS,pending\n")

		_, err := Detect(data)
		assert.ErrorIs(t, err, ErrNoHeaderFound)
	})

	t.Run("free text has no header", func(t *testing.T) {
		_, err := Detect([]byte("Dear customer,\nthank you for banking with us.\n"))
		assert.ErrorIs(t, err, ErrNoHeaderFound)
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := Detect([]byte("  \n "))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})
}

func TestIsGarbageLine(t *testing.T) {
	assert.True(t, IsGarbageLine("", 0))
	assert.True(t, IsGarbageLine("Page 3", 0))
	assert.True(t, IsGarbageLine("Opening Balance,,1000.00", 2))
	assert.True(t, IsGarbageLine("TOTAL,,3680.00", 2))
	assert.True(t, IsGarbageLine("Acme Bank", 0))
	assert.False(t, IsGarbageLine("15/01/2024,STARBUCKS,-4.50", 2))
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"Date", "Description", "Amount"})
	b := Fingerprint([]string{" DATE ", "description!", "AMOUNT"})
	c := Fingerprint([]string{"Data Mov", "Descrição", "Montante"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
