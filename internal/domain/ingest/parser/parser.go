// Package parser reads delimited statement files into raw rows. It uses
// gocsv for struct-based unmarshaling of well-known layouts and falls back
// to positional extraction driven by detected column indices.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/sniffer"
)

var ErrNoRows = errors.New("parser: no data rows")

// Config configures delimited parsing behavior.
type Config struct {
	Delimiter rune // 0 = use the sniffed delimiter
	SkipLines int  // lines to discard before the header
}

// Parser reads delimited statement data into raw rows.
type Parser struct {
	config Config
}

// New creates a parser with the given configuration.
func New(config Config) *Parser {
	return &Parser{config: config}
}

// TaggedRow unmarshals well-known statement layouts directly by header name.
// The tags cover the common English, Portuguese, Spanish and German exports.
type TaggedRow struct {
	Date      string `csv:"date"`
	DataMov   string `csv:"data mov."`
	Fecha     string `csv:"fecha"`
	Datum     string `csv:"datum"`

	Description string `csv:"description"`
	Descricao   string `csv:"descrição"`
	Descripcion string `csv:"descripción"`
	Payee       string `csv:"payee"`
	Details     string `csv:"details"`
	Memo        string `csv:"memo"`

	Amount  string `csv:"amount"`
	Valor   string `csv:"valor"`
	Importe string `csv:"importe"`
	Betrag  string `csv:"betrag"`

	Debit      string `csv:"debit"`
	Withdrawal string `csv:"withdrawal"`
	Debito     string `csv:"débito"`

	Credit  string `csv:"credit"`
	Deposit string `csv:"deposit"`
	Credito string `csv:"crédito"`

	Balance   string `csv:"balance"`
	Saldo     string `csv:"saldo"`
	Reference string `csv:"reference"`
}

// ParseTagged parses a comma-delimited file whose headers match the tagged
// layout. Returns ErrNoRows when nothing unmarshals, so callers can fall
// back to the positional path.
func (p *Parser) ParseTagged(reader io.Reader) ([]ingest.RawRow, error) {
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		if p.config.Delimiter != 0 {
			r.Comma = p.config.Delimiter
		}
		r.LazyQuotes = true
		r.TrimLeadingSpace = true
		return r
	})

	var tagged []TaggedRow
	if err := gocsv.Unmarshal(reader, &tagged); err != nil {
		return nil, fmt.Errorf("parse tagged csv: %w", err)
	}
	if len(tagged) == 0 {
		return nil, ErrNoRows
	}

	rows := make([]ingest.RawRow, 0, len(tagged))
	for i, t := range tagged {
		row := ingest.RawRow{
			Line:        i + 2, // 1-indexed plus the header
			Date:        coalesce(t.Date, t.DataMov, t.Fecha, t.Datum),
			Description: coalesce(t.Description, t.Descricao, t.Descripcion, t.Payee, t.Details, t.Memo),
			Amount:      coalesce(t.Amount, t.Valor, t.Importe, t.Betrag),
			Debit:       coalesce(t.Debit, t.Withdrawal, t.Debito),
			Credit:      coalesce(t.Credit, t.Deposit, t.Credito),
			Balance:     coalesce(t.Balance, t.Saldo),
			Reference:   t.Reference,
		}
		if row.Date == "" && row.Description == "" {
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// ParsePositional parses delimited data using the column indices detected by
// the sniffer. Garbage rows embedded in the data section (running balance
// lines, repeated page headers) are dropped, not errored.
func (p *Parser) ParsePositional(data []byte, header sniffer.HeaderResult) ([]ingest.RawRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	delim := header.Delimiter
	if p.config.Delimiter != 0 {
		delim = p.config.Delimiter
	}
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	cols := header.Columns
	var rows []ingest.RawRow
	line := 0

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			// Ragged or malformed physical line. Skip it; the assembler
			// accounts for dropped rows from the total.
			continue
		}
		if line <= header.HeaderRow+1+p.config.SkipLines {
			continue
		}
		if sniffer.IsGarbageLine(strings.Join(record, string(delim)), len(record)-1) {
			continue
		}

		get := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		row := ingest.RawRow{
			Line:        line,
			Date:        get(cols.Date),
			Description: get(cols.Description),
			Amount:      get(cols.Amount),
			Debit:       get(cols.Debit),
			Credit:      get(cols.Credit),
			Balance:     get(cols.Balance),
			Reference:   get(cols.Reference),
		}
		if row.Date == "" && row.Description == "" && row.Amount == "" {
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	return rows, nil
}

// coalesce returns the first non-empty trimmed value.
func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
