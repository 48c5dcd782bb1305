// Package sniffer locates the header row of a delimited statement export and
// maps logical transaction fields to column indices. Header words alone are
// never trusted: every candidate mapping is validated against sample data
// rows before it can win.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/FACorreiaa/statement-ledger/internal/domain/ingest/normalizer"
)

var (
	ErrEmptyFile     = errors.New("file is empty")
	ErrNoHeaderFound = errors.New("no usable header row found")
)

const (
	// maxHeaderScan bounds how deep into the file header detection looks.
	maxHeaderScan = 30
	// sampleRowCount is how many non-garbage data rows validate a candidate.
	sampleRowCount = 5
	// minHeaderScore is the acceptance floor for the best candidate.
	minHeaderScore = 12
)

// Per-field keyword vocabulary (multi-language, lowercase).
var fieldKeywords = map[string][]string{
	"date":        {"date", "data mov", "data", "fecha", "datum", "posted", "booking"},
	"description": {"description", "descri", "merchant", "payee", "details", "memo", "narrative", "particulars", "concepto"},
	"debit":       {"debit", "débito", "debito", "withdrawal", "cargo", "paid out", "money out"},
	"credit":      {"credit", "crédito", "credito", "deposit", "abono", "paid in", "money in"},
	"amount":      {"amount", "valor", "importe", "value", "montant", "montante"},
	"balance":     {"balance", "saldo", "running"},
	"reference":   {"reference", "ref.", "ref no", "cheque", "check no", "doc no"},
}

// fieldOrder fixes keyword-assignment priority so "credit" beats "card" style
// overlaps deterministically.
var fieldOrder = []string{"date", "description", "debit", "credit", "amount", "balance", "reference"}

var pageMarkerRe = regexp.MustCompile(`(?i)^\s*(page\s+\d+|\d{1,3})\s*$`)

// garbagePhrases disqualify summary and pagination lines from both header
// detection and data extraction.
var garbagePhrases = []string{
	"opening balance", "closing balance", "beginning balance", "ending balance",
	"balance forward", "brought forward", "carried forward", "total",
	"continued on next page", "statement period",
}

// FieldColumns maps logical fields to column indices, -1 when absent.
type FieldColumns struct {
	Date        int
	Description int
	Debit       int
	Credit      int
	Amount      int
	Balance     int
	Reference   int
}

// HasSplitColumns reports whether separate debit/credit columns were mapped.
func (c FieldColumns) HasSplitColumns() bool {
	return c.Debit >= 0 && c.Credit >= 0
}

// hasMoney reports whether any monetary column was mapped.
func (c FieldColumns) hasMoney() bool {
	return c.Amount >= 0 || c.Debit >= 0 || c.Credit >= 0
}

func emptyColumns() FieldColumns {
	return FieldColumns{Date: -1, Description: -1, Debit: -1, Credit: -1, Amount: -1, Balance: -1, Reference: -1}
}

// RegionalDialect is the inferred number/date formatting of the document.
type RegionalDialect struct {
	IsEuropeanFormat bool
	DayFirst         bool
	DateFormat       string
	Confidence       float64
}

// HeaderResult is a validated header detection outcome.
type HeaderResult struct {
	Delimiter   rune
	HeaderRow   int
	Headers     []string
	Columns     FieldColumns
	Score       int
	Fingerprint string
	Dialect     RegionalDialect
	SampleRows  [][]string
}

// Detect scans the document for a header row, validates the implied column
// mapping against sample data rows, and returns the best candidate.
//
// A candidate whose date column fails to parse on any sampled non-empty cell,
// or whose description column holds money-shaped values, is rejected outright
// rather than down-scored: header words alone produce false positives on
// statements with unconventional layouts. Ties favor the earlier row.
func Detect(data []byte) (*HeaderResult, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := splitLines(data)

	var best *HeaderResult
	for i, line := range lines {
		if i >= maxHeaderScan {
			break
		}
		delimiter, count := detectDelimiter(line)
		if IsGarbageLine(line, count) {
			continue
		}

		cells := splitCells(line, delimiter)
		columns, keywordScore := mapColumns(cells)
		if keywordScore == 0 {
			continue
		}
		if columns.Date < 0 || columns.Description < 0 || !columns.hasMoney() {
			continue
		}

		samples := sampleDataRows(lines, i+1, delimiter, sampleRowCount)
		validationScore, ok := validateCandidate(columns, samples)
		if !ok {
			continue
		}

		score := keywordScore*10 + validationScore
		if best == nil || score > best.Score {
			best = &HeaderResult{
				Delimiter:  delimiter,
				HeaderRow:  i,
				Headers:    cells,
				Columns:    columns,
				Score:      score,
				SampleRows: samples,
			}
		}
	}

	if best == nil || best.Score < minHeaderScore {
		return nil, ErrNoHeaderFound
	}

	best.Fingerprint = Fingerprint(best.Headers)
	best.Dialect = probeDialect(best.SampleRows, best.Columns)
	return best, nil
}

// IsGarbageLine reports whether a line must be excluded from header detection
// and data extraction: balance/total summaries, page markers, or rows with
// fewer than 2 delimiters.
func IsGarbageLine(line string, delimiterCount int) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	if delimiterCount < 2 {
		return true
	}
	lower := strings.ToLower(trimmed)
	for _, phrase := range garbagePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return pageMarkerRe.MatchString(trimmed)
}

// mapColumns assigns each header cell to the first logical field whose
// vocabulary it matches, and returns the number of matched keywords.
func mapColumns(cells []string) (FieldColumns, int) {
	columns := emptyColumns()
	matches := 0

	for idx, cell := range cells {
		lower := strings.ToLower(strings.TrimSpace(cell))
		if lower == "" {
			continue
		}
		for _, field := range fieldOrder {
			if columnFor(&columns, field) != nil && *columnFor(&columns, field) >= 0 {
				continue
			}
			if !matchesField(lower, field) {
				continue
			}
			*columnFor(&columns, field) = idx
			matches++
			break
		}
	}
	return columns, matches
}

func matchesField(lower, field string) bool {
	for _, kw := range fieldKeywords[field] {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func columnFor(c *FieldColumns, field string) *int {
	switch field {
	case "date":
		return &c.Date
	case "description":
		return &c.Description
	case "debit":
		return &c.Debit
	case "credit":
		return &c.Credit
	case "amount":
		return &c.Amount
	case "balance":
		return &c.Balance
	case "reference":
		return &c.Reference
	}
	return nil
}

// validateCandidate checks a column mapping against sampled data rows.
// Returns (score, false) on any fatal mismatch.
func validateCandidate(columns FieldColumns, samples [][]string) (int, bool) {
	score := 0
	moneyParsed := false

	for _, row := range samples {
		if date := cellAt(row, columns.Date); date != "" {
			if !normalizer.LooksLikeDate(date) {
				return 0, false
			}
			score++
		}
		if desc := cellAt(row, columns.Description); desc != "" {
			if normalizer.LooksLikeMoney(desc) {
				return 0, false
			}
			score++
		}
		for _, col := range []int{columns.Amount, columns.Debit, columns.Credit} {
			if cell := cellAt(row, col); cell != "" && normalizer.LooksLikeMoney(cell) {
				moneyParsed = true
			}
		}
	}

	if len(samples) > 0 && !moneyParsed {
		return 0, false
	}
	if moneyParsed {
		score += 2
	}
	return score, true
}

// sampleDataRows collects up to max non-garbage rows starting at startLine.
func sampleDataRows(lines []string, startLine int, delimiter rune, max int) [][]string {
	var rows [][]string
	for i := startLine; i < len(lines) && len(rows) < max; i++ {
		line := lines[i]
		count := strings.Count(line, string(delimiter))
		if IsGarbageLine(line, count) {
			continue
		}
		rows = append(rows, splitCells(line, delimiter))
	}
	return rows
}

// Fingerprint hashes normalized header names so a recognized bank layout can
// reuse its saved mapping.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

// probeDialect infers the regional number and date formats from sample rows.
func probeDialect(samples [][]string, columns FieldColumns) RegionalDialect {
	dialect := RegionalDialect{Confidence: 0.5}

	europeanHints, usHints := 0, 0
	var dateSamples []string

	for _, row := range samples {
		for _, col := range []int{columns.Amount, columns.Debit, columns.Credit, columns.Balance} {
			if cell := cellAt(row, col); cell != "" {
				switch hint := normalizer.AnalyzeAmountFormat(cell); {
				case hint > 0:
					europeanHints++
				case hint < 0:
					usHints++
				}
			}
		}
		if date := cellAt(row, columns.Date); date != "" {
			dateSamples = append(dateSamples, date)
		}
	}

	dialect.IsEuropeanFormat = europeanHints > usHints
	if total := europeanHints + usHints; total > 0 {
		winning := usHints
		if europeanHints > usHints {
			winning = europeanHints
		}
		dialect.Confidence = float64(winning) / float64(total)
	}

	dialect.DayFirst = normalizer.DayFirstCertain(dateSamples) || dialect.IsEuropeanFormat
	dialect.DateFormat = normalizer.DetectDateFormat(dateSamples)
	return dialect
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitLines(data []byte) []string {
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// splitCells parses one line with encoding/csv so quoted cells survive
// embedded delimiters.
func splitCells(line string, delimiter rune) []string {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	cells, err := reader.Read()
	if err != nil && err != io.EOF {
		cells = strings.Split(line, string(delimiter))
	}
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func detectDelimiter(line string) (rune, int) {
	bestDelimiter := ','
	bestCount := 0
	for _, d := range []rune{';', '\t', ',', '|'} {
		if count := strings.Count(line, string(d)); count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}
