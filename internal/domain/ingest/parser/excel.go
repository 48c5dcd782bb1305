package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// preferred sheet names, checked case-insensitively before falling back to
// the first sheet.
var preferredSheets = []string{
	"transactions", "statement", "movimentos", "extrato", "data", "sheet1",
}

// ExcelToDelimited flattens the statement sheet of an XLSX workbook into
// comma-delimited bytes so the workbook flows through the same sniffer and
// positional parser as a native CSV.
func ExcelToDelimited(reader io.Reader) ([]byte, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := findStatementSheet(f)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("flatten sheet %s: %w", sheet, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flatten sheet %s: %w", sheet, err)
	}
	return buf.Bytes(), nil
}

func findStatementSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}
	for _, preferred := range preferredSheets {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}
