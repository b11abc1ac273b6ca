package provider

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/doubloon-app/doubloon/internal/domain/import/normalizer"
	"github.com/doubloon-app/doubloon/internal/domain/import/sniffer"
)

// IntesaExcel parses the XLSX movement export of Intesa Sanpaolo home
// banking. The export buries the header row under a variable-length
// preamble, so each sheet is scanned with the header locator and the first
// sheet that yields a plausible header wins.
type IntesaExcel struct{}

func NewIntesaExcel() *IntesaExcel { return &IntesaExcel{} }

func (p *IntesaExcel) Name() string { return "intesa_excel" }

func (p *IntesaExcel) Parse(ctx context.Context, data []byte) ([]StatementRow, *ParseStats, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet, headerIdx, err := p.findHeaderSheet(f)
	if err != nil {
		return nil, nil, err
	}

	headers := sniffer.CanonicalizeHeaders(sheet[headerIdx])
	stats := &ParseStats{}
	var out []StatementRow

	for _, row := range sheet[headerIdx+1:] {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		stats.RowsRead++

		sr, ok := p.normalizeRow(headers, row)
		if !ok {
			stats.RowsDropped++
			continue
		}
		stats.RowsYielded++
		out = append(out, sr)
	}

	return out, stats, nil
}

// findHeaderSheet returns the rows of the first sheet containing a
// detectable header row. Sheets where only the fallback guess applies are
// still accepted when no better sheet exists, matching the tolerant
// never-fail contract of the locator.
func (p *IntesaExcel) findHeaderSheet(f *excelize.File) ([][]string, int, error) {
	var firstSheet [][]string

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		if firstSheet == nil {
			firstSheet = rows
		}

		idx := sniffer.LocateHeaderRow(rows)
		if idx < len(rows) && headerLooksReal(rows[idx]) {
			return rows, idx, nil
		}
	}

	if firstSheet == nil {
		return nil, 0, fmt.Errorf("workbook has no readable sheets")
	}
	return firstSheet, sniffer.LocateHeaderRow(firstSheet), nil
}

// headerLooksReal distinguishes a located header from a bare fallback guess.
func headerLooksReal(row []string) bool {
	canon := sniffer.CanonicalizeHeaders(row)
	for i, c := range canon {
		if c != row[i] {
			return true
		}
	}
	return false
}

func (p *IntesaExcel) normalizeRow(headers []string, row []string) (StatementRow, bool) {
	cells := make(map[string]string, len(headers))
	original := make(map[string]string, len(headers))
	for i, h := range headers {
		val := ""
		if i < len(row) {
			val = row[i]
		}
		cells[h] = val
		original[h] = val
	}

	rawAmount := cells[sniffer.ColAmount]
	amount, amountOK := normalizer.ParseSmartAmount(rawAmount)

	date, dateErr := normalizer.ParseFlexibleDate(cells[sniffer.ColDate], "DD/MM/YYYY", time.UTC)
	description := normalizer.CleanDescription(cells[sniffer.ColOperation])

	// Partial-import tolerance: a row without the essential triple is
	// skipped, never fatal.
	if dateErr != nil || !amountOK || description == "" {
		return StatementRow{}, false
	}

	return StatementRow{
		TransactionDate: date,
		Amount:          amount,
		AmountRaw:       rawAmount,
		Description:     description,
		Detail:          normalizer.CleanDescription(cells[sniffer.ColDetail]),
		Account:         normalizer.CleanDescription(cells[sniffer.ColAccount]),
		Currency:        normalizer.CleanDescription(cells[sniffer.ColCurrency]),
		CategoryHint:    normalizer.CleanDescription(cells[sniffer.ColCategory]),
		Original:        original,
	}, true
}
