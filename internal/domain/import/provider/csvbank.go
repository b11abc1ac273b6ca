package provider

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/doubloon-app/doubloon/internal/domain/import/normalizer"
)

// BankConfig describes one bank's CSV export layout.
type BankConfig struct {
	Name       string
	Delimiter  rune
	DateFormat string
	DateCol    string
	DescCol    string
	AmountCol  string
}

// Built-in bank layouts; the column names refer to the export's own header.
var bankConfigs = map[string]BankConfig{
	"intesa_sanpaolo": {
		Name:       "Intesa Sanpaolo",
		Delimiter:  ';',
		DateFormat: "DD/MM/YYYY",
		DateCol:    "Data",
		DescCol:    "Descrizione",
		AmountCol:  "Importo",
	},
	"unicredit": {
		Name:       "UniCredit",
		Delimiter:  ',',
		DateFormat: "DD-MM-YYYY",
		DateCol:    "Data Operazione",
		DescCol:    "Causale",
		AmountCol:  "Importo",
	},
}

// BankCodes lists the supported bank codes.
func BankCodes() []string {
	codes := make([]string, 0, len(bankConfigs))
	for code := range bankConfigs {
		codes = append(codes, code)
	}
	return codes
}

// CSVBank parses delimiter-separated exports using a per-bank column layout.
type CSVBank struct {
	code   string
	config BankConfig
}

// NewCSVBank returns a provider for the given bank code.
func NewCSVBank(code string) (*CSVBank, error) {
	config, ok := bankConfigs[code]
	if !ok {
		return nil, fmt.Errorf("bank %q not configured", code)
	}
	return &CSVBank{code: code, config: config}, nil
}

func (p *CSVBank) Name() string { return "csv_" + p.code }

func (p *CSVBank) Parse(ctx context.Context, data []byte) ([]StatementRow, *ParseStats, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = p.config.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := p.readHeader(reader)
	if err != nil {
		return nil, nil, err
	}

	dateIdx := indexOf(header, p.config.DateCol)
	descIdx := indexOf(header, p.config.DescCol)
	amountIdx := indexOf(header, p.config.AmountCol)
	if dateIdx < 0 || descIdx < 0 || amountIdx < 0 {
		return nil, nil, fmt.Errorf("export is missing expected columns for %s: %v", p.config.Name, header)
	}

	stats := &ParseStats{}
	var out []StatementRow

	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			stats.RowsRead++
			stats.RowsDropped++
			continue
		}
		stats.RowsRead++

		sr, ok := p.normalizeRecord(header, record, dateIdx, descIdx, amountIdx)
		if !ok {
			stats.RowsDropped++
			continue
		}
		stats.RowsYielded++
		out = append(out, sr)
	}

	return out, stats, nil
}

// readHeader skips leading blank lines and returns the first non-empty record.
func (p *CSVBank) readHeader(reader *csv.Reader) ([]string, error) {
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil, fmt.Errorf("export has no header row")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		if len(record) == 1 && normalizer.CleanDescription(record[0]) == "" {
			continue
		}
		return record, nil
	}
}

func (p *CSVBank) normalizeRecord(header, record []string, dateIdx, descIdx, amountIdx int) (StatementRow, bool) {
	maxIdx := len(record) - 1
	if dateIdx > maxIdx || descIdx > maxIdx || amountIdx > maxIdx {
		return StatementRow{}, false
	}

	date, err := normalizer.ParseFlexibleDate(record[dateIdx], p.config.DateFormat, time.UTC)
	if err != nil {
		return StatementRow{}, false
	}

	rawAmount := record[amountIdx]
	amount, ok := normalizer.ParseSmartAmount(rawAmount)
	if !ok {
		return StatementRow{}, false
	}

	description := normalizer.CleanDescription(record[descIdx])
	if description == "" {
		return StatementRow{}, false
	}

	original := make(map[string]string, len(header))
	for i, h := range header {
		if i < len(record) {
			original[h] = record[i]
		}
	}

	return StatementRow{
		TransactionDate: date,
		Amount:          amount,
		AmountRaw:       rawAmount,
		Description:     description,
		Currency:        "EUR",
		Original:        original,
	}, true
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if normalizer.CleanDescription(h) == name {
			return i
		}
	}
	return -1
}
