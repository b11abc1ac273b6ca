package normalizer

import (
	"fmt"
	"strconv"
	"testing"
	"time"
)

func TestParseSmartAmount(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		// European decimal comma
		{"1.234,56", 1234.56},
		{"2.500,00", 2500.0},
		{"2500,00", 2500.0},
		{"87,45", 87.45},
		{"1.000.000,00", 1000000.0},

		// American decimal point
		{"1,234.56", 1234.56},
		{"2500.00", 2500.0},
		{"1,000,000.00", 1000000.0},

		// Signs, including the trailing ledger minus
		{"-87,45", -87.45},
		{"87,45-", -87.45},
		{"-87,45-", 87.45}, // leading and trailing minus cancel out
		{"+45,23", 45.23},

		// Lone separator with 4+ trailing digits is a thousands mark
		{"12.3456", 123456.0},
		{"12,3456", 123456.0},

		// No separator
		{"2500", 2500.0},
		{"-42", -42.0},

		// Embedded spaces and non-breaking spaces
		{"1 234,56", 1234.56},
		{"1\u00a0234,56", 1234.56},
	}

	for _, tc := range tests {
		got, ok := ParseSmartAmount(tc.input)
		if !ok {
			t.Errorf("ParseSmartAmount(%q) unparseable, want %v", tc.input, tc.expected)
			continue
		}
		if got != tc.expected {
			t.Errorf("ParseSmartAmount(%q) = %v, want %v", tc.input, got, tc.expected)
		}
	}
}

func TestParseSmartAmount_Unparseable(t *testing.T) {
	for _, input := range []string{"", "   ", "nan", "NaN", "NAN", "abc", "12,34,56.78.90x", "--"} {
		if got, ok := ParseSmartAmount(input); ok {
			t.Errorf("ParseSmartAmount(%q) = %v, want unparseable", input, got)
		}
	}
}

func TestParseSmartAmount_NonStringInput(t *testing.T) {
	got, ok := ParseSmartAmount(87.45)
	if !ok || got != 87.45 {
		t.Errorf("ParseSmartAmount(87.45) = %v, %v", got, ok)
	}

	got, ok = ParseSmartAmount(-120)
	if !ok || got != -120.0 {
		t.Errorf("ParseSmartAmount(-120) = %v, %v", got, ok)
	}
}

// Re-parsing the stringified output must yield the same value.
func TestParseSmartAmount_Idempotent(t *testing.T) {
	for _, input := range []string{"1.234,56", "2500,00", "-87,45", "87,45-", "12.3456"} {
		first, ok := ParseSmartAmount(input)
		if !ok {
			t.Fatalf("ParseSmartAmount(%q) unparseable", input)
		}
		second, ok := ParseSmartAmount(strconv.FormatFloat(first, 'f', -1, 64))
		if !ok {
			t.Fatalf("re-parse of %q output unparseable", input)
		}
		if first != second {
			t.Errorf("re-parse of %q: %v != %v", input, second, first)
		}
	}
}

func TestAmountToMinor(t *testing.T) {
	tests := []struct {
		amount   float64
		expected int64
	}{
		{87.45, 8745},
		{-87.45, -8745},
		{2500.0, 250000},
		{0.005, 1},
	}
	for _, tc := range tests {
		if got := AmountToMinor(tc.amount); got != tc.expected {
			t.Errorf("AmountToMinor(%v) = %d, want %d", tc.amount, got, tc.expected)
		}
	}
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		input    string
		format   string
		expected string // YYYY-MM-DD
	}{
		{"15/10/2024", "DD/MM/YYYY", "2024-10-15"},
		{"14-10-2024", "DD-MM-YYYY", "2024-10-14"},
		{"25/12/2024", "", "2024-12-25"},
		{"2024-10-15", "", "2024-10-15"},
		{"2024/10/15", "", "2024-10-15"},
	}

	for _, tc := range tests {
		got, err := ParseFlexibleDate(tc.input, tc.format, time.UTC)
		if err != nil {
			t.Errorf("ParseFlexibleDate(%q, %q) error: %v", tc.input, tc.format, err)
			continue
		}
		if gotStr := got.Format("2006-01-02"); gotStr != tc.expected {
			t.Errorf("ParseFlexibleDate(%q, %q) = %s, want %s", tc.input, tc.format, gotStr, tc.expected)
		}
	}
}

func TestParseFlexibleDate_Invalid(t *testing.T) {
	if _, err := ParseFlexibleDate("", "", nil); err != ErrInvalidDate {
		t.Errorf("expected ErrInvalidDate for empty string, got %v", err)
	}
	if _, err := ParseFlexibleDate("not-a-date", "", nil); err != ErrInvalidDate {
		t.Errorf("expected ErrInvalidDate for invalid string, got %v", err)
	}
}

func TestCleanDescription(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"  ESSELUNGA SPA MILANO  ", "ESSELUNGA SPA MILANO"},
		{"BONIFICO   STIPENDIO   OTTOBRE", "BONIFICO STIPENDIO OTTOBRE"},
		{"Netflix", "Netflix"},
	}

	for _, tc := range tests {
		if got := CleanDescription(tc.input); got != tc.expected {
			t.Errorf("CleanDescription(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func BenchmarkParseSmartAmount(b *testing.B) {
	inputs := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		inputs = append(inputs, fmt.Sprintf("%d.%03d,%02d-", i%9+1, i*7%1000, i%100))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, _ := ParseSmartAmount(inputs[i%len(inputs)])
		benchmarkSink = v
	}
}

var benchmarkSink float64
