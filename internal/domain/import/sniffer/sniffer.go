// Package sniffer locates the header row in unstructured bank statement
// sheets and maps the detected headers onto Doubloon's canonical columns.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"unicode"
)

// Canonical column names produced by CanonicalizeHeaders.
const (
	ColDate       = "Data"
	ColOperation  = "Operazione"
	ColDetail     = "Dettagli"
	ColAccount    = "Conto o carta"
	ColAccounting = "Contabilizzazione"
	ColCategory   = "Categoria"
	ColCurrency   = "Valuta"
	ColAmount     = "Importo"
)

// ExpectedHeaderTokens is the vocabulary a row is scored against when
// looking for the header row of an Intesa-style export.
var ExpectedHeaderTokens = []string{
	"data",
	"operazione",
	"dettagli",
	"conto o carta",
	"contabilizzazione",
	"categoria",
	"valuta",
	"importo",
}

const (
	// headerScanLimit bounds the search window; data regions below it are
	// never considered.
	headerScanLimit = 100

	// headerMatchThreshold is the number of distinct vocabulary tokens a
	// row must satisfy to be accepted as the header.
	headerMatchThreshold = 3

	// headerFallbackRow is the best-effort guess when no row clears the
	// threshold (row 20 of the sheet, zero-indexed).
	headerFallbackRow = 19
)

var ErrEmptySheet = errors.New("sheet has no rows")

// LocateHeaderRow scans the first 100 rows of a sheet and returns the index
// of the first row matching at least 3 expected header tokens. A token
// matches a row when any cell equals it or contains it as a substring after
// lowercasing and trimming. This is a first-match policy: later rows with
// stronger matches are never reconsidered.
//
// When no row qualifies, row 19 is returned as a best-effort guess, or row 0
// if the sheet is shorter than that. The function never fails.
func LocateHeaderRow(sheet [][]string) int {
	limit := len(sheet)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		if scoreRow(sheet[i]) >= headerMatchThreshold {
			return i
		}
	}

	if len(sheet) > headerFallbackRow {
		return headerFallbackRow
	}
	return 0
}

// scoreRow counts how many distinct vocabulary tokens are satisfied by the
// row; a token satisfied by several cells still counts once.
func scoreRow(row []string) int {
	cells := make([]string, len(row))
	for i, cell := range row {
		cells[i] = strings.ToLower(strings.TrimSpace(cell))
	}

	matches := 0
	for _, tok := range ExpectedHeaderTokens {
		for _, cell := range cells {
			if cell == tok || strings.Contains(cell, tok) {
				matches++
				break
			}
		}
	}
	return matches
}

// CanonicalizeHeaders renames raw header cells to the canonical column
// vocabulary using case-insensitive prefix/contains rules; the first rule
// that matches wins and cells matching no rule keep their original label.
func CanonicalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = canonicalColumn(h)
	}
	return out
}

func canonicalColumn(header string) string {
	clean := strings.ToLower(strings.TrimSpace(header))
	switch {
	case strings.HasPrefix(clean, "data"):
		return ColDate
	case strings.HasPrefix(clean, "operazione"):
		return ColOperation
	case strings.HasPrefix(clean, "dettagli"):
		return ColDetail
	case strings.HasPrefix(clean, "conto o carta"):
		return ColAccount
	case strings.HasPrefix(clean, "contabilizzazione"):
		return ColAccounting
	case strings.HasPrefix(clean, "categoria"):
		return ColCategory
	case strings.HasPrefix(clean, "valuta"):
		return ColCurrency
	case strings.Contains(clean, "importo"):
		return ColAmount
	}
	return header
}

// DetectDelimiter guesses the field delimiter of a CSV header line by
// looking for the candidate that yields at least 4 columns.
func DetectDelimiter(headerLine string) rune {
	for _, d := range []rune{';', '\t', ',', '|'} {
		if strings.Count(headerLine, string(d)) >= 3 {
			return d
		}
	}
	return ';'
}

// Fingerprint creates a stable hash from normalized header names, used to
// recognize a bank export format across imports.
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
