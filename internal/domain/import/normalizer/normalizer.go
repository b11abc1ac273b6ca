// Package normalizer handles regional money and date parsing.
// Converts bank statement cell values into Doubloon's canonical representation.
package normalizer

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date format")

// ParseSmartAmount parses a free-form monetary cell value without knowing
// whether '.' or ',' is the decimal separator. It disambiguates positionally:
// when both separators occur, the one appearing last is the decimal mark and
// every other occurrence is a thousands mark; a lone separator is decimal
// only when 1-3 digits follow it. A trailing '-' flips the sign, composing
// with a leading '-' (so "-87,45-" comes out positive).
//
// The second return value is false when the cell cannot be interpreted as a
// number. Malformed input never produces an error or panic.
func ParseSmartAmount(v any) (float64, bool) {
	s := strings.TrimSpace(fmt.Sprint(v))
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, false
	}

	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")

	sign := 1.0
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "-") {
		sign = -1
		s = s[1:]
	}
	if strings.HasSuffix(s, "-") {
		sign *= -1
		s = s[:len(s)-1]
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	var normalized string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Rightmost separator is the decimal mark; every other '.' or ','
		// is a grouping mark and is dropped.
		decIndex := lastDot
		if lastComma > lastDot {
			decIndex = lastComma
		}
		var b strings.Builder
		b.Grow(len(s))
		for i := 0; i < len(s); i++ {
			ch := s[i]
			if (ch == '.' || ch == ',') && i != decIndex {
				continue
			}
			if ch == ',' {
				ch = '.'
			}
			b.WriteByte(ch)
		}
		normalized = b.String()

	case lastDot >= 0 || lastComma >= 0:
		sep := byte('.')
		last := lastDot
		if lastComma >= 0 {
			sep = ','
			last = lastComma
		}
		if strings.Count(s, string(sep)) > 1 {
			// Multiple same separators: last is decimal, earlier ones grouping.
			var b strings.Builder
			b.Grow(len(s))
			for i := 0; i < len(s); i++ {
				if s[i] == sep && i != last {
					continue
				}
				b.WriteByte(s[i])
			}
			normalized = b.String()
			if sep == ',' {
				normalized = strings.ReplaceAll(normalized, ",", ".")
			}
		} else {
			digitsAfter := len(s) - last - 1
			if digitsAfter >= 1 && digitsAfter <= 3 {
				normalized = s
				if sep == ',' {
					normalized = strings.ReplaceAll(s, ",", ".")
				}
			} else {
				// 4+ trailing digits: lone separator is a grouping mark,
				// e.g. "12.3456" is 123456.
				normalized = strings.ReplaceAll(s, string(sep), "")
			}
		}

	default:
		normalized = s
	}

	val, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return sign * val, true
}

// AmountToMinor converts a parsed amount to minor units (cents).
func AmountToMinor(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Common date formats used by Italian bank exports, tried in order.
var dateFormats = []string{
	"02/01/2006",
	"02-01-2006",
	"02.01.2006",
	"2/1/2006",
	"2-1-2006",

	"2006-01-02",
	"2006/01/02",

	"02/01/2006 15:04",
	"02-01-2006 15:04",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseFlexibleDate attempts to parse a date using a preferred format first,
// then the known bank formats.
func ParseFlexibleDate(raw string, preferredFormat string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrInvalidDate
	}

	if loc == nil {
		loc = time.UTC
	}

	if preferredFormat != "" {
		goFormat := convertDateFormat(preferredFormat)
		if t, err := time.ParseInLocation(goFormat, raw, loc); err == nil {
			return t, nil
		}
	}

	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, raw, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidDate
}

// convertDateFormat converts user-friendly format strings to Go format
// e.g., "DD/MM/YYYY" -> "02/01/2006"
func convertDateFormat(format string) string {
	replacements := [][2]string{
		{"YYYY", "2006"},
		{"YY", "06"},
		{"MM", "01"},
		{"DD", "02"},
		{"HH", "15"},
		{"mm", "04"},
		{"ss", "05"},
	}

	result := format
	for _, r := range replacements {
		result = strings.ReplaceAll(result, r[0], r[1])
	}
	return result
}

var spacePattern = regexp.MustCompile(`\s+`)

// CleanDescription normalizes merchant/description text.
func CleanDescription(raw string) string {
	return spacePattern.ReplaceAllString(strings.TrimSpace(raw), " ")
}
