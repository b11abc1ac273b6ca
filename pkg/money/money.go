// Package money formats minor-unit amounts the Italian way: dot for
// thousands, comma for decimals, euro sign up front.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FromMinor converts an amount in cents to a decimal euro value.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Div(hundred)
}

// ToMinor converts a decimal euro value to cents, rounding half away from zero.
func ToMinor(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FormatEUR renders a minor-unit amount as "€ 1.234,56", with a leading
// minus for negative values.
func FormatEUR(minor int64) string {
	d := FromMinor(minor)

	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}

	fixed := d.StringFixed(2)
	parts := strings.SplitN(fixed, ".", 2)
	intPart, frac := parts[0], parts[1]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	return sign + "€ " + strings.Join(groups, ".") + "," + frac
}
