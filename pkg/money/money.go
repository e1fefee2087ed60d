// Package money holds the rounding rules shared by every monetary amount in
// the storefront. Amounts are rupees with two decimal places.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the number of decimal places stored for every amount.
const Places = 2

var hundred = decimal.NewFromInt(100)

// Round rounds half away from zero to two decimal places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// Equal compares two amounts after rounding both.
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}

// Percent returns value percent of amount, rounded.
func Percent(amount, value decimal.Decimal) decimal.Decimal {
	return Round(amount.Mul(value).Div(hundred))
}

// Min returns the smaller amount.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// ClampNonNegative returns zero for negative amounts.
func ClampNonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// Format renders the amount with exactly two decimal places.
func Format(d decimal.Decimal) string {
	return Round(d).StringFixed(Places)
}

// Parse reads a decimal amount, rejecting more precision than Places.
func Parse(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !d.Equal(Round(d)) {
		return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", raw, Places)
	}
	return d, nil
}
