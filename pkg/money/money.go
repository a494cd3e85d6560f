// Package money renders decimal amounts for display.
package money

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const Symbol = "₹"

// Format renders d with two decimal places, thousands separators and the rupee symbol,
// e.g. ₹1,234.50.
func Format(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if d.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString(Symbol)
	b.WriteString(humanize.Comma(decimal.RequireFromString(whole).IntPart()))
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
