package domain

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// FormatCount groups thousands with commas: 12345 → "12,345".
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatMoney renders a fine as "$12.50", or "N/A" when v is not finite.
func FormatMoney(v float64) string {
	if !IsFinite(v) {
		return "N/A"
	}
	return fmt.Sprintf("$%.2f", v)
}

// FormatMiles renders a distance with two decimals, or "-" when unknown.
func FormatMiles(v float64) string {
	if !IsFinite(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatFine renders a fine amount the way the service reports it: whole
// amounts without decimals ("75"), others with two ("62.50").
func FormatFine(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
