// Package format renders numbers for tables, labels and grid cells.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency returns a currency string with a dollar sign and thousands separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	formatted := formatPositiveCurrency(math.Abs(amount))
	if amount < 0 {
		return "-$" + formatted
	}
	return "$" + formatted
}

// StripZero renders a value with at most two decimals and no trailing zeros,
// e.g. 2.50 -> "2.5" and 1915.00 -> "1915".
func StripZero(value float64) string {
	if math.IsInf(value, 1) {
		return "∞"
	}
	if math.IsNaN(value) || math.IsInf(value, -1) {
		return "-"
	}
	return decimal.NewFromFloat(value).Round(2).String()
}

// Ratio renders a health score, using "∞" for an unleveraged position.
func Ratio(value float64) string {
	if math.IsInf(value, 1) {
		return "∞"
	}
	return fmt.Sprintf("%.2f", value)
}

// Percent renders a fraction (0.234) as a percentage ("23.40%").
func Percent(fraction float64) string {
	return decimal.NewFromFloat(fraction).Shift(2).StringFixed(2) + "%"
}

// Asset renders an asset amount with four decimals and a symbol suffix.
func Asset(amount float64, symbol string) string {
	if symbol == "" {
		return fmt.Sprintf("%.4f", amount)
	}
	return fmt.Sprintf("%.4f %s", amount, symbol)
}

func formatPositiveCurrency(value float64) string {
	formatted := fmt.Sprintf("%.2f", value)
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]
	decPart := "00"
	if len(parts) == 2 {
		decPart = parts[1]
	}

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	return intPart + "." + decPart
}
