// Package utils provides shared utility functions.
package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatCurrency formats an amount with thousands separators and two
// decimals, e.g. "$1,234,567.89".
func FormatCurrency(amount float64) string {
	negative := amount < 0 && math.Round(amount*100) != 0
	amount = math.Abs(amount)

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "$" + groupThousands(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatPercent formats a fraction as a signed percentage, 0.0812 -> "+8.12%".
func FormatPercent(fraction float64) string {
	pct := fraction * 100
	sign := ""
	switch {
	case math.Round(pct*100) == 0:
		pct = 0
	case pct > 0:
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, pct)
}

// FormatPnL formats P&L with an explicit sign.
func FormatPnL(pnl float64) string {
	formatted := FormatCurrency(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatQuantity formats a share count, dropping the fraction when whole.
func FormatQuantity(qty float64) string {
	if qty == math.Trunc(qty) && math.Abs(qty) < 1e15 {
		s := fmt.Sprintf("%.0f", math.Abs(qty))
		if qty < 0 {
			return "-" + groupThousands(s)
		}
		return groupThousands(s)
	}
	return fmt.Sprintf("%.4f", qty)
}
