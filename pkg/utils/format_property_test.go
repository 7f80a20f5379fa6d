package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: FormatCurrency groups digits by thousands, always shows two
// decimals, and parses back to the rounded amount.
func TestProperty_CurrencyFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	grouped := regexp.MustCompile(`^\d{1,3}(,\d{3})*$`)

	properties.Property("FormatCurrency produces valid grouping", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCurrency(amount)

			prefix := "$"
			if amount < 0 && math.Round(amount*100) != 0 {
				prefix = "-$"
			}
			if !strings.HasPrefix(formatted, prefix) {
				t.Logf("Expected %s prefix for %f, got %s", prefix, amount, formatted)
				return false
			}

			parts := strings.Split(strings.TrimPrefix(strings.TrimPrefix(formatted, "-"), "$"), ".")
			if len(parts) != 2 || len(parts[1]) != 2 {
				t.Logf("Expected 2 decimal places for %f, got %s", amount, formatted)
				return false
			}
			if !grouped.MatchString(parts[0]) {
				t.Logf("Invalid grouping for %f: %s", amount, formatted)
				return false
			}
			return true
		},
		gen.Float64Range(-1e12, 1e12),
	))

	properties.Property("FormatCurrency preserves value", prop.ForAll(
		func(amount float64) bool {
			formatted := FormatCurrency(amount)
			parsed := parseCurrency(formatted)
			return math.Abs(parsed-math.Round(amount*100)/100) <= 0.01
		},
		gen.Float64Range(-1e9, 1e9),
	))

	properties.Property("FormatPercent signs and suffixes", prop.ForAll(
		func(fraction float64) bool {
			formatted := FormatPercent(fraction)
			if !strings.HasSuffix(formatted, "%") {
				return false
			}
			if fraction*100 >= 0.01 && !strings.HasPrefix(formatted, "+") {
				t.Logf("Expected + prefix for %f, got %s", fraction, formatted)
				return false
			}
			return formatted != "-0.00%"
		},
		gen.Float64Range(-1, 1),
	))

	properties.TestingRun(t)
}

func parseCurrency(s string) float64 {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	if negative {
		return -v
	}
	return v
}

func TestCurrencyFormatExamples(t *testing.T) {
	testCases := []struct {
		amount   float64
		expected string
	}{
		{0, "$0.00"},
		{1, "$1.00"},
		{999.999, "$1,000.00"},
		{1000, "$1,000.00"},
		{100000, "$100,000.00"},
		{1234567.891, "$1,234,567.89"},
		{-1234.56, "-$1,234.56"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			result := FormatCurrency(tc.amount)
			if result != tc.expected {
				t.Errorf("FormatCurrency(%f) = %s, want %s", tc.amount, result, tc.expected)
			}
		})
	}
}

func TestFormatPercentExamples(t *testing.T) {
	testCases := []struct {
		value    float64
		expected string
	}{
		{0, "0.00%"},
		{0.015, "+1.50%"},
		{-0.025, "-2.50%"},
		{1, "+100.00%"},
		{-0.00001, "0.00%"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			result := FormatPercent(tc.value)
			if result != tc.expected {
				t.Errorf("FormatPercent(%f) = %s, want %s", tc.value, result, tc.expected)
			}
		})
	}
}

func TestFormatQuantity(t *testing.T) {
	if got := FormatQuantity(12500); got != "12,500" {
		t.Errorf("FormatQuantity(12500) = %s", got)
	}
	if got := FormatQuantity(2.5); got != "2.5000" {
		t.Errorf("FormatQuantity(2.5) = %s", got)
	}
}
