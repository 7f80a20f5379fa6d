package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"stock-analysis/internal/models"
	"stock-analysis/pkg/utils"
)

// DefaultDateFormat is used when the config leaves ui.date_format empty.
const DefaultDateFormat = "2006-01-02"

// FormatRatio formats a possibly undefined ratio with two decimals.
func FormatRatio(r models.Ratio) string {
	return r.String()
}

// FormatRatioPercent formats a possibly undefined fraction as a percentage.
func FormatRatioPercent(r models.Ratio) string {
	if !r.Defined {
		return "n/a"
	}
	return utils.FormatPercent(r.Value)
}

// FormatWeight formats a portfolio or strategy weight, 0.25 -> "25.00%".
func FormatWeight(w float64) string {
	return fmt.Sprintf("%.2f%%", w*100)
}

// FormatWeights renders a weight vector as "a=50.00%, b=50.00%" in key order.
func FormatWeights(w models.WeightVector) string {
	keys := w.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + FormatWeight(w[k])
	}
	return strings.Join(parts, ", ")
}

// FormatDate formats a date with the configured layout.
func FormatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	if layout == "" {
		layout = DefaultDateFormat
	}
	return t.Format(layout)
}

// FormatConfidence formats a 0-1 confidence as a whole percentage.
func FormatConfidence(conf float64) string {
	return fmt.Sprintf("%.0f%%", conf*100)
}

// sortedKeys returns map keys in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
