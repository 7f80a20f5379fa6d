package store

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"stock-analysis/internal/models"
)

// Property: saving candles and reading them back yields the same bars in
// date order, and re-saving a date replaces the stored bar.
func TestProperty_CandleRoundTripConsistency(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "candles.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"AAPL", "MSFT", "GOOG", "AMZN", "NVDA", "META", "TSLA", "JPM", "XOM", "SPY"}
	run := 0

	properties.Property("Candle round-trip: save then retrieve produces equivalent data", prop.ForAll(
		func(symbolIdx int, count int, basePrice float64, baseVolume int64) bool {
			ctx := context.Background()
			run++
			symbol := fmt.Sprintf("%s%d", symbols[symbolIdx%len(symbols)], run)

			candles := generateTestCandles(count, basePrice, baseVolume)
			// Save in reverse to check ordering on read.
			reversed := make([]models.Candle, len(candles))
			for i, c := range candles {
				reversed[len(candles)-1-i] = c
			}
			if err := store.SaveCandles(ctx, symbol, reversed); err != nil {
				t.Logf("Failed to save candles: %v", err)
				return false
			}

			retrieved, err := store.GetCandles(ctx, symbol, time.Time{}, time.Time{})
			if err != nil {
				t.Logf("Failed to get candles: %v", err)
				return false
			}
			if len(retrieved) != len(candles) {
				t.Logf("Count mismatch: expected %d, got %d", len(candles), len(retrieved))
				return false
			}
			for i, orig := range candles {
				if !candlesEqual(orig, retrieved[i]) {
					t.Logf("Candle mismatch at index %d: original=%+v, retrieved=%+v", i, orig, retrieved[i])
					return false
				}
			}

			// Overwrite the first bar.
			replaced := candles[0]
			replaced.Close = roundToDecimal(replaced.Close*1.5, 2)
			if err := store.SaveCandles(ctx, symbol, []models.Candle{replaced}); err != nil {
				return false
			}
			again, err := store.GetCandles(ctx, symbol, candles[0].Timestamp, candles[0].Timestamp)
			if err != nil || len(again) != 1 {
				return false
			}
			return candlesEqual(replaced, again[0])
		},
		gen.IntRange(0, len(symbols)-1),
		gen.IntRange(1, 20),
		gen.Float64Range(1.0, 5000.0),
		gen.Int64Range(1000, 1000000),
	))

	properties.Property("Empty candles: saving empty slice should succeed", prop.ForAll(
		func(symbolIdx int) bool {
			return store.SaveCandles(context.Background(), symbols[symbolIdx], []models.Candle{}) == nil
		},
		gen.IntRange(0, len(symbols)-1),
	))

	properties.TestingRun(t)
}

// generateTestCandles creates daily candles with valid OHLC relationships.
func generateTestCandles(count int, basePrice float64, baseVolume int64) []models.Candle {
	candles := make([]models.Candle, count)
	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		variation := float64(i%10) * 0.01 * basePrice
		open := basePrice + variation
		close := basePrice + variation*0.5

		high := math.Max(open, close) * 1.01
		low := math.Min(open, close) * 0.99

		candles[i] = models.Candle{
			Timestamp: baseTime.AddDate(0, 0, i),
			Open:      roundToDecimal(open, 2),
			High:      roundToDecimal(high, 2),
			Low:       roundToDecimal(low, 2),
			Close:     roundToDecimal(close, 2),
			Volume:    baseVolume + int64(i*1000),
		}
	}

	return candles
}

func roundToDecimal(val float64, places int) float64 {
	multiplier := math.Pow(10, float64(places))
	return math.Round(val*multiplier) / multiplier
}

// candlesEqual compares two candles for equality with floating point tolerance.
func candlesEqual(a, b models.Candle) bool {
	const tolerance = 0.01

	if !a.Timestamp.Equal(b.Timestamp) {
		return false
	}
	return floatEqual(a.Open, b.Open, tolerance) &&
		floatEqual(a.High, b.High, tolerance) &&
		floatEqual(a.Low, b.Low, tolerance) &&
		floatEqual(a.Close, b.Close, tolerance) &&
		a.Volume == b.Volume
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}
