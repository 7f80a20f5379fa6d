// Package models provides domain models for the strategy engine.
package models

import (
	"fmt"
	"math"
	"time"

	"stock-analysis/internal/errors"
)

// Action represents a strategy's trading action.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Valid reports whether the action is one of BUY, SELL or HOLD.
func (a Action) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// Signal is the output of a strategy for one price window.
type Signal struct {
	Action     Action  `json:"action" yaml:"action"`
	Confidence float64 `json:"confidence" yaml:"confidence"` // 0-1
}

// Hold returns a zero-confidence HOLD signal.
func Hold() Signal {
	return Signal{Action: ActionHold}
}

// ClampConfidence pins a confidence value into [0, 1].
func ClampConfidence(c float64) float64 {
	if c != c || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Candle represents OHLCV data for one symbol and one day.
type Candle struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Open      float64   `json:"open" yaml:"open"`
	High      float64   `json:"high" yaml:"high"`
	Low       float64   `json:"low" yaml:"low"`
	Close     float64   `json:"close" yaml:"close"`
	Volume    int64     `json:"volume" yaml:"volume"`
}

// Series is an ordered price history for a single symbol.
type Series struct {
	Symbol  string
	Candles []Candle
}

// Len returns the number of bars in the series.
func (s Series) Len() int {
	return len(s.Candles)
}

// Closes returns the close prices in order.
func (s Series) Closes() []float64 {
	return Closes(s.Candles)
}

// Slice returns the sub-series [from, to).
func (s Series) Slice(from, to int) Series {
	return Series{Symbol: s.Symbol, Candles: s.Candles[from:to]}
}

// Validate checks ordering and price sanity.
func (s Series) Validate() error {
	for i, c := range s.Candles {
		if c.Close <= 0 || math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
			return errors.NewConfigurationError("series", s.Symbol,
				fmt.Sprintf("bar %d (%s) has invalid close %v", i, c.Timestamp.Format("2006-01-02"), c.Close))
		}
		if i > 0 && !c.Timestamp.After(s.Candles[i-1].Timestamp) {
			return errors.NewConfigurationError("series", s.Symbol,
				fmt.Sprintf("bar %d (%s) is not after the previous bar", i, c.Timestamp.Format("2006-01-02")))
		}
	}
	return nil
}

// Closes extracts close prices from candles.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// EquityPoint represents a point on an equity curve.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp" msgpack:"t"`
	Equity    float64   `json:"equity" yaml:"equity" msgpack:"e"`
}

// Day truncates a timestamp to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
