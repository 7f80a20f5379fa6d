package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ExitKind enumerates why a position (or part of it) was closed.
type ExitKind int

const (
	ExitStopLoss ExitKind = iota + 1
	ExitTakeProfit
	ExitTrailingStop
	ExitPartialProfit
	ExitMaxHoldingDays
	ExitStrategySignal
	ExitEndOfData
)

var exitKindNames = map[ExitKind]string{
	ExitStopLoss:       "stop_loss",
	ExitTakeProfit:     "take_profit",
	ExitTrailingStop:   "trailing_stop",
	ExitPartialProfit:  "partial_profit",
	ExitMaxHoldingDays: "max_holding_days",
	ExitStrategySignal: "strategy_signal",
	ExitEndOfData:      "end_of_data",
}

// ExitReason is the reason a trade was recorded. Threshold is only
// meaningful for ExitPartialProfit.
type ExitReason struct {
	Kind      ExitKind `msgpack:"k"`
	Threshold float64  `msgpack:"th,omitempty"`
}

// Exit builds a reason without payload.
func Exit(kind ExitKind) ExitReason {
	return ExitReason{Kind: kind}
}

// PartialProfit builds a partial-profit reason for the given gain threshold.
func PartialProfit(threshold float64) ExitReason {
	return ExitReason{Kind: ExitPartialProfit, Threshold: threshold}
}

// String renders the reason, e.g. "trailing_stop" or "partial_profit_10%".
func (r ExitReason) String() string {
	name, ok := exitKindNames[r.Kind]
	if !ok {
		return "unknown"
	}
	if r.Kind == ExitPartialProfit {
		return name + "_" + strconv.FormatFloat(math.Round(r.Threshold*1e8)/1e6, 'f', -1, 64) + "%"
	}
	return name
}

// MarshalText implements encoding.TextMarshaler.
func (r ExitReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ExitReason) UnmarshalText(b []byte) error {
	parsed, err := ParseExitReason(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseExitReason is the inverse of ExitReason.String.
func ParseExitReason(s string) (ExitReason, error) {
	if rest, ok := strings.CutPrefix(s, "partial_profit_"); ok {
		pct, err := strconv.ParseFloat(strings.TrimSuffix(rest, "%"), 64)
		if err != nil {
			return ExitReason{}, fmt.Errorf("invalid partial profit reason %q: %w", s, err)
		}
		return PartialProfit(pct / 100), nil
	}
	for kind, name := range exitKindNames {
		if name == s && kind != ExitPartialProfit {
			return Exit(kind), nil
		}
	}
	return ExitReason{}, fmt.Errorf("unknown exit reason %q", s)
}

// Trade represents a completed (full or partial) exit from a position.
type Trade struct {
	Strategy   string     `json:"strategy" yaml:"strategy" msgpack:"strategy"`
	Symbol     string     `json:"symbol" yaml:"symbol" msgpack:"symbol"`
	EntryDate  time.Time  `json:"entry_date" yaml:"entry_date" msgpack:"entry_date"`
	EntryPrice float64    `json:"entry_price" yaml:"entry_price" msgpack:"entry_price"`
	ExitDate   time.Time  `json:"exit_date" yaml:"exit_date" msgpack:"exit_date"`
	ExitPrice  float64    `json:"exit_price" yaml:"exit_price" msgpack:"exit_price"`
	Shares     float64    `json:"shares_exited" yaml:"shares_exited" msgpack:"shares"`
	ExitReason ExitReason `json:"exit_reason" yaml:"exit_reason" msgpack:"exit_reason"`
	PnL        float64    `json:"pnl" yaml:"pnl" msgpack:"pnl"`
	PnLPct     float64    `json:"pnl_pct" yaml:"pnl_pct" msgpack:"pnl_pct"` // fraction, 0.08 = 8%
}

// HoldingDays returns whole calendar days between entry and exit.
func (t Trade) HoldingDays() int {
	return int(Day(t.ExitDate).Sub(Day(t.EntryDate)).Hours() / 24)
}

// Winner reports whether the trade was profitable.
func (t Trade) Winner() bool {
	return t.PnL > 0
}

// TradeLog is the output of one simulation run.
type TradeLog struct {
	Strategy       string        `json:"strategy" yaml:"strategy"`
	Symbol         string        `json:"symbol" yaml:"symbol"`
	InitialCapital float64       `json:"initial_capital" yaml:"initial_capital"`
	Trades         []Trade       `json:"trades" yaml:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve" yaml:"equity_curve"`
}

// FinalEquity returns the last equity value, or the initial capital when
// the curve is empty.
func (l TradeLog) FinalEquity() float64 {
	if len(l.EquityCurve) == 0 {
		return l.InitialCapital
	}
	return l.EquityCurve[len(l.EquityCurve)-1].Equity
}
