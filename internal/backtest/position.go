package backtest

import (
	"math"
	"time"

	"stock-analysis/internal/models"
)

// gainEpsilon absorbs float error when comparing a gain to a threshold,
// so that 12/10-1 reaches a 0.20 level.
const gainEpsilon = 1e-9

// position is an open long position. It is treated as a value: evaluate
// returns an updated copy and never mutates its receiver.
type position struct {
	Symbol            string
	EntryDate         time.Time
	EntryIndex        int
	EntryPrice        float64 // fill price including slippage
	Shares            float64
	OriginalShares    float64
	EntryCommission   float64
	HighestPrice      float64
	TrailingStopPrice float64
	TrailingActive    bool
	LevelsTaken       []bool
}

func openPosition(symbol string, bar models.Candle, index int, fill, shares, commission float64, levels int) position {
	return position{
		Symbol:          symbol,
		EntryDate:       bar.Timestamp,
		EntryIndex:      index,
		EntryPrice:      fill,
		Shares:          shares,
		OriginalShares:  shares,
		EntryCommission: commission,
		HighestPrice:    bar.Close,
		LevelsTaken:     make([]bool, levels),
	}
}

// exitOrder is a request to sell shares for a reason.
type exitOrder struct {
	Shares float64
	Reason models.ExitReason
}

func (p position) gain(price float64) float64 {
	return price/p.EntryPrice - 1
}

func (p position) holdingDays(now time.Time) int {
	return int(models.Day(now).Sub(models.Day(p.EntryDate)).Hours() / 24)
}

// evaluate runs the per-bar exit state machine at the bar's close:
// update the high-water mark, activate and ratchet the trailing stop,
// take any reached profit levels, then check the full exits in priority
// order. The returned orders are in execution order; a full exit always
// comes last and sells every remaining share.
func (p position) evaluate(bar models.Candle, sig models.Signal, opts *Options) (position, []exitOrder) {
	next := p
	next.LevelsTaken = append([]bool(nil), p.LevelsTaken...)
	price := bar.Close

	next.HighestPrice = math.Max(next.HighestPrice, price)

	if opts.TrailingStop {
		trail := next.HighestPrice * (1 - opts.TrailingStopDistance)
		if !next.TrailingActive && price >= next.EntryPrice*(1+opts.TrailingStopActivation) {
			next.TrailingActive = true
			next.TrailingStopPrice = trail
		}
		if next.TrailingActive && trail > next.TrailingStopPrice {
			next.TrailingStopPrice = trail
		}
	}

	var orders []exitOrder
	gain := next.gain(price)

	if opts.PartialProfitTaking {
		for i := 0; i < opts.ProfitLevels.Len(); i++ {
			if next.LevelsTaken[i] || next.Shares <= 0 {
				continue
			}
			level := opts.ProfitLevels.Level(i)
			if gain+gainEpsilon < level.Threshold {
				continue
			}
			shares := math.Min(math.Floor(level.Fraction*next.OriginalShares), next.Shares)
			next.LevelsTaken[i] = true
			if shares <= 0 {
				continue
			}
			next.Shares -= shares
			orders = append(orders, exitOrder{Shares: shares, Reason: models.PartialProfit(level.Threshold)})
		}
	}

	if next.Shares <= 0 {
		return next, orders
	}

	if kind, ok := next.fullExit(bar, sig, gain, opts); ok {
		orders = append(orders, exitOrder{Shares: next.Shares, Reason: models.Exit(kind)})
		next.Shares = 0
	}
	return next, orders
}

func (p position) fullExit(bar models.Candle, sig models.Signal, gain float64, opts *Options) (models.ExitKind, bool) {
	price := bar.Close
	switch {
	case p.TrailingActive && price <= p.TrailingStopPrice:
		return models.ExitTrailingStop, true
	case opts.StopLoss > 0 && price <= p.EntryPrice*(1-opts.StopLoss):
		return models.ExitStopLoss, true
	case opts.TakeProfit > 0 && gain+gainEpsilon >= opts.TakeProfit:
		return models.ExitTakeProfit, true
	case opts.MaxHoldingDays > 0 && p.holdingDays(bar.Timestamp) >= opts.MaxHoldingDays:
		return models.ExitMaxHoldingDays, true
	case sig.Action == models.ActionSell:
		return models.ExitStrategySignal, true
	}
	return 0, false
}
