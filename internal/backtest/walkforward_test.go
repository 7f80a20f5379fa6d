package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/strategies"
)

func TestSplitWindowsRolling(t *testing.T) {
	cfg := DefaultWalkForwardConfig()
	windows := SplitWindows(100, cfg)
	require.Len(t, windows, 4)

	assert.Equal(t, Window{Index: 0, InSampleStart: 0, InSampleEnd: 36, OutSampleStart: 36, OutSampleEnd: 52}, windows[0])
	for i := 1; i < len(windows); i++ {
		assert.Equal(t, windows[i-1].OutSampleEnd, windows[i].OutSampleStart, "oos segments are contiguous")
		assert.Equal(t, windows[i].InSampleEnd-windows[i].InSampleStart, 36, "rolling windows keep their length")
	}
	assert.LessOrEqual(t, windows[3].OutSampleEnd, 100)
}

func TestSplitWindowsAnchored(t *testing.T) {
	cfg := DefaultWalkForwardConfig()
	cfg.Anchored = true

	for _, w := range SplitWindows(100, cfg) {
		assert.Equal(t, 0, w.InSampleStart)
		assert.Equal(t, w.InSampleEnd, w.OutSampleStart)
	}
}

// sine produces a smooth oscillating price path.
func sine(n int) models.Series {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/8) + float64(i)*0.05
	}
	return seriesOf(closes...)
}

// dipBuyer buys after a down bar and sells after an up bar.
func dipBuyer() strategies.Strategy {
	return strategies.NewFunc("dip_buyer", strategies.StyleReversion, func(w []models.Candle) models.Signal {
		if len(w) < 2 {
			return models.Hold()
		}
		if w[len(w)-1].Close < w[len(w)-2].Close {
			return models.Signal{Action: models.ActionBuy, Confidence: 0.8}
		}
		return models.Signal{Action: models.ActionSell, Confidence: 0.8}
	})
}

func TestWalkForward(t *testing.T) {
	candidates := []strategies.Strategy{always(models.ActionHold), always(models.ActionBuy), dipBuyer()}

	report, err := WalkForward(candidates, sine(300), DefaultOptions(), DefaultWalkForwardConfig())
	require.NoError(t, err)

	require.Len(t, report.Windows, 4)
	for _, w := range report.Windows {
		assert.NotEqual(t, "always_HOLD", w.Selected, "flat equity has undefined Sharpe and ranks last")
		require.NotEmpty(t, w.OutOfSampleLog.EquityCurve)
		first := w.OutOfSampleLog.EquityCurve[0].Timestamp
		assert.Equal(t, start.AddDate(0, 0, w.Window.OutSampleStart), first, "out-of-sample trading starts after the in-sample bars")
	}
	assert.Greater(t, report.Aggregate.TradeCount, 0)
}

func TestWalkForwardSkipsTinyWindows(t *testing.T) {
	cfg := DefaultWalkForwardConfig()
	cfg.Windows = 10

	report, err := WalkForward([]strategies.Strategy{always(models.ActionBuy)}, sine(12), DefaultOptions(), cfg)
	require.NoError(t, err)
	assert.Empty(t, report.Windows)
	assert.NotEmpty(t, report.Warnings)
	assert.True(t, errors.Is(report.Warnings[len(report.Warnings)-1], errors.ErrInsufficientData))
}

func TestWalkForwardValidatesConfig(t *testing.T) {
	cfg := DefaultWalkForwardConfig()
	cfg.InSampleRatio = 1

	_, err := WalkForward([]strategies.Strategy{always(models.ActionBuy)}, sine(50), DefaultOptions(), cfg)
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))

	_, err = WalkForward(nil, sine(50), DefaultOptions(), DefaultWalkForwardConfig())
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}

func TestChainLogsCompoundsSegments(t *testing.T) {
	a := models.TradeLog{InitialCapital: 100, EquityCurve: []models.EquityPoint{{Equity: 100}, {Equity: 110}}}
	b := models.TradeLog{InitialCapital: 100, EquityCurve: []models.EquityPoint{{Equity: 100}, {Equity: 120}}}

	out := chainLogs([]models.TradeLog{a, b}, 100)
	require.Len(t, out.EquityCurve, 4)
	assert.InDelta(t, 110, out.EquityCurve[2].Equity, 1e-9)
	assert.InDelta(t, 132, out.EquityCurve[3].Equity, 1e-9)
}

func TestEfficiency(t *testing.T) {
	assert.InDelta(t, 0.5, efficiency([]float64{2, 2}, []float64{1, 1}).Value, 1e-12)
	assert.False(t, efficiency(nil, []float64{1}).Defined)
	assert.False(t, efficiency([]float64{1, -1}, []float64{1}).Defined)
}
