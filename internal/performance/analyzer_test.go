package performance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
)

var day0 = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

func curveOf(values ...float64) []models.EquityPoint {
	out := make([]models.EquityPoint, len(values))
	for i, v := range values {
		out[i] = models.EquityPoint{Timestamp: day0.AddDate(0, 0, i), Equity: v}
	}
	return out
}

func logFromReturns(name string, returns []float64) models.TradeLog {
	return models.TradeLog{
		Strategy:       name,
		InitialCapital: 1000,
		EquityCurve:    curveOf(EquityFromReturns(returns, 1000)...),
	}
}

func trade(pnl float64, exitDay int) models.Trade {
	return models.Trade{
		EntryDate:  day0,
		EntryPrice: 100,
		ExitDate:   day0.AddDate(0, 0, exitDay),
		ExitPrice:  100 + pnl/10,
		Shares:     10,
		ExitReason: models.Exit(models.ExitStrategySignal),
		PnL:        pnl,
		PnLPct:     pnl / 1000,
	}
}

func TestAnalyzeBasicMetrics(t *testing.T) {
	log := models.TradeLog{
		Strategy:       "s",
		InitialCapital: 1000,
		Trades:         []models.Trade{trade(200, 1), trade(-100, 2), trade(100, 3)},
		EquityCurve:    curveOf(1000, 1200, 1100, 1200),
	}

	m := NewAnalyzer().Analyze(log)

	assert.Equal(t, 3, m.TradeCount)
	assert.InDelta(t, 2.0/3.0, m.WinRate.Value, 1e-12)
	assert.InDelta(t, 3.0, m.ProfitFactor.Value, 1e-12)
	assert.InDelta(t, 150.0, m.AvgWin, 1e-12)
	assert.InDelta(t, 100.0, m.AvgLoss, 1e-12)
	assert.InDelta(t, 2.0/3.0*150-1.0/3.0*100, m.Expectancy.Value, 1e-9)
	assert.InDelta(t, 100.0/1200.0, m.MaxDrawdown, 1e-12)
	assert.InDelta(t, 0.2, m.TotalReturn, 1e-12)
	assert.True(t, m.SharpeRatio.Defined)
	assert.False(t, m.SortinoRatio.Defined, "only one negative return")
}

func TestAnalyzeFlagsUndefinedRatios(t *testing.T) {
	log := models.TradeLog{
		InitialCapital: 1000,
		Trades:         []models.Trade{trade(50, 1), trade(50, 2)},
	}

	m := NewAnalyzer().Analyze(log)

	assert.False(t, m.ProfitFactor.Defined)
	assert.Equal(t, "n/a", m.ProfitFactor.String())

	var degenerate bool
	for _, w := range m.Warnings {
		if errors.Is(w, errors.ErrNumericDegenerate) {
			degenerate = true
		}
	}
	assert.True(t, degenerate)
}

func TestAnalyzeEmptyLog(t *testing.T) {
	m := NewAnalyzer().Analyze(models.TradeLog{InitialCapital: 1000})

	assert.Equal(t, 0, m.TradeCount)
	assert.False(t, m.WinRate.Defined)
	assert.False(t, m.SharpeRatio.Defined)
	assert.False(t, m.Expectancy.Defined)
	assert.Zero(t, m.MaxDrawdown)
	assert.NotEmpty(t, m.Warnings)
}

func TestEquityCurveFromTrades(t *testing.T) {
	log := models.TradeLog{
		InitialCapital: 1000,
		Trades:         []models.Trade{trade(100, 3), trade(-50, 1), trade(25, 3)},
	}

	curve := EquityCurveFromTrades(log)
	require.Len(t, curve, 3)
	assert.Equal(t, 1000.0, curve[0].Equity)
	assert.Equal(t, 950.0, curve[1].Equity)
	assert.Equal(t, 1075.0, curve[2].Equity)
}

func TestCompareRanksBySharpeThenReturn(t *testing.T) {
	steady := []float64{0.01, 0.012, 0.009, 0.011, 0.01}
	noisy := []float64{0.05, -0.04, 0.06, -0.03, 0.02}

	logs := map[string]models.TradeLog{
		"steady": logFromReturns("steady", steady),
		"noisy":  logFromReturns("noisy", noisy),
		"flat":   {Strategy: "flat", InitialCapital: 1000, EquityCurve: curveOf(1000, 1000, 1000)},
	}

	rankings := NewAnalyzer().Compare(logs)
	require.Len(t, rankings, 3)
	assert.Equal(t, "steady", rankings[0].Strategy)
	assert.Equal(t, "noisy", rankings[1].Strategy)
	assert.Equal(t, "flat", rankings[2].Strategy)
	assert.Equal(t, 3, rankings[2].Rank)
}

func TestCorrelationMatrix(t *testing.T) {
	base := []float64{0.01, -0.02, 0.015, 0.003, -0.007, 0.02}
	inverse := make([]float64, len(base))
	for i, r := range base {
		inverse[i] = -r
	}

	logs := map[string]models.TradeLog{
		"a":     logFromReturns("a", base),
		"b":     logFromReturns("b", base),
		"c":     logFromReturns("c", inverse),
		"short": {InitialCapital: 1000, EquityCurve: curveOf(1000, 1010)},
	}

	corr := NewAnalyzer().CorrelationMatrix(logs)

	assert.InDelta(t, 1.0, corr.Get("a", "b").Value, 1e-9)
	assert.Less(t, corr.Get("a", "c").Value, -0.99)
	assert.Equal(t, models.DefinedRatio(1), corr.Get("short", "short"))
	assert.False(t, corr.Get("a", "short").Defined)
	assert.False(t, corr.Get("a", "missing").Defined)
}

func TestFindOptimalCombinationPenalizesCorrelation(t *testing.T) {
	returns := []float64{0.01, -0.005, 0.012, -0.004, 0.009, 0.002, -0.003, 0.011}
	logs := map[string]models.TradeLog{
		"a": logFromReturns("a", returns),
		"b": logFromReturns("b", returns),
	}

	combo, err := NewAnalyzer().FindOptimalCombination(logs, 2, CombinationConfig{CorrelationPenalty: 100})
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, combo.Strategies)
	assert.InDelta(t, 1.0, combo.Weights.Sum(), 1e-9)
	assert.Equal(t, 3, combo.Evaluated)
}

func TestFindOptimalCombinationLimits(t *testing.T) {
	r := []float64{0.01, -0.01, 0.02}
	logs := map[string]models.TradeLog{
		"a": logFromReturns("a", r),
		"b": logFromReturns("b", r),
		"c": logFromReturns("c", r),
	}
	a := NewAnalyzer()

	_, err := a.FindOptimalCombination(logs, 3, CombinationConfig{MaxSubsets: 2})
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))

	_, err = a.FindOptimalCombination(logs, 0, DefaultCombinationConfig())
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))

	_, err = a.FindOptimalCombination(nil, 2, DefaultCombinationConfig())
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
}

func TestEnumerateSubsets(t *testing.T) {
	subsets := enumerateSubsets(4, 2)
	assert.Len(t, subsets, 10)
	assert.Equal(t, []int{0}, subsets[0])
	assert.Equal(t, []int{2, 3}, subsets[len(subsets)-1])
	assert.Equal(t, 10, subsetCount(4, 2, 1000))
}

func TestMaxDrawdown(t *testing.T) {
	assert.InDelta(t, 0.5, MaxDrawdown([]float64{100, 200, 100, 150}), 1e-12)
	assert.Zero(t, MaxDrawdown([]float64{1, 2, 3}))
	assert.Zero(t, MaxDrawdown(nil))
}

func TestAnnualizedReturn(t *testing.T) {
	r := AnnualizedReturn(0.1, 252, 252)
	assert.InDelta(t, 0.1, r.Value, 1e-12)
	assert.False(t, AnnualizedReturn(-1, 10, 252).Defined)
	assert.False(t, AnnualizedReturn(0.1, 0, 252).Defined)
}
