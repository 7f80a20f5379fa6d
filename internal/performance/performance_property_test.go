package performance

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"gonum.org/v1/gonum/stat"
)

// Property: the Sharpe ratio has the sign of mean excess return whenever
// the variance is non-zero.
func TestProperty_SharpeSignMatchesExcessReturn(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("sign(sharpe) == sign(mean - rf)", prop.ForAll(
		func(returns []float64, rf float64) bool {
			mean, std := stat.MeanStdDev(returns, nil)
			sharpe := SharpeRatio(returns, rf, DefaultTradingDays)
			if std == 0 {
				return !sharpe.Defined
			}
			excess := mean - rf/DefaultTradingDays
			if !sharpe.Defined {
				return false
			}
			if excess == 0 {
				return sharpe.Value == 0
			}
			return math.Signbit(excess) == math.Signbit(sharpe.Value)
		},
		gen.SliceOfN(30, gen.Float64Range(-0.05, 0.05)),
		gen.Float64Range(0, 0.1),
	))

	properties.TestingRun(t)
}

// Property: compounding the daily returns of an equity series rebuilds it.
func TestProperty_ReturnsRoundTripEquity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("EquityFromReturns inverts DailyReturns", prop.ForAll(
		func(equity []float64) bool {
			rebuilt := EquityFromReturns(DailyReturns(equity), equity[0])
			if len(rebuilt) != len(equity) {
				return false
			}
			for i := range equity {
				if math.Abs(rebuilt[i]-equity[i]) > 1e-6*equity[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(20, gen.Float64Range(1, 1e6)),
	))

	properties.Property("max drawdown stays within [0, 1]", prop.ForAll(
		func(equity []float64) bool {
			dd := MaxDrawdown(equity)
			return dd >= 0 && dd <= 1
		},
		gen.SliceOfN(20, gen.Float64Range(1, 1e6)),
	))

	properties.TestingRun(t)
}
