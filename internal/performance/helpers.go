package performance

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"stock-analysis/internal/models"
)

// DailyReturns converts an equity series into simple period returns.
// Periods starting from a non-positive value are skipped.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 {
			continue
		}
		out = append(out, equity[i]/equity[i-1]-1)
	}
	return out
}

// EquityFromReturns compounds returns onto a starting value. The result
// has len(returns)+1 points.
func EquityFromReturns(returns []float64, start float64) []float64 {
	out := make([]float64, len(returns)+1)
	out[0] = start
	for i, r := range returns {
		out[i+1] = out[i] * (1 + r)
	}
	return out
}

// SharpeRatio is the annualized Sharpe ratio of daily returns using the
// sample standard deviation. Undefined for fewer than two returns or zero
// variance.
func SharpeRatio(returns []float64, riskFreeRate float64, tradingDays int) models.Ratio {
	if len(returns) < 2 {
		return models.UndefinedRatio()
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return models.UndefinedRatio()
	}
	days := float64(tradingDays)
	return models.DefinedRatio((mean - riskFreeRate/days) / std * math.Sqrt(days))
}

// SortinoRatio is like SharpeRatio but divides by the sample standard
// deviation of the negative returns only.
func SortinoRatio(returns []float64, riskFreeRate float64, tradingDays int) models.Ratio {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return models.UndefinedRatio()
	}
	std := stat.StdDev(downside, nil)
	if std == 0 || math.IsNaN(std) {
		return models.UndefinedRatio()
	}
	days := float64(tradingDays)
	return models.DefinedRatio((stat.Mean(returns, nil) - riskFreeRate/days) / std * math.Sqrt(days))
}

// MaxDrawdown returns the largest peak-to-trough decline as a fraction of
// the peak (0.25 = 25%).
func MaxDrawdown(equity []float64) float64 {
	var peak, maxDD float64
	for i, e := range equity {
		if i == 0 || e > peak {
			peak = e
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - e) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// AnnualizedReturn scales a total return over periods observations to a
// yearly rate.
func AnnualizedReturn(totalReturn float64, periods, tradingDays int) models.Ratio {
	if periods <= 0 || totalReturn <= -1 {
		return models.UndefinedRatio()
	}
	return models.DefinedRatio(math.Pow(1+totalReturn, float64(tradingDays)/float64(periods)) - 1)
}

func equityValues(curve []models.EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i] = p.Equity
	}
	return out
}
