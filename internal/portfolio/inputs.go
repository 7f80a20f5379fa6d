// Package portfolio implements Monte Carlo mean-variance optimization over
// a set of assets.
package portfolio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"stock-analysis/internal/errors"
)

// History maps each asset to its aligned daily return series.
type History map[string][]float64

// Inputs are the annualized estimates the optimizer works from.
type Inputs struct {
	Assets       []string
	Mean         []float64 // annualized expected return per asset
	Covariance   *mat.SymDense
	Observations int
}

// EstimateInputs computes annualized mean returns and the annualized sample
// covariance matrix of the named assets.
func EstimateInputs(assets []string, history History, tradingDays int) (*Inputs, error) {
	if len(assets) == 0 {
		return nil, errors.NewConfigurationError("assets", assets, "at least one asset is required")
	}
	if tradingDays < 1 {
		return nil, errors.NewConfigurationError("trading_days", tradingDays, "must be positive")
	}

	seen := make(map[string]bool, len(assets))
	obs := -1
	for _, a := range assets {
		if seen[a] {
			return nil, errors.NewConfigurationError("assets", a, "duplicate asset")
		}
		seen[a] = true

		series, ok := history[a]
		if !ok {
			return nil, errors.NewConfigurationError("assets", a, "no return history for asset")
		}
		if obs >= 0 && len(series) != obs {
			return nil, errors.NewConfigurationError("history", a, fmt.Sprintf("has %d observations, expected %d", len(series), obs))
		}
		obs = len(series)
		for _, r := range series {
			if math.IsNaN(r) || math.IsInf(r, 0) {
				return nil, errors.NewConfigurationError("history", a, "contains a non-finite return")
			}
		}
	}
	if obs < 2 {
		return nil, errors.NewInsufficientDataError("return observations", 2, obs)
	}

	n := len(assets)
	x := mat.NewDense(obs, n, nil)
	mean := make([]float64, n)
	for j, a := range assets {
		x.SetCol(j, history[a])
		mean[j] = stat.Mean(history[a], nil) * float64(tradingDays)
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, x, nil)
	cov.ScaleSym(float64(tradingDays), cov)

	return &Inputs{
		Assets:       append([]string(nil), assets...),
		Mean:         mean,
		Covariance:   cov,
		Observations: obs,
	}, nil
}

// Return is the expected annual return of weights w.
func (in *Inputs) Return(w []float64) float64 {
	return floats.Dot(w, in.Mean)
}

// Variance is wᵗΣw.
func (in *Inputs) Variance(w []float64) float64 {
	v := mat.NewVecDense(len(w), w)
	variance := mat.Inner(v, in.Covariance, v)
	if variance < 0 {
		// rounding on perfectly hedged portfolios
		return 0
	}
	return variance
}
