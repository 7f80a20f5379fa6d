package backtest

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/workers"
)

// MonteCarloConfig controls trade resampling.
type MonteCarloConfig struct {
	Simulations      int     `json:"simulations" yaml:"simulations"`
	InitialCapital   float64 `json:"initial_capital" yaml:"initial_capital"`
	PositionFraction float64 `json:"position_fraction" yaml:"position_fraction"`
	Seed             uint64  `json:"seed" yaml:"seed"` // 0 draws a fresh seed
	Workers          int     `json:"-" yaml:"-"`
}

// DefaultMonteCarloConfig returns the default resampling settings.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		Simulations:      1000,
		InitialCapital:   100000,
		PositionFraction: 0.10,
	}
}

// Validate checks the configuration.
func (c MonteCarloConfig) Validate() error {
	if c.Simulations < 1 {
		return errors.NewConfigurationError("simulations", c.Simulations, "must be at least 1")
	}
	if !finite(c.InitialCapital) || c.InitialCapital <= 0 {
		return errors.NewConfigurationError("initial_capital", c.InitialCapital, "must be positive")
	}
	if !finite(c.PositionFraction) || c.PositionFraction <= 0 || c.PositionFraction > 1 {
		return errors.NewConfigurationError("position_fraction", c.PositionFraction, "must be in (0, 1]")
	}
	return nil
}

// Distribution summarizes simulated outcomes.
type Distribution struct {
	P5   float64 `json:"p5" yaml:"p5"`
	P50  float64 `json:"p50" yaml:"p50"`
	P95  float64 `json:"p95" yaml:"p95"`
	Mean float64 `json:"mean" yaml:"mean"`
	Std  float64 `json:"std" yaml:"std"`
}

// MonteCarloReport is the result of resampling a trade log.
type MonteCarloReport struct {
	Simulations         int          `json:"simulations" yaml:"simulations"`
	Trades              int          `json:"trades" yaml:"trades"`
	Seed                uint64       `json:"seed" yaml:"seed"`
	FinalEquity         Distribution `json:"final_equity" yaml:"final_equity"`
	TotalReturn         Distribution `json:"total_return" yaml:"total_return"`
	MaxDrawdown         Distribution `json:"max_drawdown" yaml:"max_drawdown"`
	ProbabilityOfProfit float64      `json:"probability_of_profit" yaml:"probability_of_profit"`
	Warnings            []error      `json:"-" yaml:"-"`
}

// MonteCarlo resamples the trades' percentage returns with replacement.
// Each simulation draws len(trades) returns and compounds equity by
// (1 + pnl_pct * PositionFraction) per trade. Simulation i uses its own
// PCG stream seeded with (Seed, i), so results do not depend on the
// number of workers.
func MonteCarlo(trades []models.Trade, cfg MonteCarloConfig) (*MonteCarloReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64() | 1
	}
	report := &MonteCarloReport{Seed: seed, Trades: len(trades)}

	if len(trades) == 0 {
		report.Warnings = append(report.Warnings, errors.NewInsufficientDataError("trades", 1, 0))
		return report, nil
	}

	returns := make([]float64, len(trades))
	for i, t := range trades {
		returns[i] = t.PnLPct
	}

	finals := make([]float64, cfg.Simulations)
	drawdowns := make([]float64, cfg.Simulations)

	workers.ForEach(cfg.Workers, cfg.Simulations, func(i int) {
		rng := rand.New(rand.NewPCG(seed, uint64(i)))
		equity, peak, maxDD := cfg.InitialCapital, cfg.InitialCapital, 0.0
		for range returns {
			equity *= 1 + returns[rng.IntN(len(returns))]*cfg.PositionFraction
			if equity > peak {
				peak = equity
			}
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		finals[i] = equity
		drawdowns[i] = maxDD
	})

	totals := make([]float64, len(finals))
	profitable := 0
	for i, f := range finals {
		totals[i] = f/cfg.InitialCapital - 1
		if f > cfg.InitialCapital {
			profitable++
		}
	}

	report.Simulations = cfg.Simulations
	report.FinalEquity = distribution(finals)
	report.TotalReturn = distribution(totals)
	report.MaxDrawdown = distribution(drawdowns)
	report.ProbabilityOfProfit = float64(profitable) / float64(cfg.Simulations)
	return report, nil
}

func distribution(xs []float64) Distribution {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	d := Distribution{
		P5:  stat.Quantile(0.05, stat.Empirical, sorted, nil),
		P50: stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P95: stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		d.Mean, d.Std = stat.MeanStdDev(sorted, nil)
	} else {
		d.Mean = sorted[0]
	}
	return d
}
