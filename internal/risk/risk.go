// Package risk computes risk metrics for a weighted portfolio from its
// assets' historical daily returns.
package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/performance"
	"stock-analysis/internal/portfolio"
)

// CorrelationMatrix holds pairwise correlations of asset returns.
type CorrelationMatrix struct {
	Assets []string         `json:"assets" yaml:"assets"`
	Values [][]models.Ratio `json:"values" yaml:"values"`
}

// Get returns the correlation between two assets.
func (c CorrelationMatrix) Get(a, b string) models.Ratio {
	i, j := -1, -1
	for k, name := range c.Assets {
		if name == a {
			i = k
		}
		if name == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return models.UndefinedRatio()
	}
	return c.Values[i][j]
}

// Report holds the risk metrics of a portfolio.
type Report struct {
	Weights        models.WeightVector `json:"weights" yaml:"weights"`
	Observations   int                 `json:"observations" yaml:"observations"`
	ExpectedReturn float64             `json:"expected_return" yaml:"expected_return"` // annualized
	Volatility     float64             `json:"volatility" yaml:"volatility"`           // annualized
	SharpeRatio    models.Ratio        `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	SortinoRatio   models.Ratio        `json:"sortino_ratio" yaml:"sortino_ratio"`
	MaxDrawdown    float64             `json:"max_drawdown" yaml:"max_drawdown"`
	VaR95          float64             `json:"var_95" yaml:"var_95"` // daily, as a positive loss
	VaR99          float64             `json:"var_99" yaml:"var_99"`
	CVaR95         float64             `json:"cvar_95" yaml:"cvar_95"`
	Beta           models.Ratio        `json:"beta" yaml:"beta"`
	Correlation    CorrelationMatrix   `json:"correlation_matrix" yaml:"correlation_matrix"`
	Warnings       []error             `json:"-" yaml:"-"`
}

// Analyzer computes portfolio risk reports.
type Analyzer struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	TradingDays  int     `mapstructure:"trading_days"`

	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer with default settings.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		RiskFreeRate: performance.DefaultRiskFreeRate,
		TradingDays:  performance.DefaultTradingDays,
		logger:       zerolog.Nop(),
	}
}

// WithLogger sets the analyzer logger.
func (a *Analyzer) WithLogger(logger zerolog.Logger) *Analyzer {
	a.logger = logger
	return a
}

// AnalyzePortfolio combines the assets' daily returns with weights and
// measures the resulting return series. Weights are normalized over the
// history's assets and assets without a weight count as zero. A nil
// benchmark leaves beta undefined.
func (a *Analyzer) AnalyzePortfolio(weights models.WeightVector, history portfolio.History, benchmark []float64) (*Report, error) {
	if a.TradingDays < 1 {
		return nil, errors.NewConfigurationError("trading_days", a.TradingDays, "must be positive")
	}
	if len(history) == 0 {
		return nil, errors.NewConfigurationError("history", nil, "at least one asset is required")
	}

	assets := make([]string, 0, len(history))
	for name := range history {
		assets = append(assets, name)
	}
	sort.Strings(assets)

	obs := len(history[assets[0]])
	for _, name := range assets {
		if len(history[name]) != obs {
			return nil, errors.NewConfigurationError("history", name, fmt.Sprintf("has %d observations, expected %d", len(history[name]), obs))
		}
	}
	if obs < 2 {
		return nil, errors.NewInsufficientDataError("return observations", 2, obs)
	}

	raw := make(map[string]float64, len(assets))
	for _, name := range assets {
		raw[name] = 0
	}
	for name, w := range weights {
		if _, ok := history[name]; !ok {
			return nil, errors.NewConfigurationError("weights", name, "no return history for weighted asset")
		}
		raw[name] = w
	}
	normalized, err := models.NewWeightVector(raw)
	if err != nil {
		return nil, errors.NewConfigurationError("weights", weights, err.Error())
	}

	returns := make([]float64, obs)
	for _, name := range assets {
		w := normalized[name]
		if w == 0 {
			continue
		}
		for t, r := range history[name] {
			returns[t] += w * r
		}
	}

	days := float64(a.TradingDays)
	report := &Report{
		Weights:        normalized,
		Observations:   obs,
		ExpectedReturn: stat.Mean(returns, nil) * days,
		Volatility:     stat.StdDev(returns, nil) * math.Sqrt(days),
		SharpeRatio:    performance.SharpeRatio(returns, a.RiskFreeRate, a.TradingDays),
		SortinoRatio:   performance.SortinoRatio(returns, a.RiskFreeRate, a.TradingDays),
		MaxDrawdown:    performance.MaxDrawdown(performance.EquityFromReturns(returns, 1)),
		Correlation:    correlationMatrix(assets, history, obs),
	}
	report.VaR95, report.CVaR95 = historicalVaR(returns, 0.05)
	report.VaR99, _ = historicalVaR(returns, 0.01)

	if !report.SharpeRatio.Defined {
		report.Warnings = append(report.Warnings, errors.NewNumericDegenerateError("sharpe_ratio", "portfolio returns have zero variance"))
	}
	if !report.SortinoRatio.Defined {
		report.Warnings = append(report.Warnings, errors.NewNumericDegenerateError("sortino_ratio", "downside deviation is undefined"))
	}

	var reason string
	report.Beta, reason = beta(returns, benchmark)
	if !report.Beta.Defined {
		report.Warnings = append(report.Warnings, errors.NewNumericDegenerateError("beta", reason))
	}

	a.logger.Debug().
		Int("assets", len(assets)).
		Int("observations", obs).
		Float64("volatility", report.Volatility).
		Float64("var_95", report.VaR95).
		Msg("Analyzed portfolio risk")

	return report, nil
}

// historicalVaR returns the loss at the given tail probability and the mean
// loss at or beyond it, both as positive numbers for losses.
func historicalVaR(returns []float64, p float64) (float64, float64) {
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)

	q := stat.Quantile(p, stat.Empirical, sorted, nil)

	var sum float64
	var n int
	for _, r := range sorted {
		if r > q {
			break
		}
		sum += r
		n++
	}
	return -q, -sum / float64(n)
}

func beta(returns, benchmark []float64) (models.Ratio, string) {
	switch {
	case benchmark == nil:
		return models.UndefinedRatio(), "no benchmark supplied"
	case len(benchmark) != len(returns):
		return models.UndefinedRatio(), fmt.Sprintf("benchmark has %d observations, portfolio has %d", len(benchmark), len(returns))
	}
	variance := stat.Variance(benchmark, nil)
	if variance == 0 || math.IsNaN(variance) {
		return models.UndefinedRatio(), "benchmark returns have zero variance"
	}
	return models.DefinedRatio(stat.Covariance(returns, benchmark, nil) / variance), ""
}

func correlationMatrix(assets []string, history portfolio.History, obs int) CorrelationMatrix {
	n := len(assets)
	x := mat.NewDense(obs, n, nil)
	for j, name := range assets {
		x.SetCol(j, history[name])
	}
	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, x, nil)

	values := make([][]models.Ratio, n)
	for i := range values {
		values[i] = make([]models.Ratio, n)
		for j := range values[i] {
			v := corr.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				values[i][j] = models.UndefinedRatio()
				continue
			}
			values[i][j] = models.DefinedRatio(v)
		}
	}
	return CorrelationMatrix{Assets: assets, Values: values}
}
