package backtest

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/performance"
	"stock-analysis/internal/strategies"
	"stock-analysis/internal/workers"
)

// WalkForwardConfig controls walk-forward validation.
type WalkForwardConfig struct {
	Windows       int     `json:"windows" yaml:"windows"`
	InSampleRatio float64 `json:"in_sample_ratio" yaml:"in_sample_ratio"`
	Anchored      bool    `json:"anchored" yaml:"anchored"`
	RiskFreeRate  float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	Workers       int     `json:"-" yaml:"-"`
}

// DefaultWalkForwardConfig returns the default walk-forward settings.
func DefaultWalkForwardConfig() WalkForwardConfig {
	return WalkForwardConfig{
		Windows:       4,
		InSampleRatio: 0.7,
		RiskFreeRate:  performance.DefaultRiskFreeRate,
	}
}

// Validate checks the configuration.
func (c WalkForwardConfig) Validate() error {
	if c.Windows < 1 {
		return errors.NewConfigurationError("windows", c.Windows, "must be at least 1")
	}
	if !finite(c.InSampleRatio) || c.InSampleRatio <= 0 || c.InSampleRatio >= 1 {
		return errors.NewConfigurationError("in_sample_ratio", c.InSampleRatio, "must be in (0, 1)")
	}
	return nil
}

// Window is one in-sample/out-of-sample split. Bounds are bar indexes,
// end exclusive.
type Window struct {
	Index          int `json:"index" yaml:"index"`
	InSampleStart  int `json:"in_sample_start" yaml:"in_sample_start"`
	InSampleEnd    int `json:"in_sample_end" yaml:"in_sample_end"`
	OutSampleStart int `json:"out_sample_start" yaml:"out_sample_start"`
	OutSampleEnd   int `json:"out_sample_end" yaml:"out_sample_end"`
}

// WindowResult holds the selection and both evaluations of one window.
type WindowResult struct {
	Window         Window              `json:"window" yaml:"window"`
	From           time.Time           `json:"from" yaml:"from"`
	To             time.Time           `json:"to" yaml:"to"`
	Selected       string              `json:"selected" yaml:"selected"`
	InSample       performance.Metrics `json:"in_sample" yaml:"in_sample"`
	OutOfSample    performance.Metrics `json:"out_of_sample" yaml:"out_of_sample"`
	OutOfSampleLog models.TradeLog     `json:"-" yaml:"-"`
}

// WalkForwardReport aggregates all windows.
type WalkForwardReport struct {
	Config     WalkForwardConfig   `json:"config" yaml:"config"`
	Windows    []WindowResult      `json:"windows" yaml:"windows"`
	Aggregate  performance.Metrics `json:"aggregate" yaml:"aggregate"`
	Efficiency models.Ratio        `json:"efficiency" yaml:"efficiency"`
	Warnings   []error             `json:"-" yaml:"-"`
}

// SplitWindows computes the walk-forward windows for n bars. Each window
// has length W = n / (r + k(1-r)); out-of-sample segments are contiguous
// and do not overlap. Anchored windows always start in-sample at bar 0.
func SplitWindows(n int, cfg WalkForwardConfig) []Window {
	k := float64(cfg.Windows)
	w := float64(n) / (cfg.InSampleRatio + k*(1-cfg.InSampleRatio))
	is := int(math.Floor(w * cfg.InSampleRatio))
	if is < 0 || is >= n {
		return nil
	}
	oos := (n - is) / cfg.Windows

	out := make([]Window, 0, cfg.Windows)
	for j := 0; j < cfg.Windows; j++ {
		start := j * oos
		if cfg.Anchored {
			start = 0
		}
		out = append(out, Window{
			Index:          j,
			InSampleStart:  start,
			InSampleEnd:    is + j*oos,
			OutSampleStart: is + j*oos,
			OutSampleEnd:   is + (j+1)*oos,
		})
	}
	return out
}

// WalkForward runs walk-forward validation with a silent runner.
func WalkForward(candidates []strategies.Strategy, series models.Series, opts Options, cfg WalkForwardConfig) (*WalkForwardReport, error) {
	return defaultRunner.WalkForward(candidates, series, opts, cfg)
}

// WalkForward selects, in every window, the candidate with the best
// in-sample Sharpe ratio and evaluates it on the following out-of-sample
// segment, with the in-sample bars visible as warmup.
func (r *Runner) WalkForward(candidates []strategies.Strategy, series models.Series, opts Options, cfg WalkForwardConfig) (*WalkForwardReport, error) {
	if len(candidates) == 0 {
		return nil, errors.NewConfigurationError("candidates", nil, "at least one strategy is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	analyzer := performance.NewAnalyzer()
	analyzer.RiskFreeRate = cfg.RiskFreeRate

	report := &WalkForwardReport{Config: cfg}
	var oosLogs []models.TradeLog
	var isSharpe, oosSharpe []float64

	for _, w := range SplitWindows(series.Len(), cfg) {
		isLen := w.InSampleEnd - w.InSampleStart
		oosLen := w.OutSampleEnd - w.OutSampleStart
		if isLen < 2 || oosLen < 2 {
			report.Warnings = append(report.Warnings, errors.Wrapf(
				errors.NewInsufficientDataError("walk-forward segment", 2, min(isLen, oosLen)),
				"window %d skipped", w.Index))
			continue
		}

		inSample := series.Slice(w.InSampleStart, w.InSampleEnd)
		results, err := r.RunStrategies(candidates, inSample, opts, cfg.Workers)
		if err != nil {
			return nil, errors.Wrapf(err, "window %d in-sample", w.Index)
		}

		metrics := make([]performance.Metrics, len(candidates))
		workers.ForEach(cfg.Workers, len(candidates), func(i int) {
			metrics[i] = analyzer.Analyze(results[candidates[i].Name()].TradeLog)
		})
		best := 0
		for i := 1; i < len(candidates); i++ {
			if performance.Better(metrics[i], metrics[best]) {
				best = i
			}
		}

		oosOpts := opts
		oosOpts.Warmup = isLen
		outSample, err := r.Run(candidates[best], series.Slice(w.InSampleStart, w.OutSampleEnd), oosOpts)
		if err != nil {
			return nil, errors.Wrapf(err, "window %d out-of-sample", w.Index)
		}
		oosMetrics := analyzer.Analyze(outSample.TradeLog)

		report.Windows = append(report.Windows, WindowResult{
			Window:         w,
			From:           series.Candles[w.InSampleStart].Timestamp,
			To:             series.Candles[w.OutSampleEnd-1].Timestamp,
			Selected:       candidates[best].Name(),
			InSample:       metrics[best],
			OutOfSample:    oosMetrics,
			OutOfSampleLog: outSample.TradeLog,
		})
		oosLogs = append(oosLogs, outSample.TradeLog)

		if metrics[best].SharpeRatio.Defined {
			isSharpe = append(isSharpe, metrics[best].SharpeRatio.Value)
		}
		if oosMetrics.SharpeRatio.Defined {
			oosSharpe = append(oosSharpe, oosMetrics.SharpeRatio.Value)
		}

		r.logger.Debug().
			Int("window", w.Index).
			Str("selected", candidates[best].Name()).
			Str("is_sharpe", metrics[best].SharpeRatio.String()).
			Str("oos_sharpe", oosMetrics.SharpeRatio.String()).
			Msg("Walk-forward window evaluated")
	}

	if len(report.Windows) == 0 {
		report.Warnings = append(report.Warnings,
			errors.NewInsufficientDataError("walk-forward windows", 1, 0))
		return report, nil
	}

	combined := chainLogs(oosLogs, opts.InitialCapital)
	combined.Symbol = series.Symbol
	combined.Strategy = "walk_forward"
	report.Aggregate = analyzer.Analyze(combined)
	report.Efficiency = efficiency(isSharpe, oosSharpe)
	if !report.Efficiency.Defined {
		report.Warnings = append(report.Warnings,
			errors.NewNumericDegenerateError("walk_forward_efficiency", "mean in-sample Sharpe is zero or undefined"))
	}
	return report, nil
}

// chainLogs concatenates consecutive out-of-sample logs into one, scaling
// each equity curve so that segment j starts where segment j-1 ended.
func chainLogs(logs []models.TradeLog, initial float64) models.TradeLog {
	out := models.TradeLog{InitialCapital: initial}
	factor := 1.0
	for _, l := range logs {
		out.Trades = append(out.Trades, l.Trades...)
		for _, p := range l.EquityCurve {
			out.EquityCurve = append(out.EquityCurve, models.EquityPoint{Timestamp: p.Timestamp, Equity: p.Equity * factor})
		}
		if l.InitialCapital > 0 {
			factor *= l.FinalEquity() / l.InitialCapital
		}
	}
	return out
}

func efficiency(isSharpe, oosSharpe []float64) models.Ratio {
	if len(isSharpe) == 0 || len(oosSharpe) == 0 {
		return models.UndefinedRatio()
	}
	isMean := stat.Mean(isSharpe, nil)
	if isMean == 0 {
		return models.UndefinedRatio()
	}
	return models.DefinedRatio(stat.Mean(oosSharpe, nil) / isMean)
}

// String summarizes the report for logs.
func (r *WalkForwardReport) String() string {
	return fmt.Sprintf("%d windows, efficiency %s", len(r.Windows), r.Efficiency)
}
