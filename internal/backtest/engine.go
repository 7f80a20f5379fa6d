// Package backtest simulates strategies bar by bar over a price series and
// provides walk-forward validation and Monte Carlo trade resampling.
package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/logging"
	"stock-analysis/internal/models"
	"stock-analysis/internal/strategies"
	"stock-analysis/internal/workers"
)

// Result is the outcome of one backtest run.
type Result struct {
	TradeLog models.TradeLog `json:"trade_log" yaml:"trade_log"`
	Options  Options         `json:"options" yaml:"options"`
	Warnings []error         `json:"-" yaml:"-"`
}

// Runner executes backtests.
type Runner struct {
	logger zerolog.Logger
}

// NewRunner creates a runner that logs to logger.
func NewRunner(logger zerolog.Logger) *Runner {
	return &Runner{logger: logger}
}

var defaultRunner = NewRunner(zerolog.Nop())

// Run backtests strategy over series with a silent runner.
func Run(strategy strategies.Strategy, series models.Series, opts Options) (*Result, error) {
	return defaultRunner.Run(strategy, series, opts)
}

// RunStrategies backtests several strategies in parallel with a silent runner.
func RunStrategies(list []strategies.Strategy, series models.Series, opts Options, workers int) (map[string]*Result, error) {
	return defaultRunner.RunStrategies(list, series, opts, workers)
}

// state is the simulation state folded over the bars.
type state struct {
	cash   float64
	pos    *position
	trades []models.Trade
	curve  []models.EquityPoint
}

type simulation struct {
	strategy strategies.Strategy
	series   models.Series
	opts     *Options
	logger   zerolog.Logger
}

// Run simulates a single long-only strategy. Invalid options or series are
// returned as errors; a series too short to trade yields an empty log with
// a warning.
func (r *Runner) Run(strategy strategies.Strategy, series models.Series, opts Options) (*Result, error) {
	if strategy == nil {
		return nil, errors.NewConfigurationError("strategy", nil, "strategy is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()
	logger := logging.WithSymbol(logging.WithStrategy(r.logger, strategy.Name()), series.Symbol)

	result := &Result{
		TradeLog: models.TradeLog{
			Strategy:       strategy.Name(),
			Symbol:         series.Symbol,
			InitialCapital: opts.InitialCapital,
			Trades:         []models.Trade{},
			EquityCurve:    []models.EquityPoint{},
		},
		Options: opts,
	}

	if series.Len() <= opts.Warmup {
		result.Warnings = append(result.Warnings,
			errors.NewInsufficientDataError("price series", opts.Warmup+1, series.Len()))
		logger.Warn().Int("bars", series.Len()).Int("warmup", opts.Warmup).Msg("Series too short to trade")
		return result, nil
	}

	sim := &simulation{strategy: strategy, series: series, opts: &opts, logger: logger}
	st := state{
		cash:   opts.InitialCapital,
		trades: []models.Trade{},
		curve:  make([]models.EquityPoint, 0, series.Len()-opts.Warmup),
	}
	for i := opts.Warmup; i < series.Len(); i++ {
		st = sim.step(st, i)
	}

	result.TradeLog.Trades = st.trades
	result.TradeLog.EquityCurve = st.curve

	logger.Debug().
		Int("bars", series.Len()-opts.Warmup).
		Int("trades", len(st.trades)).
		Float64("final_equity", result.TradeLog.FinalEquity()).
		Dur("duration", time.Since(started)).
		Msg("Backtest completed")

	return result, nil
}

// RunStrategies backtests each strategy on the same series in parallel and
// returns the results keyed by strategy name.
func (r *Runner) RunStrategies(list []strategies.Strategy, series models.Series, opts Options, workerCount int) (map[string]*Result, error) {
	seen := make(map[string]bool, len(list))
	for _, s := range list {
		if s == nil {
			return nil, errors.NewConfigurationError("strategy", nil, "strategy is required")
		}
		if seen[s.Name()] {
			return nil, errors.NewConfigurationError("strategy", s.Name(), "duplicate strategy name")
		}
		seen[s.Name()] = true
	}

	results := make([]*Result, len(list))
	errs := make([]error, len(list))
	workers.ForEach(workerCount, len(list), func(i int) {
		results[i], errs[i] = r.Run(list[i], series, opts)
	})

	out := make(map[string]*Result, len(list))
	for i, s := range list {
		if errs[i] != nil {
			return nil, errors.Wrapf(errs[i], "backtesting %s", s.Name())
		}
		out[s.Name()] = results[i]
	}
	return out, nil
}

// step advances the simulation by one bar and returns the new state.
func (s *simulation) step(st state, i int) state {
	candles := s.series.Candles
	bar := candles[i]
	last := i == len(candles)-1

	sig := s.strategy.Signal(candles[:i+1])
	if !sig.Action.Valid() {
		sig = models.Hold()
	}
	sig.Confidence = models.ClampConfidence(sig.Confidence)

	exited := false
	if st.pos != nil {
		next, orders := st.pos.evaluate(bar, sig, s.opts)
		if last && s.opts.CloseAtEnd && next.Shares > 0 {
			orders = append(orders, exitOrder{Shares: next.Shares, Reason: models.Exit(models.ExitEndOfData)})
			next.Shares = 0
		}
		for _, o := range orders {
			st = s.exit(st, next, o, bar)
		}
		if next.Shares > 0 {
			st.pos = &next
		} else {
			st.pos = nil
			exited = true
		}
	}

	// no re-entry on the bar that closed a position, and nothing opened on
	// a final bar that would be force-closed
	if st.pos == nil && !exited && sig.Action == models.ActionBuy && !(last && s.opts.CloseAtEnd) {
		st = s.enter(st, bar, i)
	}

	equity := st.cash
	if st.pos != nil {
		equity += st.pos.Shares * bar.Close
	}
	st.curve = append(st.curve, models.EquityPoint{Timestamp: bar.Timestamp, Equity: equity})
	return st
}

func (s *simulation) enter(st state, bar models.Candle, i int) state {
	fill := bar.Close * (1 + s.opts.SlippageRate)
	shares := math.Floor(s.opts.PositionSize * st.cash / fill)
	affordable := math.Floor(st.cash / (fill * (1 + s.opts.CommissionRate)))
	shares = math.Min(shares, affordable)
	if shares < 1 {
		return st
	}

	commission := shares * fill * s.opts.CommissionRate
	pos := openPosition(s.series.Symbol, bar, i, fill, shares, commission, s.opts.ProfitLevels.Len())
	st.cash -= shares*fill + commission
	st.pos = &pos

	s.logger.Debug().
		Str("date", bar.Timestamp.Format("2006-01-02")).
		Float64("shares", shares).
		Float64("price", fill).
		Msg("Position opened")
	return st
}

func (s *simulation) exit(st state, pos position, o exitOrder, bar models.Candle) state {
	fill := bar.Close * (1 - s.opts.SlippageRate)
	gross := o.Shares * fill
	commission := gross * s.opts.CommissionRate
	cost := o.Shares*pos.EntryPrice + pos.EntryCommission*o.Shares/pos.OriginalShares
	pnl := gross - commission - cost

	trade := models.Trade{
		Strategy:   s.strategy.Name(),
		Symbol:     s.series.Symbol,
		EntryDate:  pos.EntryDate,
		EntryPrice: pos.EntryPrice,
		ExitDate:   bar.Timestamp,
		ExitPrice:  fill,
		Shares:     o.Shares,
		ExitReason: o.Reason,
		PnL:        pnl,
		PnLPct:     pnl / cost,
	}

	st.cash += gross - commission
	st.trades = append(st.trades, trade)

	logging.LogTrade(s.logger, s.series.Symbol, o.Reason.String(), o.Shares, fill, pnl)
	return st
}

// String describes a result for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%s/%s: %d trades, final equity %.2f",
		r.TradeLog.Strategy, r.TradeLog.Symbol, len(r.TradeLog.Trades), r.TradeLog.FinalEquity())
}
