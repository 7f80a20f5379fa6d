// Package performance computes trade-log statistics, ranks strategies and
// searches for low-correlation strategy combinations.
package performance

import (
	"sort"

	"github.com/rs/zerolog"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/workers"
)

// Default analyzer settings.
const (
	DefaultRiskFreeRate = 0.02
	DefaultTradingDays  = 252
)

// Metrics summarizes one trade log.
type Metrics struct {
	TradeCount       int          `json:"trade_count" yaml:"trade_count"`
	Wins             int          `json:"wins" yaml:"wins"`
	Losses           int          `json:"losses" yaml:"losses"`
	WinRate          models.Ratio `json:"win_rate" yaml:"win_rate"`
	SharpeRatio      models.Ratio `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	SortinoRatio     models.Ratio `json:"sortino_ratio" yaml:"sortino_ratio"`
	MaxDrawdown      float64      `json:"max_drawdown" yaml:"max_drawdown"`
	ProfitFactor     models.Ratio `json:"profit_factor" yaml:"profit_factor"`
	Expectancy       models.Ratio `json:"expectancy" yaml:"expectancy"`
	TotalReturn      float64      `json:"total_return" yaml:"total_return"`
	AnnualizedReturn models.Ratio `json:"annualized_return" yaml:"annualized_return"`
	GrossProfit      float64      `json:"gross_profit" yaml:"gross_profit"`
	GrossLoss        float64      `json:"gross_loss" yaml:"gross_loss"`
	AvgWin           float64      `json:"avg_win" yaml:"avg_win"`
	AvgLoss          float64      `json:"avg_loss" yaml:"avg_loss"`
	Warnings         []error      `json:"-" yaml:"-"`
}

// Ranking is one row of a strategy comparison.
type Ranking struct {
	Rank     int     `json:"rank" yaml:"rank"`
	Strategy string  `json:"strategy" yaml:"strategy"`
	Metrics  Metrics `json:"metrics" yaml:"metrics"`
}

// Analyzer computes performance statistics. The zero value is not usable;
// create one with NewAnalyzer.
type Analyzer struct {
	RiskFreeRate float64 // annual
	TradingDays  int
	Workers      int

	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer with default settings.
func NewAnalyzer() *Analyzer {
	return &Analyzer{
		RiskFreeRate: DefaultRiskFreeRate,
		TradingDays:  DefaultTradingDays,
		logger:       zerolog.Nop(),
	}
}

// WithLogger sets the logger.
func (a *Analyzer) WithLogger(logger zerolog.Logger) *Analyzer {
	a.logger = logger
	return a
}

func (a *Analyzer) tradingDays() int {
	if a.TradingDays <= 0 {
		return DefaultTradingDays
	}
	return a.TradingDays
}

// Analyze computes the metrics of a trade log. Ratios that cannot be
// computed are left undefined and reported in Metrics.Warnings.
func (a *Analyzer) Analyze(log models.TradeLog) Metrics {
	m := Metrics{TradeCount: len(log.Trades)}

	for _, t := range log.Trades {
		switch {
		case t.PnL > 0:
			m.Wins++
			m.GrossProfit += t.PnL
		case t.PnL < 0:
			m.Losses++
			m.GrossLoss -= t.PnL
		}
	}
	if m.Wins > 0 {
		m.AvgWin = m.GrossProfit / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = m.GrossLoss / float64(m.Losses)
	}

	if m.TradeCount > 0 {
		wr := float64(m.Wins) / float64(m.TradeCount)
		m.WinRate = models.DefinedRatio(wr)
		m.Expectancy = models.DefinedRatio(wr*m.AvgWin - (1-wr)*m.AvgLoss)
	} else {
		m.Warnings = append(m.Warnings, errors.NewNumericDegenerateError("win_rate", "no trades"))
	}

	if m.GrossLoss > 0 {
		m.ProfitFactor = models.DefinedRatio(m.GrossProfit / m.GrossLoss)
	} else {
		m.Warnings = append(m.Warnings, errors.NewNumericDegenerateError("profit_factor", "no losing trades"))
	}

	curve := log.EquityCurve
	if len(curve) == 0 {
		curve = EquityCurveFromTrades(log)
	}
	equity := equityValues(curve)
	returns := DailyReturns(equity)
	days := a.tradingDays()

	m.MaxDrawdown = MaxDrawdown(equity)
	m.SharpeRatio = SharpeRatio(returns, a.RiskFreeRate, days)
	if !m.SharpeRatio.Defined {
		m.Warnings = append(m.Warnings, errors.NewNumericDegenerateError("sharpe_ratio", "fewer than two returns or zero variance"))
	}
	m.SortinoRatio = SortinoRatio(returns, a.RiskFreeRate, days)
	if !m.SortinoRatio.Defined {
		m.Warnings = append(m.Warnings, errors.NewNumericDegenerateError("sortino_ratio", "fewer than two negative returns or zero downside deviation"))
	}

	initial := log.InitialCapital
	if initial <= 0 && len(equity) > 0 {
		initial = equity[0]
	}
	if initial > 0 && len(equity) > 0 {
		m.TotalReturn = equity[len(equity)-1]/initial - 1
	}
	m.AnnualizedReturn = AnnualizedReturn(m.TotalReturn, len(returns), days)

	return m
}

// EquityCurveFromTrades rebuilds a daily equity curve from realized PnL,
// one point per exit day plus the starting capital on the first entry day.
func EquityCurveFromTrades(log models.TradeLog) []models.EquityPoint {
	if len(log.Trades) == 0 {
		return nil
	}

	trades := make([]models.Trade, len(log.Trades))
	copy(trades, log.Trades)
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExitDate.Before(trades[j].ExitDate)
	})

	first := trades[0].EntryDate
	for _, t := range trades {
		if t.EntryDate.Before(first) {
			first = t.EntryDate
		}
	}

	equity := log.InitialCapital
	curve := []models.EquityPoint{{Timestamp: models.Day(first), Equity: equity}}
	for _, t := range trades {
		equity += t.PnL
		day := models.Day(t.ExitDate)
		if last := &curve[len(curve)-1]; last.Timestamp.Equal(day) {
			last.Equity = equity
			continue
		}
		curve = append(curve, models.EquityPoint{Timestamp: day, Equity: equity})
	}
	return curve
}

// Better reports whether a ranks ahead of b: defined Sharpe beats
// undefined, higher Sharpe wins, ties go to the higher total return.
func Better(a, b Metrics) bool {
	if a.SharpeRatio.Defined != b.SharpeRatio.Defined {
		return a.SharpeRatio.Defined
	}
	if a.SharpeRatio.Defined && a.SharpeRatio.Value != b.SharpeRatio.Value {
		return a.SharpeRatio.Value > b.SharpeRatio.Value
	}
	return a.TotalReturn > b.TotalReturn
}

// Compare analyzes every log in parallel and ranks them best first.
func (a *Analyzer) Compare(logs map[string]models.TradeLog) []Ranking {
	names := sortedNames(logs)
	rankings := make([]Ranking, len(names))

	workers.ForEach(a.Workers, len(names), func(i int) {
		rankings[i] = Ranking{Strategy: names[i], Metrics: a.Analyze(logs[names[i]])}
	})

	sort.SliceStable(rankings, func(i, j int) bool {
		return Better(rankings[i].Metrics, rankings[j].Metrics)
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	a.logger.Debug().Int("strategies", len(rankings)).Msg("Compared strategies")
	return rankings
}

func sortedNames(logs map[string]models.TradeLog) []string {
	names := make([]string, 0, len(logs))
	for name := range logs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
