package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-analysis/internal/backtest"
	"stock-analysis/internal/errors"
	"stock-analysis/internal/logging"
	"stock-analysis/internal/models"
	"stock-analysis/internal/performance"
	"stock-analysis/internal/store"
	"stock-analysis/internal/strategies"
	"stock-analysis/pkg/utils"
)

func newBacktestCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Backtest strategies on stored price history",
		Long: `Simulate long-only strategies bar by bar with stop-loss, take-profit,
trailing stop, time exits and partial profit taking.

Options come from the [backtest] config section; override single keys with
--set, e.g. --set stop_loss=0.08 --set trailing_stop=true.`,
	}

	cmd.AddCommand(newBacktestRunCmd(app))
	cmd.AddCommand(newBacktestCompareCmd(app))
	cmd.AddCommand(newBacktestWalkForwardCmd(app))
	cmd.AddCommand(newBacktestMonteCarloCmd(app))
	cmd.AddCommand(newBacktestRunsCmd(app))
	cmd.AddCommand(newBacktestShowCmd(app))
	cmd.AddCommand(newBacktestStrategiesCmd(app))

	return cmd
}

// addBacktestFlags adds the flags shared by every simulation command.
func addBacktestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("symbol", "s", "", "stored symbol to backtest (required)")
	cmd.Flags().StringArray("set", nil, "override a backtest option, key=value (repeatable)")
	addDateRangeFlags(cmd)
}

// backtestOptions merges --set overrides into the configured options map.
func backtestOptions(cmd *cobra.Command, app *App) (backtest.Options, error) {
	raw := make(map[string]interface{}, len(app.Config.Backtest))
	for k, v := range app.Config.Backtest {
		raw[k] = v
	}

	sets, _ := cmd.Flags().GetStringArray("set")
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return backtest.Options{}, errors.NewConfigurationError("set", kv, "must be key=value")
		}
		raw[key] = strings.TrimSpace(value)
	}
	return backtest.ParseOptions(raw)
}

// loadBacktestInput resolves the symbol, date range and options flags.
func loadBacktestInput(cmd *cobra.Command, app *App) (models.Series, backtest.Options, error) {
	symbol, err := requireFlag(cmd, "symbol")
	if err != nil {
		return models.Series{}, backtest.Options{}, err
	}
	opts, err := backtestOptions(cmd, app)
	if err != nil {
		return models.Series{}, backtest.Options{}, err
	}
	from, to, err := dateRange(cmd)
	if err != nil {
		return models.Series{}, backtest.Options{}, err
	}
	series, err := loadSeries(ctxOf(cmd), app, symbol, from, to)
	if err != nil {
		return models.Series{}, backtest.Options{}, err
	}
	return series, opts, nil
}

// selectStrategies resolves --strategies, defaulting to every registered one.
func selectStrategies(cmd *cobra.Command, app *App) ([]strategies.Strategy, error) {
	names, _ := cmd.Flags().GetString("strategies")
	if list := splitList(names); len(list) > 0 {
		return app.Registry.Select(list)
	}
	return app.Registry.All(), nil
}

// runView is the structured output of a single backtest.
type runView struct {
	ID       string              `json:"id,omitempty" yaml:"id,omitempty"`
	Strategy string              `json:"strategy" yaml:"strategy"`
	Symbol   string              `json:"symbol" yaml:"symbol"`
	Options  backtest.Options    `json:"options" yaml:"options"`
	Metrics  performance.Metrics `json:"metrics" yaml:"metrics"`
	Trades   []models.Trade      `json:"trades,omitempty" yaml:"trades,omitempty"`
	Warnings []string            `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newBacktestRunCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest one strategy",
		Example: `  stockanalysis backtest run --symbol AAPL --strategy sma_crossover
  stockanalysis backtest run -s AAPL --strategy breakout --set trailing_stop=true --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			name, err := requireFlag(cmd, "strategy")
			if err != nil {
				return err
			}
			strategy, err := app.Registry.Get(name)
			if err != nil {
				return err
			}
			series, opts, err := loadBacktestInput(cmd, app)
			if err != nil {
				return err
			}

			result, err := backtest.NewRunner(app.Logger).Run(strategy, series, opts)
			if err != nil {
				return err
			}
			metrics := app.Config.NewPerformanceAnalyzer().WithLogger(app.Logger).Analyze(result.TradeLog)

			view := runView{
				Strategy: strategy.Name(),
				Symbol:   series.Symbol,
				Options:  opts,
				Metrics:  metrics,
				Warnings: warningStrings(result.Warnings, metrics.Warnings),
			}
			if showTrades, _ := cmd.Flags().GetBool("trades"); showTrades {
				view.Trades = result.TradeLog.Trades
			}

			if save, _ := cmd.Flags().GetBool("save"); save {
				s, err := app.Store()
				if err != nil {
					return err
				}
				id, err := s.SaveRun(ctxOf(cmd), &store.Run{Kind: "backtest", Options: opts, Metrics: metrics, TradeLog: result.TradeLog})
				if err != nil {
					return err
				}
				view.ID = id
				app.Logger.Info().Str("run_id", id).Msg("Backtest run saved")
			}

			if output.IsStructured() {
				return output.Structured(view)
			}

			output.Bold("%s on %s (%d bars, %s to %s)", strategy.Name(), series.Symbol, series.Len(),
				output.Date(series.Candles[0].Timestamp), output.Date(series.Candles[series.Len()-1].Timestamp))
			output.Println()
			printMetrics(output, metrics, result.TradeLog)
			if len(view.Trades) > 0 {
				output.Println()
				printTrades(output, view.Trades)
			}
			printWarnings(output, view.Warnings)
			if view.ID != "" {
				output.Println()
				output.Dim("Saved as run %s", view.ID)
			}
			return nil
		},
	}

	addBacktestFlags(cmd)
	cmd.Flags().String("strategy", "", "strategy name (see 'backtest strategies')")
	cmd.Flags().Bool("trades", false, "list every trade")
	cmd.Flags().Bool("save", false, "store the run in the database")

	return cmd
}

// compareView is the structured output of a strategy comparison.
type compareView struct {
	Symbol      string                   `json:"symbol" yaml:"symbol"`
	Rankings    []performance.Ranking    `json:"rankings" yaml:"rankings"`
	Correlation performance.Correlation  `json:"correlation" yaml:"correlation"`
	Combination *performance.Combination `json:"combination,omitempty" yaml:"combination,omitempty"`
}

func newBacktestCompareCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Backtest several strategies and rank them",
		Long: `Backtest several strategies on the same series, rank them by Sharpe
ratio, show their return correlation and search for the best combination.`,
		Example: `  stockanalysis backtest compare --symbol AAPL
  stockanalysis backtest compare -s AAPL --strategies sma_crossover,rsi_reversion,breakout`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			list, err := selectStrategies(cmd, app)
			if err != nil {
				return err
			}
			series, opts, err := loadBacktestInput(cmd, app)
			if err != nil {
				return err
			}

			results, err := backtest.NewRunner(app.Logger).RunStrategies(list, series, opts, app.Config.Engine.Workers)
			if err != nil {
				return err
			}
			logs := make(map[string]models.TradeLog, len(results))
			for name, r := range results {
				logs[name] = r.TradeLog
			}

			analyzer := app.Config.NewPerformanceAnalyzer().WithLogger(app.Logger)
			view := compareView{
				Symbol:      series.Symbol,
				Rankings:    analyzer.Compare(logs),
				Correlation: analyzer.CorrelationMatrix(logs),
			}

			maxStrategies, _ := cmd.Flags().GetInt("max-strategies")
			if maxStrategies <= 0 {
				maxStrategies = app.Config.Performance.MaxStrategies
			}
			started := time.Now()
			combo, err := analyzer.FindOptimalCombination(logs, maxStrategies, app.Config.CombinationConfig())
			logging.LogDuration(app.Logger, "combination_search", started, err)
			if err != nil {
				app.Logger.Warn().Err(err).Msg("No strategy combination found")
			} else {
				view.Combination = combo
			}

			if output.IsStructured() {
				return output.Structured(view)
			}

			output.Bold("Strategy comparison on %s", series.Symbol)
			output.Println()
			table := NewTable(output, "RANK", "STRATEGY", "TRADES", "WIN RATE", "RETURN", "SHARPE", "SORTINO", "MAX DD", "PROFIT FACTOR")
			for _, r := range view.Rankings {
				m := r.Metrics
				table.AddRow(fmt.Sprintf("%d", r.Rank), r.Strategy, fmt.Sprintf("%d", m.TradeCount),
					FormatRatioPercent(m.WinRate), output.FormatPercent(m.TotalReturn), FormatRatio(m.SharpeRatio),
					FormatRatio(m.SortinoRatio), utils.FormatPercent(-m.MaxDrawdown), FormatRatio(m.ProfitFactor))
			}
			table.Render()

			if len(view.Correlation.Strategies) > 1 {
				output.Println()
				output.Bold("Return correlation")
				printCorrelation(output, view.Correlation.Strategies, view.Correlation.Values)
			}

			if combo := view.Combination; combo != nil {
				output.Println()
				output.Bold("Best combination (%d subsets evaluated)", combo.Evaluated)
				output.Printf("  Strategies:       %s\n", strings.Join(combo.Strategies, ", "))
				output.Printf("  Weights:          %s\n", FormatWeights(combo.Weights))
				output.Printf("  Sharpe:           %.2f\n", combo.SharpeRatio)
				output.Printf("  Mean correlation: %.2f\n", combo.MeanCorrelation)
				output.Printf("  Score:            %.2f\n", combo.Score)
			}
			return nil
		},
	}

	addBacktestFlags(cmd)
	cmd.Flags().String("strategies", "", "comma separated strategy names (default: all)")
	cmd.Flags().Int("max-strategies", 0, "largest combination size (default: performance.max_strategies)")

	return cmd
}

func newBacktestWalkForwardCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "walkforward",
		Short: "Validate strategy selection out of sample",
		Long: `Split the series into rolling (or anchored) windows, pick the best
strategy on each in-sample segment and evaluate it on the following
out-of-sample segment.`,
		Example: `  stockanalysis backtest walkforward --symbol AAPL --windows 5
  stockanalysis backtest walkforward -s AAPL --anchored --save`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			list, err := selectStrategies(cmd, app)
			if err != nil {
				return err
			}
			series, opts, err := loadBacktestInput(cmd, app)
			if err != nil {
				return err
			}

			cfg := app.Config.WalkForwardConfig()
			if cmd.Flags().Changed("windows") {
				cfg.Windows, _ = cmd.Flags().GetInt("windows")
			}
			if cmd.Flags().Changed("in-sample") {
				cfg.InSampleRatio, _ = cmd.Flags().GetFloat64("in-sample")
			}
			if cmd.Flags().Changed("anchored") {
				cfg.Anchored, _ = cmd.Flags().GetBool("anchored")
			}

			started := time.Now()
			report, err := backtest.NewRunner(app.Logger).WalkForward(list, series, opts, cfg)
			logging.LogDuration(app.Logger, "walk_forward", started, err)
			if err != nil {
				return err
			}

			var runID string
			if save, _ := cmd.Flags().GetBool("save"); save && len(report.Windows) > 0 {
				combined := combinedOutOfSample(report, series.Symbol, opts.InitialCapital)
				s, err := app.Store()
				if err != nil {
					return err
				}
				runID, err = s.SaveRun(ctxOf(cmd), &store.Run{Kind: "walkforward", Options: opts, Metrics: report.Aggregate, TradeLog: combined})
				if err != nil {
					return err
				}
			}

			if output.IsStructured() {
				return output.Structured(struct {
					ID                         string `json:"id,omitempty" yaml:"id,omitempty"`
					backtest.WalkForwardReport `yaml:",inline"`
				}{runID, *report})
			}

			output.Bold("Walk-forward on %s (%d windows, %.0f%% in-sample, anchored=%v)", series.Symbol,
				cfg.Windows, cfg.InSampleRatio*100, cfg.Anchored)
			output.Println()
			table := NewTable(output, "WINDOW", "OUT-OF-SAMPLE", "SELECTED", "IS SHARPE", "OOS SHARPE", "OOS RETURN", "OOS TRADES")
			for _, w := range report.Windows {
				table.AddRow(fmt.Sprintf("%d", w.Window.Index+1),
					output.Date(w.From)+" .. "+output.Date(w.To), w.Selected,
					FormatRatio(w.InSample.SharpeRatio), FormatRatio(w.OutOfSample.SharpeRatio),
					output.FormatPercent(w.OutOfSample.TotalReturn), fmt.Sprintf("%d", w.OutOfSample.TradeCount))
			}
			table.Render()
			output.Println()
			output.Printf("  Aggregate return: %s\n", output.FormatPercent(report.Aggregate.TotalReturn))
			output.Printf("  Aggregate Sharpe: %s\n", FormatRatio(report.Aggregate.SharpeRatio))
			output.Printf("  Efficiency:       %s\n", FormatRatio(report.Efficiency))
			printWarnings(output, warningStrings(report.Warnings))
			if runID != "" {
				output.Println()
				output.Dim("Saved as run %s", runID)
			}
			return nil
		},
	}

	addBacktestFlags(cmd)
	cmd.Flags().String("strategies", "", "comma separated candidate strategies (default: all)")
	cmd.Flags().Int("windows", 0, "number of windows (default: walk_forward.windows)")
	cmd.Flags().Float64("in-sample", 0, "in-sample share of each window (default: walk_forward.in_sample_ratio)")
	cmd.Flags().Bool("anchored", false, "start every in-sample segment at the first bar")
	cmd.Flags().Bool("save", false, "store the chained out-of-sample run in the database")

	return cmd
}

// combinedOutOfSample concatenates the out-of-sample trades and equity of
// every window for storage.
func combinedOutOfSample(report *backtest.WalkForwardReport, symbol string, initial float64) models.TradeLog {
	out := models.TradeLog{Strategy: "walkforward", Symbol: symbol, InitialCapital: initial}
	for _, w := range report.Windows {
		out.Trades = append(out.Trades, w.OutOfSampleLog.Trades...)
		out.EquityCurve = append(out.EquityCurve, w.OutOfSampleLog.EquityCurve...)
	}
	return out
}

func newBacktestMonteCarloCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "Resample a strategy's trades to estimate outcome ranges",
		Example: `  stockanalysis backtest montecarlo --symbol AAPL --strategy breakout --simulations 5000 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			name, err := requireFlag(cmd, "strategy")
			if err != nil {
				return err
			}
			strategy, err := app.Registry.Get(name)
			if err != nil {
				return err
			}
			series, opts, err := loadBacktestInput(cmd, app)
			if err != nil {
				return err
			}

			result, err := backtest.NewRunner(app.Logger).Run(strategy, series, opts)
			if err != nil {
				return err
			}

			cfg := app.Config.MonteCarloConfig(opts.InitialCapital)
			if cmd.Flags().Changed("simulations") {
				cfg.Simulations, _ = cmd.Flags().GetInt("simulations")
			}
			if cmd.Flags().Changed("seed") {
				cfg.Seed, _ = cmd.Flags().GetUint64("seed")
			}

			report, err := backtest.MonteCarlo(result.TradeLog.Trades, cfg)
			if err != nil {
				return err
			}
			app.Logger.Debug().Uint64("seed", report.Seed).Int("simulations", report.Simulations).Msg("Monte Carlo completed")

			if output.IsStructured() {
				return output.Structured(report)
			}

			output.Bold("Monte Carlo: %s on %s (%d trades, %d simulations, seed %d)",
				strategy.Name(), series.Symbol, report.Trades, report.Simulations, report.Seed)
			output.Println()
			table := NewTable(output, "", "P5", "P50", "P95", "MEAN", "STD")
			table.AddRow("Final equity", utils.FormatCurrency(report.FinalEquity.P5), utils.FormatCurrency(report.FinalEquity.P50),
				utils.FormatCurrency(report.FinalEquity.P95), utils.FormatCurrency(report.FinalEquity.Mean), utils.FormatCurrency(report.FinalEquity.Std))
			table.AddRow("Total return", utils.FormatPercent(report.TotalReturn.P5), utils.FormatPercent(report.TotalReturn.P50),
				utils.FormatPercent(report.TotalReturn.P95), utils.FormatPercent(report.TotalReturn.Mean), FormatWeight(report.TotalReturn.Std))
			table.AddRow("Max drawdown", FormatWeight(report.MaxDrawdown.P5), FormatWeight(report.MaxDrawdown.P50),
				FormatWeight(report.MaxDrawdown.P95), FormatWeight(report.MaxDrawdown.Mean), FormatWeight(report.MaxDrawdown.Std))
			table.Render()
			output.Println()
			output.Printf("  Probability of profit: %s\n", FormatWeight(report.ProbabilityOfProfit))
			printWarnings(output, warningStrings(report.Warnings))
			return nil
		},
	}

	addBacktestFlags(cmd)
	cmd.Flags().String("strategy", "", "strategy name")
	cmd.Flags().Int("simulations", 0, "number of simulations (default: monte_carlo.simulations)")
	cmd.Flags().Uint64("seed", 0, "random seed, 0 draws a fresh one (default: monte_carlo.seed)")

	return cmd
}

func newBacktestRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List saved runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			s, err := app.Store()
			if err != nil {
				return err
			}

			filter := store.RunFilter{}
			filter.Symbol, _ = cmd.Flags().GetString("symbol")
			filter.Strategy, _ = cmd.Flags().GetString("strategy")
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			runs, err := s.ListRuns(ctxOf(cmd), filter)
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(runs)
			}
			if len(runs) == 0 {
				output.Info("No saved runs. Use --save with 'backtest run' or 'backtest walkforward'.")
				return nil
			}

			table := NewTable(output, "ID", "CREATED", "KIND", "STRATEGY", "SYMBOL", "TRADES", "RETURN", "SHARPE")
			for _, r := range runs {
				table.AddRow(r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Kind, r.Strategy, r.Symbol,
					fmt.Sprintf("%d", r.TradeCount), output.FormatPercent(r.TotalReturn), FormatRatio(r.SharpeRatio))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "only runs for this symbol")
	cmd.Flags().String("strategy", "", "only runs of this strategy")
	cmd.Flags().Int("limit", 20, "maximum runs to list (0 for all)")

	return cmd
}

func newBacktestShowCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			s, err := app.Store()
			if err != nil {
				return err
			}
			run, err := s.GetRun(ctxOf(cmd), args[0])
			if err != nil {
				return err
			}
			if output.IsStructured() {
				return output.Structured(run)
			}

			output.Bold("Run %s", run.ID)
			output.Dim("%s %s on %s, saved %s", run.Kind, run.TradeLog.Strategy, run.TradeLog.Symbol, run.CreatedAt.Format("2006-01-02 15:04"))
			output.Println()
			printMetrics(output, run.Metrics, run.TradeLog)
			if len(run.TradeLog.Trades) > 0 {
				output.Println()
				printTrades(output, run.TradeLog.Trades)
			}
			return nil
		},
	}
	return cmd
}

func newBacktestStrategiesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the available strategies",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			styles := app.Registry.Styles()
			if output.IsStructured() {
				return output.Structured(styles)
			}
			table := NewTable(output, "STRATEGY", "STYLE")
			for _, name := range app.Registry.Names() {
				table.AddRow(name, string(styles[name]))
			}
			table.Render()
			return nil
		},
	}
}

func printMetrics(output *Output, m performance.Metrics, log models.TradeLog) {
	output.Printf("  Initial capital:   %s\n", utils.FormatCurrency(log.InitialCapital))
	output.Printf("  Final equity:      %s\n", utils.FormatCurrency(log.FinalEquity()))
	output.Printf("  Total return:      %s\n", output.FormatPercent(m.TotalReturn))
	output.Printf("  Annualized return: %s\n", FormatRatioPercent(m.AnnualizedReturn))
	output.Printf("  Trades:            %d (%d wins, %d losses)\n", m.TradeCount, m.Wins, m.Losses)
	output.Printf("  Win rate:          %s\n", FormatRatioPercent(m.WinRate))
	output.Printf("  Sharpe ratio:      %s\n", FormatRatio(m.SharpeRatio))
	output.Printf("  Sortino ratio:     %s\n", FormatRatio(m.SortinoRatio))
	output.Printf("  Max drawdown:      %s\n", FormatWeight(m.MaxDrawdown))
	output.Printf("  Profit factor:     %s\n", FormatRatio(m.ProfitFactor))
	output.Printf("  Expectancy:        %s\n", FormatRatio(m.Expectancy))
	output.Printf("  Gross P&L:         %s / %s\n", output.FormatPnL(m.GrossProfit), output.FormatPnL(-m.GrossLoss))
}

func printTrades(output *Output, trades []models.Trade) {
	table := NewTable(output, "ENTRY", "EXIT", "SHARES", "ENTRY PRICE", "EXIT PRICE", "P&L", "RETURN", "REASON")
	for _, t := range trades {
		table.AddRow(output.Date(t.EntryDate), output.Date(t.ExitDate), utils.FormatQuantity(t.Shares),
			fmt.Sprintf("%.2f", t.EntryPrice), fmt.Sprintf("%.2f", t.ExitPrice),
			output.FormatPnL(t.PnL), output.FormatPercent(t.PnLPct), t.ExitReason.String())
	}
	table.Render()
}

func printCorrelation(output *Output, names []string, values [][]models.Ratio) {
	headers := append([]string{""}, names...)
	table := NewTable(output, headers...)
	for i, name := range names {
		row := []string{name}
		for j := range names {
			row = append(row, FormatRatio(values[i][j]))
		}
		table.AddRow(row...)
	}
	table.Render()
}

func warningStrings(groups ...[]error) []string {
	var out []string
	for _, g := range groups {
		for _, err := range g {
			out = append(out, err.Error())
		}
	}
	return out
}

func printWarnings(output *Output, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	output.Println()
	for _, w := range warnings {
		output.Warning("warning: %s", w)
	}
}
