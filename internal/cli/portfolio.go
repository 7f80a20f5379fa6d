package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/logging"
	"stock-analysis/internal/models"
	"stock-analysis/internal/portfolio"
	"stock-analysis/internal/risk"
)

func newPortfolioCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Optimize and risk-check portfolios of stored symbols",
		Long: `Estimate annualized returns and covariance from the daily returns of
stored symbols over their common trading days, then search long-only
weights by Monte Carlo sampling or analyze the risk of given weights.`,
	}

	cmd.AddCommand(newPortfolioOptimizeCmd(app))
	cmd.AddCommand(newPortfolioFrontierCmd(app))
	cmd.AddCommand(newPortfolioRiskCmd(app))

	return cmd
}

// loadHistory aligns the daily returns of symbols over their common dates.
func loadHistory(cmd *cobra.Command, app *App, symbols []string) (portfolio.History, []time.Time, error) {
	from, to, err := dateRange(cmd)
	if err != nil {
		return nil, nil, err
	}
	series := make(map[string][]models.Candle, len(symbols))
	for _, symbol := range symbols {
		candles, err := loadCandles(ctxOf(cmd), app, symbol, from, to)
		if err != nil {
			return nil, nil, err
		}
		series[symbol] = candles
	}
	return portfolio.AlignReturns(series)
}

// symbolsFlag reads --symbols as upper case names.
func symbolsFlag(cmd *cobra.Command) ([]string, error) {
	raw, err := requireFlag(cmd, "symbols")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, s := range splitList(raw) {
		out = append(out, strings.ToUpper(s))
	}
	return out, nil
}

func newPortfolioOptimizeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Find long-only weights for an objective",
		Example: `  stockanalysis portfolio optimize --symbols AAPL,MSFT,XOM
  stockanalysis portfolio optimize --symbols AAPL,MSFT,XOM --objective min_variance
  stockanalysis portfolio optimize --symbols AAPL,MSFT,XOM --objective target_return --target 0.12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			symbols, err := symbolsFlag(cmd)
			if err != nil {
				return err
			}
			history, dates, err := loadHistory(cmd, app, symbols)
			if err != nil {
				return err
			}

			opt := optimizerFor(cmd, app)
			objective, _ := cmd.Flags().GetString("objective")

			started := time.Now()
			var result *portfolio.OptimizationResult
			switch portfolio.Objective(objective) {
			case portfolio.ObjectiveMaxSharpe:
				result, err = opt.MaximizeSharpe(symbols, history, app.Config.Risk.RiskFreeRate)
			case portfolio.ObjectiveMinVariance:
				result, err = opt.MinimizeVariance(symbols, history)
			case portfolio.ObjectiveTargetReturn:
				if !cmd.Flags().Changed("target") {
					return fmt.Errorf("--target is required for %s", objective)
				}
				target, _ := cmd.Flags().GetFloat64("target")
				result, err = opt.TargetReturn(symbols, history, target)
			default:
				return errors.NewConfigurationError("objective", objective, "must be max_sharpe, min_variance or target_return")
			}
			logging.LogDuration(app.Logger, "optimize_"+objective, started, err)
			if err != nil {
				var infeasible *errors.InfeasibleTargetError
				if errors.As(err, &infeasible) && !output.IsStructured() {
					output.Error("Target %s is outside the sampled range %s to %s",
						FormatWeight(infeasible.Target), FormatWeight(infeasible.MinReturn), FormatWeight(infeasible.MaxReturn))
				}
				return err
			}

			if output.IsStructured() {
				return output.Structured(result)
			}

			output.Bold("%s portfolio over %d days (%s to %s)", result.Objective, len(dates),
				output.Date(dates[0]), output.Date(dates[len(dates)-1]))
			output.Println()
			table := NewTable(output, "SYMBOL", "WEIGHT")
			for _, s := range result.Weights.Keys() {
				table.AddRow(s, FormatWeight(result.Weights[s]))
			}
			table.Render()
			output.Println()
			output.Printf("  Expected return: %s\n", output.FormatPercent(result.ExpectedReturn))
			output.Printf("  Volatility:      %s\n", FormatWeight(result.Volatility))
			output.Printf("  Sharpe ratio:    %s\n", FormatRatio(result.SharpeRatio))
			output.Dim("  %d samples, seed %d", result.Samples, result.Seed)
			return nil
		},
	}

	cmd.Flags().String("symbols", "", "comma separated stored symbols (required)")
	cmd.Flags().String("objective", string(portfolio.ObjectiveMaxSharpe), "max_sharpe, min_variance or target_return")
	cmd.Flags().Float64("target", 0, "annual return for target_return, e.g. 0.12")
	addOptimizerFlags(cmd)
	addDateRangeFlags(cmd)

	return cmd
}

func addOptimizerFlags(cmd *cobra.Command) {
	cmd.Flags().Int("samples", 0, "random portfolios to sample (default: optimizer.samples)")
	cmd.Flags().Uint64("seed", 0, "random seed, 0 draws a fresh one (default: optimizer.seed)")
}

func optimizerFor(cmd *cobra.Command, app *App) *portfolio.Optimizer {
	opt := app.Config.NewOptimizer().WithLogger(app.Logger)
	if cmd.Flags().Changed("samples") {
		opt.Samples, _ = cmd.Flags().GetInt("samples")
	}
	if cmd.Flags().Changed("seed") {
		opt.Seed, _ = cmd.Flags().GetUint64("seed")
	}
	return opt
}

func newPortfolioFrontierCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Trace the efficient frontier",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			symbols, err := symbolsFlag(cmd)
			if err != nil {
				return err
			}
			history, _, err := loadHistory(cmd, app, symbols)
			if err != nil {
				return err
			}

			points := app.Config.Optimizer.FrontierPoints
			if cmd.Flags().Changed("points") {
				points, _ = cmd.Flags().GetInt("points")
			}
			frontier, err := optimizerFor(cmd, app).EfficientFrontier(symbols, history, points)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(frontier)
			}

			table := NewTable(output, append([]string{"TARGET", "RETURN", "VOLATILITY", "SHARPE"}, symbols...)...)
			for _, p := range frontier {
				row := []string{FormatWeight(p.TargetReturn), FormatWeight(p.ExpectedReturn), FormatWeight(p.Volatility), FormatRatio(p.SharpeRatio)}
				for _, s := range symbols {
					row = append(row, FormatWeight(p.Weights.Get(s)))
				}
				table.AddRow(row...)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().String("symbols", "", "comma separated stored symbols (required)")
	cmd.Flags().Int("points", 0, "frontier points (default: optimizer.frontier_points)")
	addOptimizerFlags(cmd)
	addDateRangeFlags(cmd)

	return cmd
}

// parseWeights reads "AAPL=0.6,MSFT=0.4" or "AAPL:60,MSFT:40".
func parseWeights(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, part := range splitList(s) {
		sep := "="
		if !strings.Contains(part, "=") {
			sep = ":"
		}
		name, value, ok := strings.Cut(part, sep)
		if !ok || strings.TrimSpace(name) == "" {
			return nil, errors.NewConfigurationError("weights", part, "must be SYMBOL=weight")
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, errors.NewConfigurationError("weights", part, "weight is not a number")
		}
		out[strings.ToUpper(strings.TrimSpace(name))] = w
	}
	if len(out) == 0 {
		return nil, errors.NewConfigurationError("weights", s, "at least one weight is required")
	}
	return out, nil
}

func newPortfolioRiskCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Analyze the risk of a weighted portfolio",
		Example: `  stockanalysis portfolio risk --weights AAPL=0.5,MSFT=0.3,XOM=0.2
  stockanalysis portfolio risk --weights AAPL=1,MSFT=1 --benchmark SPY`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			raw, err := requireFlag(cmd, "weights")
			if err != nil {
				return err
			}
			parsed, err := parseWeights(raw)
			if err != nil {
				return err
			}
			weights, err := models.NewWeightVector(parsed)
			if err != nil {
				return err
			}

			benchmark, _ := cmd.Flags().GetString("benchmark")
			if benchmark == "" {
				benchmark = app.Config.Risk.Benchmark
			}
			benchmark = strings.ToUpper(strings.TrimSpace(benchmark))

			_, held := weights[benchmark]
			load := weights.Keys()
			if benchmark != "" && !held {
				load = append(load, benchmark)
			}
			history, _, err := loadHistory(cmd, app, load)
			if err != nil {
				return err
			}

			var bench []float64
			if benchmark != "" {
				bench = history[benchmark]
				if !held {
					delete(history, benchmark)
				}
			}

			report, err := app.Config.NewRiskAnalyzer().WithLogger(app.Logger).AnalyzePortfolio(weights, history, bench)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(struct {
					risk.Report `yaml:",inline"`
					Benchmark   string   `json:"benchmark,omitempty" yaml:"benchmark,omitempty"`
					Warnings    []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
				}{*report, benchmark, warningStrings(report.Warnings)})
			}

			output.Bold("Portfolio risk over %d daily returns", report.Observations)
			output.Printf("  Weights:         %s\n", FormatWeights(report.Weights))
			output.Println()
			output.Printf("  Expected return: %s\n", output.FormatPercent(report.ExpectedReturn))
			output.Printf("  Volatility:      %s\n", FormatWeight(report.Volatility))
			output.Printf("  Sharpe ratio:    %s\n", FormatRatio(report.SharpeRatio))
			output.Printf("  Sortino ratio:   %s\n", FormatRatio(report.SortinoRatio))
			output.Printf("  Max drawdown:    %s\n", FormatWeight(report.MaxDrawdown))
			output.Printf("  VaR 95%%:         %s\n", FormatWeight(report.VaR95))
			output.Printf("  VaR 99%%:         %s\n", FormatWeight(report.VaR99))
			output.Printf("  CVaR 95%%:        %s\n", FormatWeight(report.CVaR95))
			if benchmark != "" {
				output.Printf("  Beta vs %-8s %s\n", benchmark+":", FormatRatio(report.Beta))
			}
			if len(report.Correlation.Assets) > 1 {
				output.Println()
				output.Bold("Correlation")
				printCorrelation(output, report.Correlation.Assets, report.Correlation.Values)
			}
			printWarnings(output, warningStrings(report.Warnings))
			return nil
		},
	}

	cmd.Flags().String("weights", "", "portfolio weights, e.g. AAPL=0.6,MSFT=0.4 (required)")
	cmd.Flags().String("benchmark", "", "stored symbol for beta (default: risk.benchmark)")
	addDateRangeFlags(cmd)

	return cmd
}
