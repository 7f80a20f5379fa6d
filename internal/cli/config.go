package cli

import (
	"github.com/spf13/cobra"

	"stock-analysis/internal/config"
	"stock-analysis/pkg/utils"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the engine configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the loaded configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if output.IsStructured() {
				return output.Structured(map[string]string{"path": app.Config.Path()})
			}
			output.Println(app.Config.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsStructured() {
				return output.Structured(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print the commented default configuration",
		Run: func(cmd *cobra.Command, args []string) {
			NewOutput(cmd, app).Printf("%s", config.Template())
		},
	})

	return cmd
}

// configView is the structured rendering of the effective configuration.
type configView struct {
	Path        string                 `json:"path" yaml:"path"`
	Backtest    interface{}            `json:"backtest" yaml:"backtest"`
	WalkForward interface{}            `json:"walk_forward" yaml:"walk_forward"`
	MonteCarlo  interface{}            `json:"monte_carlo" yaml:"monte_carlo"`
	Optimizer   map[string]interface{} `json:"optimizer" yaml:"optimizer"`
	Risk        map[string]interface{} `json:"risk" yaml:"risk"`
	Weighting   map[string]interface{} `json:"weighting" yaml:"weighting"`
	Store       string                 `json:"store" yaml:"store"`
	Workers     int                    `json:"workers" yaml:"workers"`
}

func showConfig(output *Output, cfg *config.Config) error {
	opts, err := cfg.BacktestOptions()
	if err != nil {
		return err
	}

	if output.IsStructured() {
		return output.Structured(configView{
			Path:        cfg.Path(),
			Backtest:    opts,
			WalkForward: cfg.WalkForwardConfig(),
			MonteCarlo:  cfg.MonteCarloConfig(opts.InitialCapital),
			Optimizer: map[string]interface{}{
				"samples":          cfg.Optimizer.Samples,
				"seed":             cfg.Optimizer.Seed,
				"target_tolerance": cfg.Optimizer.TargetTolerance,
				"max_widenings":    cfg.Optimizer.MaxWidenings,
				"frontier_points":  cfg.Optimizer.FrontierPoints,
			},
			Risk: map[string]interface{}{
				"risk_free_rate": cfg.Risk.RiskFreeRate,
				"trading_days":   cfg.Risk.TradingDays,
				"benchmark":      cfg.Risk.Benchmark,
			},
			Weighting: map[string]interface{}{
				"profile":        cfg.Weighting.Profile,
				"custom_weights": cfg.Weighting.CustomWeights,
				"auto_regime":    cfg.Weighting.AutoRegime,
			},
			Store:   cfg.Store.Path,
			Workers: cfg.Engine.Workers,
		})
	}

	output.Dim("Loaded from %s", cfg.Path())
	output.Println()

	output.Bold("Backtest")
	output.Printf("  Initial capital:  %s\n", utils.FormatCurrency(opts.InitialCapital))
	output.Printf("  Position size:    %s\n", FormatWeight(opts.PositionSize))
	output.Printf("  Stop loss:        %s\n", FormatWeight(opts.StopLoss))
	output.Printf("  Take profit:      %s\n", FormatWeight(opts.TakeProfit))
	output.Printf("  Max holding days: %d\n", opts.MaxHoldingDays)
	output.Printf("  Trailing stop:    %v (activation %s, distance %s)\n", opts.TrailingStop,
		FormatWeight(opts.TrailingStopActivation), FormatWeight(opts.TrailingStopDistance))
	output.Printf("  Partial profits:  %v (%d levels)\n", opts.PartialProfitTaking, opts.ProfitLevels.Len())
	output.Printf("  Commission:       %s\n", FormatWeight(opts.CommissionRate))
	output.Printf("  Slippage:         %s\n", FormatWeight(opts.SlippageRate))
	output.Println()

	output.Bold("Validation")
	output.Printf("  Walk-forward:     %d windows, %.0f%% in-sample, anchored=%v\n",
		cfg.WalkForward.Windows, cfg.WalkForward.InSampleRatio*100, cfg.WalkForward.Anchored)
	output.Printf("  Monte Carlo:      %d simulations, seed %d\n", cfg.MonteCarlo.Simulations, cfg.MonteCarlo.Seed)
	output.Println()

	output.Bold("Portfolio")
	output.Printf("  Samples:          %d (seed %d)\n", cfg.Optimizer.Samples, cfg.Optimizer.Seed)
	output.Printf("  Risk-free rate:   %s\n", FormatWeight(cfg.Risk.RiskFreeRate))
	output.Printf("  Benchmark:        %s\n", orDash(cfg.Risk.Benchmark))
	output.Println()

	output.Bold("Weighting")
	if len(cfg.Weighting.CustomWeights) > 0 {
		output.Printf("  Custom weights:   %v\n", cfg.Weighting.CustomWeights)
	} else {
		output.Printf("  Profile:          %s\n", cfg.Weighting.Profile)
	}
	output.Printf("  Auto regime:      %v\n", cfg.Weighting.AutoRegime)
	output.Println()

	output.Bold("Storage")
	output.Printf("  Database:         %s\n", cfg.Store.Path)
	output.Printf("  Workers:          %d\n", cfg.Engine.Workers)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
