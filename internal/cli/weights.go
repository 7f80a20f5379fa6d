package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stock-analysis/internal/models"
	"stock-analysis/internal/weighting"
)

func newWeightsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Strategy weighting profiles and signal consensus",
	}

	cmd.AddCommand(newWeightsProfilesCmd(app))
	cmd.AddCommand(newWeightsConsensusCmd(app))
	cmd.AddCommand(newWeightsRegimeCmd(app))

	return cmd
}

type profileView struct {
	Profile     weighting.Profile   `json:"profile" yaml:"profile"`
	Description string              `json:"description" yaml:"description"`
	Weights     models.WeightVector `json:"weights" yaml:"weights"`
}

func newWeightsProfilesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the preset weighting profiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			var views []profileView
			for _, p := range weighting.Profiles() {
				views = append(views, profileView{Profile: p, Description: p.Description(), Weights: p.Weights()})
			}
			if output.IsStructured() {
				return output.Structured(views)
			}

			names := app.Registry.Names()
			table := NewTable(output, append([]string{"PROFILE"}, names...)...)
			for _, v := range views {
				row := []string{string(v.Profile)}
				for _, n := range names {
					row = append(row, FormatWeight(v.Weights.Get(n)))
				}
				table.AddRow(row...)
			}
			table.Render()
			output.Println()
			for _, v := range views {
				output.Printf("  %-13s %s\n", v.Profile, v.Description)
			}
			return nil
		},
	}
}

// weightingEngine builds the configured engine, applying --profile and the
// regime tilt. The returned reading is nil when no regime was applied.
func weightingEngine(cmd *cobra.Command, app *App, candles []models.Candle) (*weighting.Engine, *weighting.RegimeReading, error) {
	engine, err := app.Config.NewWeightingEngine(app.Registry)
	if err != nil {
		return nil, nil, err
	}
	engine.WithLogger(app.Logger)

	if profile, _ := cmd.Flags().GetString("profile"); profile != "" {
		if err := engine.LoadProfile(profile); err != nil {
			return nil, nil, err
		}
	}

	regimeName, _ := cmd.Flags().GetString("regime")
	switch {
	case regimeName != "":
		regime, err := weighting.ParseRegime(regimeName)
		if err != nil {
			return nil, nil, err
		}
		if _, err := engine.RebalanceForRegime(regime); err != nil {
			return nil, nil, err
		}
		return engine, &weighting.RegimeReading{Regime: regime}, nil

	case app.Config.Weighting.AutoRegime:
		reading, err := weighting.DetectRegime(candles, app.Config.Weighting.Regime)
		if err != nil {
			app.Logger.Warn().Err(err).Msg("Regime detection skipped")
			return engine, nil, nil
		}
		if _, err := engine.RebalanceForRegime(reading.Regime); err != nil {
			return nil, nil, err
		}
		return engine, &reading, nil
	}
	return engine, nil, nil
}

type consensusView struct {
	weighting.Consensus `yaml:",inline"`
	Profile             weighting.Profile        `json:"profile" yaml:"profile"`
	Regime              *weighting.RegimeReading `json:"regime,omitempty" yaml:"regime,omitempty"`
	Weights             models.WeightVector      `json:"weights" yaml:"weights"`
}

func newWeightsConsensusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consensus",
		Short: "Combine every strategy's latest signal into a weighted verdict",
		Example: `  stockanalysis weights consensus --symbol AAPL
  stockanalysis weights consensus -s AAPL --profile aggressive --regime bull`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			symbol, err := requireFlag(cmd, "symbol")
			if err != nil {
				return err
			}
			from, to, err := dateRange(cmd)
			if err != nil {
				return err
			}
			series, err := loadSeries(ctxOf(cmd), app, symbol, from, to)
			if err != nil {
				return err
			}

			engine, reading, err := weightingEngine(cmd, app, series.Candles)
			if err != nil {
				return err
			}
			consensus := engine.AnalyzeSymbol(series.Symbol, series.Candles, nil)
			view := consensusView{
				Consensus: consensus,
				Profile:   engine.Profile(),
				Regime:    reading,
				Weights:   engine.Weights(),
			}

			if output.IsStructured() {
				return output.Structured(view)
			}

			output.Bold("%s consensus as of %s", series.Symbol, output.Date(series.Candles[series.Len()-1].Timestamp))
			output.Printf("  Profile:    %s\n", view.Profile)
			if reading != nil {
				if reading.Volatility > 0 {
					output.Printf("  Regime:     %s (volatility %s, trend slope %s)\n", reading.Regime,
						FormatWeight(reading.Volatility), FormatWeight(reading.Slope))
				} else {
					output.Printf("  Regime:     %s\n", reading.Regime)
				}
			}
			output.Println()

			table := NewTable(output, "STRATEGY", "WEIGHT", "SIGNAL", "CONFIDENCE")
			for _, name := range sortedKeys(consensus.Signals) {
				sig := consensus.Signals[name]
				table.AddRow(name, FormatWeight(view.Weights.Get(name)), output.Action(string(sig.Action)), FormatConfidence(sig.Confidence))
			}
			table.Render()
			output.Println()

			output.Printf("  Verdict:    %s (confidence %s, %d/%d agreeing)\n", output.Action(string(consensus.Action)),
				FormatConfidence(consensus.Confidence), consensus.Agreeing, consensus.Voters)
			output.Printf("  Scores:     buy %.2f  sell %.2f  hold %.2f\n", consensus.BuyScore, consensus.SellScore, consensus.HoldScore)
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "stored symbol (required)")
	cmd.Flags().String("profile", "", "weighting profile (default: weighting.profile)")
	cmd.Flags().String("regime", "", fmt.Sprintf("tilt weights for a regime %v", weighting.Regimes()))
	addDateRangeFlags(cmd)

	return cmd
}

func newWeightsRegimeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regime",
		Short: "Detect the current market regime of a symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)

			symbol, err := requireFlag(cmd, "symbol")
			if err != nil {
				return err
			}
			series, err := loadSeries(ctxOf(cmd), app, symbol, time.Time{}, time.Time{})
			if err != nil {
				return err
			}
			reading, err := weighting.DetectRegime(series.Candles, app.Config.Weighting.Regime)
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(reading)
			}
			output.Printf("%s: %s (annualized volatility %s, SMA slope %s)\n", series.Symbol, reading.Regime,
				FormatWeight(reading.Volatility), FormatWeight(reading.Slope))
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "stored symbol (required)")

	return cmd
}
