package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/store"
	"stock-analysis/pkg/utils"
)

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage stored price history",
		Long: `Import, export and list the daily OHLCV history kept in the local
SQLite database.`,
	}

	cmd.AddCommand(newDataImportCmd(app))
	cmd.AddCommand(newDataExportCmd(app))
	cmd.AddCommand(newDataSymbolsCmd(app))

	return cmd
}

func newDataImportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <csv>",
		Short: "Import daily bars from a CSV file",
		Long: `Import daily bars from a CSV file with the header
date,open,high,low,close,volume. Existing bars for the same dates are
replaced.`,
		Example: `  stockanalysis data import prices/AAPL.csv
  stockanalysis data import spy.csv --symbol SPY`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			path := args[0]
			symbol, _ := cmd.Flags().GetString("symbol")
			if symbol == "" {
				symbol = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}
			symbol = strings.ToUpper(strings.TrimSpace(symbol))

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", path, err)
			}
			defer f.Close()

			candles, err := store.ReadCandlesCSV(f, symbol)
			if err != nil {
				return err
			}

			s, err := app.Store()
			if err != nil {
				return err
			}
			if err := s.SaveCandles(ctx, symbol, candles); err != nil {
				return err
			}
			app.Logger.Info().Str("symbol", symbol).Int("bars", len(candles)).Str("file", path).Msg("Imported price history")

			result := map[string]interface{}{"symbol": symbol, "bars": len(candles)}
			if len(candles) > 0 {
				result["first"] = candles[0].Timestamp
				result["last"] = candles[len(candles)-1].Timestamp
			}
			if output.IsStructured() {
				return output.Structured(result)
			}
			if len(candles) == 0 {
				output.Warning("No bars found in %s", path)
				return nil
			}
			output.Success("Imported %d bars for %s (%s to %s)", len(candles), symbol,
				output.Date(candles[0].Timestamp), output.Date(candles[len(candles)-1].Timestamp))
			return nil
		},
	}

	cmd.Flags().StringP("symbol", "s", "", "symbol to store the bars under (default: file name)")

	return cmd
}

func newDataExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <symbol>",
		Short: "Export stored bars as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := dateRange(cmd)
			if err != nil {
				return err
			}
			candles, err := loadCandles(cmd.Context(), app, args[0], from, to)
			if err != nil {
				return err
			}

			outPath, _ := cmd.Flags().GetString("out")
			if outPath == "" {
				return store.WriteCandlesCSV(cmd.OutOrStdout(), candles)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			defer f.Close()
			if err := store.WriteCandlesCSV(f, candles); err != nil {
				return err
			}
			NewOutput(cmd, app).Success("Wrote %d bars to %s", len(candles), outPath)
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "", "output file (default: stdout)")
	addDateRangeFlags(cmd)

	return cmd
}

func newDataSymbolsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "symbols",
		Short: "List stored symbols",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			s, err := app.Store()
			if err != nil {
				return err
			}
			infos, err := s.Symbols(ctxOf(cmd))
			if err != nil {
				return err
			}

			if output.IsStructured() {
				return output.Structured(infos)
			}
			if len(infos) == 0 {
				output.Info("No price history stored. Run 'stockanalysis data import <csv>'.")
				return nil
			}

			table := NewTable(output, "SYMBOL", "BARS", "FIRST", "LAST")
			for _, info := range infos {
				table.AddRow(info.Symbol, utils.FormatQuantity(float64(info.Bars)), output.Date(info.First), output.Date(info.Last))
			}
			table.Render()
			return nil
		},
	}
}

// addDateRangeFlags adds --from and --to.
func addDateRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "first date, YYYY-MM-DD (default: all history)")
	cmd.Flags().String("to", "", "last date, YYYY-MM-DD (default: all history)")
}

func dateRange(cmd *cobra.Command) (time.Time, time.Time, error) {
	var from, to time.Time
	for _, f := range []struct {
		name string
		dst  *time.Time
	}{{"from", &from}, {"to", &to}} {
		v, _ := cmd.Flags().GetString(f.name)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return time.Time{}, time.Time{}, errors.NewConfigurationError(f.name, v, "must be YYYY-MM-DD")
		}
		*f.dst = t
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return time.Time{}, time.Time{}, errors.NewConfigurationError("to", to.Format("2006-01-02"), "must not be before --from")
	}
	return from, to, nil
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadCandles reads a symbol's stored bars, failing when there are none.
func loadCandles(ctx context.Context, app *App, symbol string, from, to time.Time) ([]models.Candle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := app.Store()
	if err != nil {
		return nil, err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	candles, err := s.GetCandles(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	if len(candles) == 0 {
		return nil, errors.NewDataError("candles", symbol, "no stored bars in range", errors.ErrDataNotFound)
	}
	return candles, nil
}

// loadSeries reads a symbol's bars as a validated series.
func loadSeries(ctx context.Context, app *App, symbol string, from, to time.Time) (models.Series, error) {
	candles, err := loadCandles(ctx, app, symbol, from, to)
	if err != nil {
		return models.Series{}, err
	}
	series := models.Series{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Candles: candles}
	if err := series.Validate(); err != nil {
		return models.Series{}, err
	}
	return series, nil
}
