// Package cli provides the command-line interface for the analysis engine.
package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stock-analysis/internal/config"
	"stock-analysis/internal/logging"
	"stock-analysis/internal/store"
	"stock-analysis/internal/strategies"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies. Config and logger are set up
// before any command runs; the store is opened on first use.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Registry *strategies.Registry

	store store.DataStore
}

// NewApp creates an App with the built-in strategies.
func NewApp() *App {
	return &App{
		Logger:   zerolog.Nop(),
		Registry: strategies.DefaultRegistry(),
	}
}

// Store opens the SQLite store at the configured path.
func (a *App) Store() (store.DataStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Store.Path)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug().Str("path", a.Config.Store.Path).Msg("SQLite store opened")
	a.store = s
	return s, nil
}

// Close releases the store if it was opened.
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stockanalysis",
		Short: "Strategy backtesting and portfolio optimization engine",
		Long: `stockanalysis backtests trading strategies on daily price history,
compares and combines them, weighs their signals into a consensus, and
optimizes and risk-checks portfolios of stored symbols.

Prices are imported from CSV into a local SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.Close()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stock-analysis)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides store.path)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("yaml", false, "output in YAML format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newBacktestCmd(app))
	rootCmd.AddCommand(newWeightsCmd(app))
	rootCmd.AddCommand(newPortfolioCmd(app))

	return rootCmd
}

// setup loads the config and builds the logger from the global flags.
func (a *App) setup(cmd *cobra.Command) error {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.Store.Path = db
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.Logging.Level = "debug"
	}

	a.Config = cfg
	a.Logger = logging.WithOperation(logging.NewLoggerWithConfig(cfg.Logging), cmd.CommandPath())
	cmd.SetContext(logging.WithLogger(ctxOf(cmd), a.Logger))
	a.Logger.Debug().Str("config", cfg.Path()).Msg("Configuration loaded")
	return nil
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd, app)
			if output.IsStructured() {
				return output.Structured(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("stockanalysis v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

// splitList parses a comma separated flag value.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// requireFlag returns the named string flag or an error when it is empty.
func requireFlag(cmd *cobra.Command, name string) (string, error) {
	v, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return strings.TrimSpace(v), nil
}
