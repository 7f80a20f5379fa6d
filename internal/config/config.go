// Package config provides configuration management for the analysis engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"stock-analysis/internal/backtest"
	"stock-analysis/internal/errors"
	"stock-analysis/internal/logging"
	"stock-analysis/internal/performance"
	"stock-analysis/internal/portfolio"
	"stock-analysis/internal/risk"
	"stock-analysis/internal/strategies"
	"stock-analysis/internal/weighting"
)

// EnvPrefix prefixes environment variable overrides, e.g.
// STOCKANALYSIS_BACKTEST_STOP_LOSS=0.08.
const EnvPrefix = "STOCKANALYSIS"

// ConfigName is the base name of the config file inside the config dir.
const ConfigName = "engine"

// Config holds all application configuration.
type Config struct {
	// Backtest is kept as the raw options map so unknown keys and profit
	// ladders are validated by backtest.ParseOptions.
	Backtest    map[string]interface{} `mapstructure:"backtest"`
	WalkForward WalkForwardSection     `mapstructure:"walk_forward"`
	MonteCarlo  MonteCarloSection      `mapstructure:"monte_carlo"`
	Optimizer   OptimizerSection       `mapstructure:"optimizer"`
	Risk        RiskSection            `mapstructure:"risk"`
	Weighting   WeightingSection       `mapstructure:"weighting"`
	Performance PerformanceSection     `mapstructure:"performance"`
	Engine      EngineSection          `mapstructure:"engine"`
	Store       StoreSection           `mapstructure:"store"`
	UI          UIConfig               `mapstructure:"ui"`
	Logging     logging.LogConfig      `mapstructure:"logging"`

	path string
}

// EngineSection holds settings shared by every parallel computation.
type EngineSection struct {
	Workers int `mapstructure:"workers"` // 0 uses every CPU
}

// WalkForwardSection configures walk-forward validation.
type WalkForwardSection struct {
	Windows       int     `mapstructure:"windows"`
	InSampleRatio float64 `mapstructure:"in_sample_ratio"`
	Anchored      bool    `mapstructure:"anchored"`
}

// MonteCarloSection configures trade resampling.
type MonteCarloSection struct {
	Simulations      int     `mapstructure:"simulations"`
	PositionFraction float64 `mapstructure:"position_fraction"`
	Seed             uint64  `mapstructure:"seed"`
}

// OptimizerSection configures the portfolio optimizer.
type OptimizerSection struct {
	Samples         int     `mapstructure:"samples"`
	Seed            uint64  `mapstructure:"seed"`
	TargetTolerance float64 `mapstructure:"target_tolerance"`
	MaxWidenings    int     `mapstructure:"max_widenings"`
	FrontierPoints  int     `mapstructure:"frontier_points"`
}

// RiskSection holds the rates shared by every risk-adjusted metric.
type RiskSection struct {
	RiskFreeRate float64 `mapstructure:"risk_free_rate"`
	TradingDays  int     `mapstructure:"trading_days"`
	Benchmark    string  `mapstructure:"benchmark"` // symbol used for beta
}

// WeightingSection selects the strategy weighting.
type WeightingSection struct {
	Profile       string                 `mapstructure:"profile"`
	CustomWeights map[string]float64     `mapstructure:"custom_weights"`
	AutoRegime    bool                   `mapstructure:"auto_regime"`
	Regime        weighting.RegimeConfig `mapstructure:"regime"`
}

// PerformanceSection configures strategy comparison.
type PerformanceSection struct {
	MaxStrategies      int     `mapstructure:"max_strategies"`
	CorrelationPenalty float64 `mapstructure:"correlation_penalty"`
	MaxSubsets         int     `mapstructure:"max_subsets"`
}

// StoreSection locates the price database.
type StoreSection struct {
	Path string `mapstructure:"path"`
}

// UIConfig holds output settings.
type UIConfig struct {
	ColorEnabled bool   `mapstructure:"color_enabled"`
	DateFormat   string `mapstructure:"date_format"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/stock-analysis"
	}
	return filepath.Join(home, ".config", "stock-analysis")
}

// Load loads configuration from the specified directory, writing a
// template first when no config file exists. If configDir is empty, uses the
// default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading %s.toml: %w", ConfigName, err)
		}
		if err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s.toml: %w", ConfigName, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s.toml: %w", ConfigName, err)
	}
	cfg.path = v.ConfigFileUsed()

	applyEnvOverrides(cfg, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without touching the
// filesystem.
func Default() *Config {
	v := newViper("")
	cfg := &Config{}
	// defaults are plain values and always decode
	_ = v.Unmarshal(cfg)
	applyEnvOverrides(cfg, DefaultConfigDir())
	return cfg
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigName)
	v.SetConfigType("toml")
	if configDir != "" {
		v.AddConfigPath(configDir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	opts := backtest.DefaultOptions()
	v.SetDefault("backtest.initial_capital", opts.InitialCapital)
	v.SetDefault("backtest.position_size", opts.PositionSize)
	v.SetDefault("backtest.stop_loss", opts.StopLoss)
	v.SetDefault("backtest.take_profit", opts.TakeProfit)
	v.SetDefault("backtest.max_holding_days", opts.MaxHoldingDays)
	v.SetDefault("backtest.trailing_stop", opts.TrailingStop)
	v.SetDefault("backtest.trailing_stop_activation", opts.TrailingStopActivation)
	v.SetDefault("backtest.trailing_stop_distance", opts.TrailingStopDistance)
	v.SetDefault("backtest.partial_profit_taking", opts.PartialProfitTaking)
	v.SetDefault("backtest.commission_rate", opts.CommissionRate)
	v.SetDefault("backtest.slippage_rate", opts.SlippageRate)
	v.SetDefault("backtest.warmup", opts.Warmup)
	v.SetDefault("backtest.close_at_end", opts.CloseAtEnd)

	wf := backtest.DefaultWalkForwardConfig()
	v.SetDefault("walk_forward.windows", wf.Windows)
	v.SetDefault("walk_forward.in_sample_ratio", wf.InSampleRatio)
	v.SetDefault("walk_forward.anchored", wf.Anchored)

	mc := backtest.DefaultMonteCarloConfig()
	v.SetDefault("monte_carlo.simulations", mc.Simulations)
	v.SetDefault("monte_carlo.position_fraction", mc.PositionFraction)
	v.SetDefault("monte_carlo.seed", 0)

	opt := portfolio.NewOptimizer()
	v.SetDefault("optimizer.samples", opt.Samples)
	v.SetDefault("optimizer.seed", 0)
	v.SetDefault("optimizer.target_tolerance", opt.TargetTolerance)
	v.SetDefault("optimizer.max_widenings", opt.MaxWidenings)
	v.SetDefault("optimizer.frontier_points", 20)

	v.SetDefault("risk.risk_free_rate", performance.DefaultRiskFreeRate)
	v.SetDefault("risk.trading_days", performance.DefaultTradingDays)
	v.SetDefault("risk.benchmark", "")

	rc := weighting.DefaultRegimeConfig()
	v.SetDefault("weighting.profile", string(weighting.ProfileBalanced))
	v.SetDefault("weighting.auto_regime", false)
	v.SetDefault("weighting.regime.sma_period", rc.SMAPeriod)
	v.SetDefault("weighting.regime.slope_lookback", rc.SlopeLookback)
	v.SetDefault("weighting.regime.trend_threshold", rc.TrendThreshold)
	v.SetDefault("weighting.regime.volatility_threshold", rc.VolatilityThreshold)
	v.SetDefault("weighting.regime.trading_days", rc.TradingDays)

	comb := performance.DefaultCombinationConfig()
	v.SetDefault("performance.max_strategies", 3)
	v.SetDefault("performance.correlation_penalty", comb.CorrelationPenalty)
	v.SetDefault("performance.max_subsets", comb.MaxSubsets)

	v.SetDefault("engine.workers", 0)
	v.SetDefault("store.path", "")
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("ui.date_format", "2006-01-02")

	lc := logging.DefaultLogConfig()
	v.SetDefault("logging.level", lc.Level)
	v.SetDefault("logging.console", lc.Console)
	v.SetDefault("logging.file", lc.File)
	v.SetDefault("logging.file_path", lc.FilePath)
	v.SetDefault("logging.max_size", lc.MaxSize)
	v.SetDefault("logging.max_backups", lc.MaxBackups)
	v.SetDefault("logging.max_age", lc.MaxAge)
}

func applyEnvOverrides(cfg *Config, configDir string) {
	// short aliases for the settings people change most
	if v := os.Getenv(EnvPrefix + "_DB"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv(EnvPrefix + "_PROFILE"); v != "" {
		cfg.Weighting.Profile = v
	}
	if os.Getenv(EnvPrefix+"_DEBUG") != "" {
		cfg.Logging.Level = "debug"
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = filepath.Join(configDir, "data.db")
	}
	if cfg.Logging.FilePath == "" {
		cfg.Logging.FilePath = filepath.Join(configDir, "logs", "engine.log")
	}
}

// Path returns the config file that was loaded, empty for Default.
func (c *Config) Path() string {
	return c.path
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if _, err := c.BacktestOptions(); err != nil {
		return errors.Wrap(err, "backtest")
	}
	if err := c.WalkForwardConfig().Validate(); err != nil {
		return errors.Wrap(err, "walk_forward")
	}
	if err := c.MonteCarloConfig(1).Validate(); err != nil {
		return errors.Wrap(err, "monte_carlo")
	}
	if err := c.NewOptimizer().Validate(); err != nil {
		return errors.Wrap(err, "optimizer")
	}
	if c.Optimizer.FrontierPoints < 2 {
		return errors.Wrap(errors.NewConfigurationError("frontier_points", c.Optimizer.FrontierPoints, "must be at least 2"), "optimizer")
	}
	if c.Risk.TradingDays < 1 {
		return errors.Wrap(errors.NewConfigurationError("trading_days", c.Risk.TradingDays, "must be positive"), "risk")
	}
	if err := c.Weighting.Regime.Validate(); err != nil {
		return errors.Wrap(err, "weighting.regime")
	}
	if len(c.Weighting.CustomWeights) == 0 {
		if _, err := weighting.ParseProfile(c.Weighting.Profile); err != nil {
			return errors.Wrap(err, "weighting")
		}
	}
	if c.Performance.MaxStrategies < 1 {
		return errors.Wrap(errors.NewConfigurationError("max_strategies", c.Performance.MaxStrategies, "must be at least 1"), "performance")
	}
	if c.Performance.CorrelationPenalty < 0 {
		return errors.Wrap(errors.NewConfigurationError("correlation_penalty", c.Performance.CorrelationPenalty, "must not be negative"), "performance")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "disabled", "off":
	default:
		return errors.Wrap(errors.NewConfigurationError("level", c.Logging.Level, "must be debug, info, warn, error or disabled"), "logging")
	}
	return nil
}

// BacktestOptions decodes the [backtest] section.
func (c *Config) BacktestOptions() (backtest.Options, error) {
	return backtest.ParseOptions(c.Backtest)
}

// WalkForwardConfig returns the walk-forward settings.
func (c *Config) WalkForwardConfig() backtest.WalkForwardConfig {
	return backtest.WalkForwardConfig{
		Windows:       c.WalkForward.Windows,
		InSampleRatio: c.WalkForward.InSampleRatio,
		Anchored:      c.WalkForward.Anchored,
		RiskFreeRate:  c.Risk.RiskFreeRate,
		Workers:       c.Engine.Workers,
	}
}

// MonteCarloConfig returns the resampling settings for a run that started
// with initialCapital.
func (c *Config) MonteCarloConfig(initialCapital float64) backtest.MonteCarloConfig {
	return backtest.MonteCarloConfig{
		Simulations:      c.MonteCarlo.Simulations,
		InitialCapital:   initialCapital,
		PositionFraction: c.MonteCarlo.PositionFraction,
		Seed:             c.MonteCarlo.Seed,
		Workers:          c.Engine.Workers,
	}
}

// NewOptimizer builds a portfolio optimizer from the config.
func (c *Config) NewOptimizer() *portfolio.Optimizer {
	o := portfolio.NewOptimizer()
	o.Samples = c.Optimizer.Samples
	o.Seed = c.Optimizer.Seed
	o.TargetTolerance = c.Optimizer.TargetTolerance
	o.MaxWidenings = c.Optimizer.MaxWidenings
	o.TradingDays = c.Risk.TradingDays
	o.RiskFreeRate = c.Risk.RiskFreeRate
	o.Workers = c.Engine.Workers
	return o
}

// NewRiskAnalyzer builds a risk analyzer from the config.
func (c *Config) NewRiskAnalyzer() *risk.Analyzer {
	a := risk.NewAnalyzer()
	a.RiskFreeRate = c.Risk.RiskFreeRate
	a.TradingDays = c.Risk.TradingDays
	return a
}

// NewPerformanceAnalyzer builds a performance analyzer from the config.
func (c *Config) NewPerformanceAnalyzer() *performance.Analyzer {
	a := performance.NewAnalyzer()
	a.RiskFreeRate = c.Risk.RiskFreeRate
	a.TradingDays = c.Risk.TradingDays
	a.Workers = c.Engine.Workers
	return a
}

// CombinationConfig returns the subset search settings.
func (c *Config) CombinationConfig() performance.CombinationConfig {
	return performance.CombinationConfig{
		CorrelationPenalty: c.Performance.CorrelationPenalty,
		MaxSubsets:         c.Performance.MaxSubsets,
	}
}

// NewWeightingEngine builds a weighting engine over registry with the
// configured custom weights, or the configured profile when none are set.
func (c *Config) NewWeightingEngine(registry *strategies.Registry) (*weighting.Engine, error) {
	e := weighting.NewEngine(registry)
	if len(c.Weighting.CustomWeights) > 0 {
		if err := e.SetCustomWeights(c.Weighting.CustomWeights); err != nil {
			return nil, err
		}
		return e, nil
	}
	if err := e.LoadProfile(c.Weighting.Profile); err != nil {
		return nil, err
	}
	return e, nil
}
