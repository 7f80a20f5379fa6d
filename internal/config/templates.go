package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Stock Analysis Engine Configuration
# Every key can be overridden with STOCKANALYSIS_<SECTION>_<KEY>,
# e.g. STOCKANALYSIS_BACKTEST_STOP_LOSS=0.08

[backtest]
# Starting cash per strategy run
initial_capital = 100000.0
# Fraction of available cash committed per entry
position_size = 0.10
# Exit when price falls this fraction below entry (0 disables)
stop_loss = 0.0
# Exit when price rises this fraction above entry (0 disables)
take_profit = 0.0
# Exit after this many calendar days (0 disables)
max_holding_days = 0
# Trailing stop: starts once gain reaches the activation, trails the peak
trailing_stop = false
trailing_stop_activation = 0.05
trailing_stop_distance = 0.10
# Scale out of winners at ascending thresholds
partial_profit_taking = false
# Fractions of cost charged on every fill
commission_rate = 0.0
slippage_rate = 0.0
# Bars skipped before the first signal
warmup = 0
# Close positions still open on the last bar
close_at_end = true

# Profit ladder used when partial_profit_taking is enabled
# [[backtest.profit_levels]]
# profit_threshold = 0.10
# sell_fraction = 0.25
#
# [[backtest.profit_levels]]
# profit_threshold = 0.20
# sell_fraction = 0.25

[walk_forward]
windows = 4
# Share of each window used for strategy selection
in_sample_ratio = 0.7
# Anchored windows always start at the first bar
anchored = false

[monte_carlo]
simulations = 1000
position_fraction = 0.10
# 0 draws a fresh seed on every run
seed = 0

[optimizer]
samples = 10000
seed = 0
# Absolute annual-return band for target-return searches
target_tolerance = 0.005
# Times the band may double before a target is infeasible
max_widenings = 4
frontier_points = 20

[risk]
risk_free_rate = 0.02
trading_days = 252
# Stored symbol used as the beta benchmark (empty disables beta)
benchmark = ""

[weighting]
# conservative, balanced, aggressive, growth, value, catalyst
profile = "balanced"
# Tilt weights by the detected market regime
auto_regime = false

# Custom weights replace the profile when present
# [weighting.custom_weights]
# sma_crossover = 0.4
# rsi_reversion = 0.3
# breakout = 0.3

[weighting.regime]
sma_period = 50
slope_lookback = 10
trend_threshold = 0.02
volatility_threshold = 0.35
trading_days = 252

[performance]
# Largest strategy subset considered when combining strategies
max_strategies = 3
correlation_penalty = 0.5
max_subsets = 200000

[engine]
# Parallel workers, 0 uses every CPU
workers = 0

[store]
# SQLite database, defaults to data.db in the config directory
path = ""

[ui]
color_enabled = true
date_format = "2006-01-02"

[logging]
# debug, info, warn, error, disabled
level = "info"
console = true
file = false
file_path = ""
max_size = 100
max_backups = 7
max_age = 30
`

func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, ConfigName+".toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}
	return nil
}

// Template returns the commented default config file.
func Template() string {
	return configTemplate
}
