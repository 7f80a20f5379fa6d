package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/backtest"
	"stock-analysis/internal/errors"
	"stock-analysis/internal/strategies"
	"stock-analysis/internal/weighting"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".toml"), []byte(body), 0644))
	return dir
}

func TestLoadCreatesTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, ConfigName+".toml"))
	assert.Equal(t, filepath.Join(dir, ConfigName+".toml"), cfg.Path())
	assert.Equal(t, filepath.Join(dir, "data.db"), cfg.Store.Path)

	opts, err := cfg.BacktestOptions()
	require.NoError(t, err)
	assert.Equal(t, backtest.DefaultOptions(), opts)

	assert.Equal(t, 4, cfg.WalkForward.Windows)
	assert.Equal(t, 10000, cfg.Optimizer.Samples)
	assert.Equal(t, "balanced", cfg.Weighting.Profile)
	assert.Equal(t, 50, cfg.Weighting.Regime.SMAPeriod)
}

func TestLoadReadsBacktestSection(t *testing.T) {
	dir := writeConfig(t, `
[backtest]
stop_loss = 0.08
trailing_stop = true
partial_profit_taking = true

[[backtest.profit_levels]]
profit_threshold = 0.10
sell_fraction = 0.5

[[backtest.profit_levels]]
profit_threshold = 0.20
sell_fraction = 1.0

[weighting]
profile = "aggressive"
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	opts, err := cfg.BacktestOptions()
	require.NoError(t, err)
	assert.Equal(t, 0.08, opts.StopLoss)
	assert.True(t, opts.TrailingStop)
	assert.Equal(t, 0.10, opts.PositionSize, "unset keys keep their defaults")
	require.Equal(t, 2, opts.ProfitLevels.Len())
	assert.Equal(t, backtest.ProfitLevel{Threshold: 0.2, Fraction: 1}, opts.ProfitLevels.Level(1))

	e, err := cfg.NewWeightingEngine(strategies.DefaultRegistry())
	require.NoError(t, err)
	assert.Equal(t, weighting.ProfileAggressive, e.Profile())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backtest key", "[backtest]\nstoploss = 0.1\n"},
		{"bad stop loss", "[backtest]\nstop_loss = 1.5\n"},
		{"bad ratio", "[walk_forward]\nin_sample_ratio = 1.0\n"},
		{"bad profile", "[weighting]\nprofile = \"yolo\"\n"},
		{"bad log level", "[logging]\nlevel = \"loud\"\n"},
		{"bad frontier", "[optimizer]\nfrontier_points = 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfigInvalid), "got %v", err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STOCKANALYSIS_BACKTEST_STOP_LOSS", "0.07")
	t.Setenv("STOCKANALYSIS_DB", "/tmp/prices.db")
	t.Setenv("STOCKANALYSIS_PROFILE", "value")

	cfg, err := Load(writeConfig(t, "[backtest]\nstop_loss = 0.05\n"))
	require.NoError(t, err)

	opts, err := cfg.BacktestOptions()
	require.NoError(t, err)
	assert.Equal(t, 0.07, opts.StopLoss)
	assert.Equal(t, "/tmp/prices.db", cfg.Store.Path)
	assert.Equal(t, "value", cfg.Weighting.Profile)
}

func TestCustomWeightsReplaceProfile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[weighting.custom_weights]
sma_crossover = 3
breakout = 1
`))
	require.NoError(t, err)

	e, err := cfg.NewWeightingEngine(nil)
	require.NoError(t, err)
	assert.Equal(t, weighting.ProfileCustom, e.Profile())
	assert.InDelta(t, 0.75, e.Weights().Get("sma_crossover"), 1e-12)
}

func TestConverters(t *testing.T) {
	cfg := Default()
	cfg.Engine.Workers = 3
	cfg.Risk.RiskFreeRate = 0.04

	assert.Equal(t, 3, cfg.WalkForwardConfig().Workers)
	assert.Equal(t, 0.04, cfg.WalkForwardConfig().RiskFreeRate)
	assert.Equal(t, 5000.0, cfg.MonteCarloConfig(5000).InitialCapital)
	assert.Equal(t, 0.04, cfg.NewOptimizer().RiskFreeRate)
	assert.Equal(t, 0.04, cfg.NewRiskAnalyzer().RiskFreeRate)
	assert.Equal(t, 3, cfg.NewPerformanceAnalyzer().Workers)
	assert.Equal(t, 0.5, cfg.CombinationConfig().CorrelationPenalty)
	require.NoError(t, cfg.Validate())
}
