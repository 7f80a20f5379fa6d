package weighting

import (
	"fmt"
	"math"
	"strings"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/strategies"
)

// Regime is the broad market state used to tilt strategy weights.
type Regime string

const (
	RegimeBull     Regime = "bull"
	RegimeBear     Regime = "bear"
	RegimeSideways Regime = "sideways"
	RegimeVolatile Regime = "volatile"
)

// Regimes lists every regime.
func Regimes() []Regime {
	return []Regime{RegimeBull, RegimeBear, RegimeSideways, RegimeVolatile}
}

// ParseRegime resolves a regime name.
func ParseRegime(name string) (Regime, error) {
	r := Regime(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := regimeMultipliers[r]; !ok {
		return "", errors.NewConfigurationError("regime", name, fmt.Sprintf("unknown regime (available: %v)", Regimes()))
	}
	return r, nil
}

// regimeMultipliers tilts each strategy style per regime.
var regimeMultipliers = map[Regime]map[strategies.Style]float64{
	RegimeBull: {
		strategies.StyleTrend:     1.3,
		strategies.StyleMomentum:  1.4,
		strategies.StyleBreakout:  1.2,
		strategies.StyleReversion: 0.7,
	},
	RegimeBear: {
		strategies.StyleTrend:     0.7,
		strategies.StyleMomentum:  0.6,
		strategies.StyleBreakout:  0.8,
		strategies.StyleReversion: 1.3,
	},
	RegimeSideways: {
		strategies.StyleTrend:     0.8,
		strategies.StyleMomentum:  0.8,
		strategies.StyleBreakout:  0.7,
		strategies.StyleReversion: 1.4,
	},
	RegimeVolatile: {
		strategies.StyleTrend:     0.9,
		strategies.StyleMomentum:  0.8,
		strategies.StyleBreakout:  1.3,
		strategies.StyleReversion: 0.9,
	},
}

// Multiplier returns the weight multiplier for a style, 1 when the style is
// not in the table.
func (r Regime) Multiplier(style strategies.Style) float64 {
	m, ok := regimeMultipliers[r][style]
	if !ok {
		return 1
	}
	return m
}

// RegimeConfig holds configuration for regime detection.
type RegimeConfig struct {
	SMAPeriod           int     `mapstructure:"sma_period"`
	SlopeLookback       int     `mapstructure:"slope_lookback"`
	TrendThreshold      float64 `mapstructure:"trend_threshold"`      // SMA change over the lookback
	VolatilityThreshold float64 `mapstructure:"volatility_threshold"` // annualized
	TradingDays         int     `mapstructure:"trading_days"`
}

// DefaultRegimeConfig returns default regime detection configuration.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		SMAPeriod:           50,
		SlopeLookback:       10,
		TrendThreshold:      0.02,
		VolatilityThreshold: 0.35,
		TradingDays:         252,
	}
}

// Validate checks the detector settings.
func (c RegimeConfig) Validate() error {
	if c.SMAPeriod < 2 {
		return errors.NewConfigurationError("sma_period", c.SMAPeriod, "must be at least 2")
	}
	if c.SlopeLookback < 1 {
		return errors.NewConfigurationError("slope_lookback", c.SlopeLookback, "must be at least 1")
	}
	if c.TrendThreshold < 0 {
		return errors.NewConfigurationError("trend_threshold", c.TrendThreshold, "must not be negative")
	}
	if c.VolatilityThreshold <= 0 {
		return errors.NewConfigurationError("volatility_threshold", c.VolatilityThreshold, "must be positive")
	}
	if c.TradingDays < 1 {
		return errors.NewConfigurationError("trading_days", c.TradingDays, "must be positive")
	}
	return nil
}

// RegimeReading is the detector output with the figures behind it.
type RegimeReading struct {
	Regime     Regime  `json:"regime" yaml:"regime"`
	Volatility float64 `json:"volatility" yaml:"volatility"`
	Slope      float64 `json:"slope" yaml:"slope"`
}

// DetectRegime classifies the most recent bars. High volatility takes
// precedence over trend.
func DetectRegime(candles []models.Candle, cfg RegimeConfig) (RegimeReading, error) {
	if err := cfg.Validate(); err != nil {
		return RegimeReading{}, err
	}
	need := cfg.SMAPeriod + cfg.SlopeLookback
	if len(candles) < need {
		return RegimeReading{}, errors.NewInsufficientDataError("regime detection bars", need, len(candles))
	}

	closes := models.Closes(candles[len(candles)-need:])
	sma := talib.Sma(closes, cfg.SMAPeriod)
	last := sma[len(sma)-1]
	prev := sma[len(sma)-1-cfg.SlopeLookback]

	recent := closes[len(closes)-cfg.SMAPeriod:]
	returns := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		returns = append(returns, recent[i]/recent[i-1]-1)
	}

	reading := RegimeReading{
		Volatility: stat.StdDev(returns, nil) * math.Sqrt(float64(cfg.TradingDays)),
	}
	if prev > 0 {
		reading.Slope = last/prev - 1
	}

	switch {
	case reading.Volatility >= cfg.VolatilityThreshold:
		reading.Regime = RegimeVolatile
	case reading.Slope > cfg.TrendThreshold:
		reading.Regime = RegimeBull
	case reading.Slope < -cfg.TrendThreshold:
		reading.Regime = RegimeBear
	default:
		reading.Regime = RegimeSideways
	}
	return reading, nil
}
