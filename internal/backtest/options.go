package backtest

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/mitchellh/mapstructure"

	"stock-analysis/internal/errors"
)

// ProfitLevel sells Fraction of the original shares once the gain reaches
// Threshold (both fractions: 0.10 = 10%).
type ProfitLevel struct {
	Threshold float64 `mapstructure:"profit_threshold" json:"profit_threshold" yaml:"profit_threshold"`
	Fraction  float64 `mapstructure:"sell_fraction" json:"sell_fraction" yaml:"sell_fraction"`
}

// ProfitLadder is a validated, immutable list of profit levels in strictly
// ascending threshold order.
type ProfitLadder struct {
	levels []ProfitLevel
}

// NewProfitLadder validates levels. Levels are never reordered: a
// descending or duplicate threshold is an error.
func NewProfitLadder(levels []ProfitLevel) (ProfitLadder, error) {
	for i, l := range levels {
		field := fmt.Sprintf("profit_levels[%d]", i)
		if !finite(l.Threshold) || l.Threshold <= 0 {
			return ProfitLadder{}, errors.NewConfigurationError(field+".profit_threshold", l.Threshold, "must be a positive number")
		}
		if !finite(l.Fraction) || l.Fraction <= 0 || l.Fraction > 1 {
			return ProfitLadder{}, errors.NewConfigurationError(field+".sell_fraction", l.Fraction, "must be in (0, 1]")
		}
		if i > 0 && l.Threshold <= levels[i-1].Threshold {
			return ProfitLadder{}, errors.NewConfigurationError(field+".profit_threshold", l.Threshold, "thresholds must be strictly ascending")
		}
	}
	if len(levels) == 0 {
		return ProfitLadder{}, nil
	}
	out := make([]ProfitLevel, len(levels))
	copy(out, levels)
	return ProfitLadder{levels: out}, nil
}

// MustProfitLadder is like NewProfitLadder but panics on invalid input.
func MustProfitLadder(levels ...ProfitLevel) ProfitLadder {
	l, err := NewProfitLadder(levels)
	if err != nil {
		panic(err)
	}
	return l
}

// Len returns the number of levels.
func (l ProfitLadder) Len() int {
	return len(l.levels)
}

// Level returns the i-th level.
func (l ProfitLadder) Level(i int) ProfitLevel {
	return l.levels[i]
}

// Levels returns a copy of the levels.
func (l ProfitLadder) Levels() []ProfitLevel {
	out := make([]ProfitLevel, len(l.levels))
	copy(out, l.levels)
	return out
}

// MarshalJSON encodes the ladder as a list of levels.
func (l ProfitLadder) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Levels())
}

// UnmarshalJSON decodes and validates a list of levels.
func (l *ProfitLadder) UnmarshalJSON(b []byte) error {
	var levels []ProfitLevel
	if err := json.Unmarshal(b, &levels); err != nil {
		return err
	}
	ladder, err := NewProfitLadder(levels)
	if err != nil {
		return err
	}
	*l = ladder
	return nil
}

// MarshalYAML encodes the ladder as a list of levels.
func (l ProfitLadder) MarshalYAML() (interface{}, error) {
	return l.Levels(), nil
}

// Options configures a single backtest run. Zero values of the optional
// exits (StopLoss, TakeProfit, MaxHoldingDays) disable them.
type Options struct {
	InitialCapital         float64      `mapstructure:"initial_capital" json:"initial_capital" yaml:"initial_capital"`
	PositionSize           float64      `mapstructure:"position_size" json:"position_size" yaml:"position_size"`
	StopLoss               float64      `mapstructure:"stop_loss" json:"stop_loss" yaml:"stop_loss"`
	TakeProfit             float64      `mapstructure:"take_profit" json:"take_profit" yaml:"take_profit"`
	MaxHoldingDays         int          `mapstructure:"max_holding_days" json:"max_holding_days" yaml:"max_holding_days"`
	TrailingStop           bool         `mapstructure:"trailing_stop" json:"trailing_stop" yaml:"trailing_stop"`
	TrailingStopActivation float64      `mapstructure:"trailing_stop_activation" json:"trailing_stop_activation" yaml:"trailing_stop_activation"`
	TrailingStopDistance   float64      `mapstructure:"trailing_stop_distance" json:"trailing_stop_distance" yaml:"trailing_stop_distance"`
	PartialProfitTaking    bool         `mapstructure:"partial_profit_taking" json:"partial_profit_taking" yaml:"partial_profit_taking"`
	ProfitLevels           ProfitLadder `mapstructure:"-" json:"profit_levels" yaml:"profit_levels"`
	CommissionRate         float64      `mapstructure:"commission_rate" json:"commission_rate" yaml:"commission_rate"`
	SlippageRate           float64      `mapstructure:"slippage_rate" json:"slippage_rate" yaml:"slippage_rate"`
	Warmup                 int          `mapstructure:"warmup" json:"warmup" yaml:"warmup"`
	CloseAtEnd             bool         `mapstructure:"close_at_end" json:"close_at_end" yaml:"close_at_end"`
}

// DefaultOptions returns the default backtest options.
func DefaultOptions() Options {
	return Options{
		InitialCapital:         100000,
		PositionSize:           0.10,
		TrailingStopActivation: 0.05,
		TrailingStopDistance:   0.10,
		CloseAtEnd:             true,
	}
}

// Validate checks every option and returns the first violation as a
// *errors.ConfigurationError.
func (o Options) Validate() error {
	checks := []struct {
		field string
		value float64
		ok    bool
		msg   string
	}{
		{"initial_capital", o.InitialCapital, o.InitialCapital > 0, "must be positive"},
		{"position_size", o.PositionSize, o.PositionSize > 0 && o.PositionSize <= 1, "must be in (0, 1]"},
		{"stop_loss", o.StopLoss, o.StopLoss >= 0 && o.StopLoss < 1, "must be in [0, 1)"},
		{"take_profit", o.TakeProfit, o.TakeProfit >= 0, "must be non-negative"},
		{"trailing_stop_activation", o.TrailingStopActivation, o.TrailingStopActivation >= 0, "must be non-negative"},
		{"trailing_stop_distance", o.TrailingStopDistance, o.TrailingStopDistance > 0 && o.TrailingStopDistance < 1, "must be in (0, 1)"},
		{"commission_rate", o.CommissionRate, o.CommissionRate >= 0 && o.CommissionRate < 1, "must be in [0, 1)"},
		{"slippage_rate", o.SlippageRate, o.SlippageRate >= 0 && o.SlippageRate < 1, "must be in [0, 1)"},
	}
	for _, c := range checks {
		if !finite(c.value) || !c.ok {
			return errors.NewConfigurationError(c.field, c.value, c.msg)
		}
	}

	if o.MaxHoldingDays < 0 {
		return errors.NewConfigurationError("max_holding_days", o.MaxHoldingDays, "must be non-negative")
	}
	if o.Warmup < 0 {
		return errors.NewConfigurationError("warmup", o.Warmup, "must be non-negative")
	}
	if o.PartialProfitTaking && o.ProfitLevels.Len() == 0 {
		return errors.NewConfigurationError("profit_levels", nil, "partial profit taking requires at least one level")
	}
	return nil
}

// ParseOptions decodes a flat options map onto the defaults and validates
// the result. profit_levels may be a list of
// {profit_threshold, sell_fraction} maps or a JSON string of the same.
func ParseOptions(raw map[string]interface{}) (Options, error) {
	opts := DefaultOptions()

	rest := make(map[string]interface{}, len(raw))
	var levelsRaw interface{}
	for k, v := range raw {
		if k == "profit_levels" {
			levelsRaw = v
			continue
		}
		rest[k] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &opts,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return Options{}, err
	}
	if err := decoder.Decode(rest); err != nil {
		return Options{}, errors.NewConfigurationError("backtest", nil, err.Error())
	}

	levels, err := decodeProfitLevels(levelsRaw)
	if err != nil {
		return Options{}, err
	}
	ladder, err := NewProfitLadder(levels)
	if err != nil {
		return Options{}, err
	}
	opts.ProfitLevels = ladder

	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func decodeProfitLevels(raw interface{}) ([]ProfitLevel, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if v == "" {
			return nil, nil
		}
		var levels []ProfitLevel
		if err := json.Unmarshal([]byte(v), &levels); err != nil {
			return nil, errors.NewConfigurationError("profit_levels", v, "invalid JSON: "+err.Error())
		}
		return levels, nil
	default:
		var levels []ProfitLevel
		if err := mapstructure.WeakDecode(v, &levels); err != nil {
			return nil, errors.NewConfigurationError("profit_levels", nil, err.Error())
		}
		return levels, nil
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
