// Package strategies provides the signal-generating strategies evaluated by
// the backtester and the weighting engine.
package strategies

import (
	"fmt"
	"sort"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
)

// Strategy produces a signal from the price history visible at one bar.
// window holds every bar up to and including the current one.
type Strategy interface {
	Name() string
	Style() Style
	Signal(window []models.Candle) models.Signal
}

// Style groups strategies for regime rebalancing.
type Style string

const (
	StyleTrend     Style = "trend"
	StyleMomentum  Style = "momentum"
	StyleBreakout  Style = "breakout"
	StyleReversion Style = "mean_reversion"
)

// Strategy identifiers.
const (
	NameSMACrossover       = "sma_crossover"
	NameMACDCrossover      = "macd_crossover"
	NameRSIReversion       = "rsi_reversion"
	NameBollingerReversion = "bollinger_reversion"
	NameBreakout           = "breakout"
	NameMomentum           = "momentum"
)

// Func adapts a plain function to the Strategy interface.
type Func struct {
	ID   string
	Kind Style
	Fn   func(window []models.Candle) models.Signal
}

// NewFunc creates a function-backed strategy.
func NewFunc(name string, style Style, fn func(window []models.Candle) models.Signal) *Func {
	return &Func{ID: name, Kind: style, Fn: fn}
}

func (f *Func) Name() string {
	return f.ID
}

func (f *Func) Style() Style {
	return f.Kind
}

func (f *Func) Signal(window []models.Candle) models.Signal {
	if f.Fn == nil {
		return models.Hold()
	}
	return f.Fn(window)
}

// Registry holds strategies by name.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates a registry holding the given strategies.
func NewRegistry(list ...Strategy) *Registry {
	r := &Registry{strategies: make(map[string]Strategy, len(list))}
	for _, s := range list {
		r.Register(s)
	}
	return r
}

// DefaultRegistry returns a registry with the six built-in strategies at
// their default parameters.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewSMACrossover(20, 50),
		NewMACDCrossover(12, 26, 9),
		NewRSIReversion(14, 30, 70),
		NewBollingerReversion(20, 2),
		NewBreakout(20),
		NewMomentum(10, 0.05),
	)
}

// Register adds or replaces a strategy.
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get returns the named strategy.
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, errors.NewConfigurationError("strategy", name, fmt.Sprintf("unknown strategy (available: %v)", r.Names()))
	}
	return s, nil
}

// Select resolves several names at once, preserving order.
func (r *Registry) Select(names []string) ([]Strategy, error) {
	out := make([]Strategy, 0, len(names))
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered strategy sorted by name.
func (r *Registry) All() []Strategy {
	names := r.Names()
	out := make([]Strategy, len(names))
	for i, name := range names {
		out[i] = r.strategies[name]
	}
	return out
}

// Styles maps each registered strategy name to its style.
func (r *Registry) Styles() map[string]Style {
	out := make(map[string]Style, len(r.strategies))
	for name, s := range r.strategies {
		out[name] = s.Style()
	}
	return out
}

// tail returns the last n closes of the window. Indicators are computed over
// a bounded tail so a full backtest stays linear in the series length.
func tail(window []models.Candle, n int) []float64 {
	if len(window) > n {
		window = window[len(window)-n:]
	}
	return models.Closes(window)
}

// tailLength is the number of bars fed to an indicator with the given
// lookback. EMA-based indicators converge well within three lookbacks.
func tailLength(lookback int) int {
	n := lookback * 3
	if n < 100 {
		n = 100
	}
	return n
}
