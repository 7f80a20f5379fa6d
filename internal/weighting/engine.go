package weighting

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/strategies"
)

// Consensus is the weighted verdict for one symbol.
type Consensus struct {
	Symbol     string                   `json:"symbol" yaml:"symbol"`
	Action     models.Action            `json:"action" yaml:"action"`
	Confidence float64                  `json:"confidence" yaml:"confidence"`
	BuyScore   float64                  `json:"buy_score" yaml:"buy_score"`
	SellScore  float64                  `json:"sell_score" yaml:"sell_score"`
	HoldScore  float64                  `json:"hold_score" yaml:"hold_score"`
	Voters     int                      `json:"voters" yaml:"voters"`
	Agreeing   int                      `json:"agreeing" yaml:"agreeing"`
	Signals    map[string]models.Signal `json:"signals" yaml:"signals"`
}

// String returns a short human readable summary.
func (c Consensus) String() string {
	return fmt.Sprintf("%s %s (confidence %.2f, %d/%d agreeing)", c.Symbol, c.Action, c.Confidence, c.Agreeing, c.Voters)
}

// Engine holds the active strategy weights and turns signals into a
// consensus.
type Engine struct {
	mu       sync.RWMutex
	registry *strategies.Registry
	styles   map[string]strategies.Style

	profile   Profile
	base      models.WeightVector
	effective models.WeightVector
	regime    Regime

	logger zerolog.Logger
}

// NewEngine creates an engine over the registry with the balanced profile
// loaded. A nil registry uses the built-in strategies.
func NewEngine(registry *strategies.Registry) *Engine {
	if registry == nil {
		registry = strategies.DefaultRegistry()
	}
	e := &Engine{
		registry: registry,
		styles:   registry.Styles(),
		logger:   zerolog.Nop(),
	}
	e.setBase(ProfileBalanced, ProfileBalanced.Weights())
	return e
}

// WithLogger sets the engine logger.
func (e *Engine) WithLogger(logger zerolog.Logger) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
	return e
}

// LoadProfile replaces the weights with a preset and clears any regime tilt.
func (e *Engine) LoadProfile(name string) error {
	p, err := ParseProfile(name)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setBase(p, p.Weights())
	e.logger.Debug().Str("profile", string(p)).Msg("Loaded weighting profile")
	return nil
}

// SetCustomWeights replaces the weights with user supplied values. Weights
// must be non-negative; they are renormalized and an all-zero map becomes
// equal weights.
func (e *Engine) SetCustomWeights(raw map[string]float64) error {
	if len(raw) == 0 {
		return errors.NewConfigurationError("weights", raw, "at least one strategy weight is required")
	}
	for name := range raw {
		if _, ok := e.styles[name]; !ok {
			return errors.NewConfigurationError("weights", name, fmt.Sprintf("unknown strategy (available: %v)", e.registry.Names()))
		}
	}
	weights, err := models.NewWeightVector(raw)
	if err != nil {
		return errors.NewConfigurationError("weights", raw, err.Error())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.setBase(ProfileCustom, weights)
	e.logger.Debug().Interface("weights", weights).Msg("Loaded custom weights")
	return nil
}

func (e *Engine) setBase(p Profile, weights models.WeightVector) {
	e.profile = p
	e.base = weights
	e.effective = weights.Clone()
	e.regime = ""
}

// Weights returns a copy of the effective weights.
func (e *Engine) Weights() models.WeightVector {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.effective.Clone()
}

// Profile returns the loaded profile, ProfileCustom for custom weights.
func (e *Engine) Profile() Profile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profile
}

// Regime returns the regime the weights are tilted for, empty when none.
func (e *Engine) Regime() Regime {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.regime
}

// RebalanceForRegime tilts the base weights by the regime's style
// multipliers and renormalizes. Calls never compound: each starts from the
// loaded profile.
func (e *Engine) RebalanceForRegime(regime Regime) (models.WeightVector, error) {
	if _, ok := regimeMultipliers[regime]; !ok {
		return nil, errors.NewConfigurationError("regime", string(regime), fmt.Sprintf("unknown regime (available: %v)", Regimes()))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tilted := make(models.WeightVector, len(e.base))
	for name, w := range e.base {
		tilted[name] = w * regime.Multiplier(e.styles[name])
	}
	e.effective = tilted.Normalize()
	e.regime = regime

	e.logger.Debug().Str("regime", string(regime)).Interface("weights", e.effective).Msg("Rebalanced weights for regime")
	return e.effective.Clone(), nil
}

// AnalyzeSymbol combines the strategies' signals for one symbol. When
// signals is nil every registered strategy is evaluated on window.
//
// Each action scores the sum of weight × confidence over the strategies
// voting for it, normalized by the total weight of all voters. The action
// with the strictly highest score wins; any tie at the top resolves to HOLD.
// Signals from strategies without weight are ignored.
func (e *Engine) AnalyzeSymbol(symbol string, window []models.Candle, signals map[string]models.Signal) Consensus {
	if signals == nil {
		signals = e.evaluate(window)
	}

	e.mu.RLock()
	weights := e.effective
	e.mu.RUnlock()

	c := Consensus{Symbol: symbol, Action: models.ActionHold, Signals: make(map[string]models.Signal, len(signals))}

	var totalWeight float64
	for name, sig := range signals {
		w := weights.Get(name)
		if w <= 0 || !sig.Action.Valid() {
			continue
		}
		sig.Confidence = models.ClampConfidence(sig.Confidence)
		c.Signals[name] = sig
		c.Voters++
		totalWeight += w

		switch sig.Action {
		case models.ActionBuy:
			c.BuyScore += w * sig.Confidence
		case models.ActionSell:
			c.SellScore += w * sig.Confidence
		case models.ActionHold:
			c.HoldScore += w * sig.Confidence
		}
	}

	if totalWeight == 0 {
		return c
	}
	c.BuyScore /= totalWeight
	c.SellScore /= totalWeight
	c.HoldScore /= totalWeight

	switch {
	case c.BuyScore > c.SellScore && c.BuyScore > c.HoldScore:
		c.Action, c.Confidence = models.ActionBuy, c.BuyScore
	case c.SellScore > c.BuyScore && c.SellScore > c.HoldScore:
		c.Action, c.Confidence = models.ActionSell, c.SellScore
	default:
		c.Action, c.Confidence = models.ActionHold, c.HoldScore
	}
	c.Confidence = models.ClampConfidence(c.Confidence)

	for _, sig := range c.Signals {
		if sig.Action == c.Action {
			c.Agreeing++
		}
	}
	return c
}

func (e *Engine) evaluate(window []models.Candle) map[string]models.Signal {
	out := make(map[string]models.Signal)
	for _, s := range e.registry.All() {
		out[s.Name()] = s.Signal(window)
	}
	return out
}
