package strategies

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
)

func candles(closes ...float64) []models.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.AddDate(0, 0, i),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    1000,
		}
	}
	return out
}

func ramp(from, step float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + step*float64(i)
	}
	return out
}

func TestSMACrossoverDetectsCross(t *testing.T) {
	s := NewSMACrossover(2, 4)

	sig := s.Signal(candles(10, 10, 10, 9, 9, 14))
	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.Greater(t, sig.Confidence, 0.5)

	sig = s.Signal(candles(10, 10, 10, 11, 11, 6))
	assert.Equal(t, models.ActionSell, sig.Action)

	sig = s.Signal(candles(10, 10, 10, 10, 10, 10))
	assert.Equal(t, models.ActionHold, sig.Action)
}

func TestRSIReversion(t *testing.T) {
	s := NewRSIReversion(14, 30, 70)

	falling := s.Signal(candles(ramp(200, -2, 40)...))
	assert.Equal(t, models.ActionBuy, falling.Action)
	assert.Equal(t, 1.0, falling.Confidence)

	rising := s.Signal(candles(ramp(100, 2, 40)...))
	assert.Equal(t, models.ActionSell, rising.Action)
}

func TestBollingerReversionBuysBelowLowerBand(t *testing.T) {
	closes := make([]float64, 0, 20)
	for i := 0; i < 19; i++ {
		closes = append(closes, 100+float64(i%2))
	}
	closes = append(closes, 90)

	sig := NewBollingerReversion(20, 2).Signal(candles(closes...))
	assert.Equal(t, models.ActionBuy, sig.Action)
}

func TestBreakout(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}

	up := NewBreakout(20).Signal(candles(append(flat, 105)...))
	assert.Equal(t, models.ActionBuy, up.Action)

	down := NewBreakout(20).Signal(candles(append(flat, 95)...))
	assert.Equal(t, models.ActionSell, down.Action)

	inside := NewBreakout(20).Signal(candles(append(flat, 100.5)...))
	assert.Equal(t, models.ActionHold, inside.Action)
}

func TestMomentum(t *testing.T) {
	s := NewMomentum(10, 0.05)

	sig := s.Signal(candles(ramp(100, 1, 11)...)) // +10% over 10 bars
	assert.Equal(t, models.ActionBuy, sig.Action)
	assert.InDelta(t, 1.0, sig.Confidence, 1e-9)

	sig = s.Signal(candles(ramp(100, -1, 11)...))
	assert.Equal(t, models.ActionSell, sig.Action)

	sig = s.Signal(candles(ramp(100, 0.1, 11)...))
	assert.Equal(t, models.ActionHold, sig.Action)
}

func TestShortWindowsHold(t *testing.T) {
	for _, s := range DefaultRegistry().All() {
		for n := 0; n < 5; n++ {
			sig := s.Signal(candles(ramp(100, 1, n)...))
			assert.Equal(t, models.Hold(), sig, "%s with %d bars", s.Name(), n)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t, []string{
		NameBollingerReversion, NameBreakout, NameMACDCrossover,
		NameMomentum, NameRSIReversion, NameSMACrossover,
	}, r.Names())

	s, err := r.Get(NameMomentum)
	require.NoError(t, err)
	assert.Equal(t, StyleMomentum, s.Style())

	_, err = r.Select([]string{NameBreakout, "astrology"})
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))

	assert.Equal(t, StyleReversion, r.Styles()[NameRSIReversion])
}

func TestFuncStrategy(t *testing.T) {
	f := NewFunc("always_buy", StyleTrend, func([]models.Candle) models.Signal {
		return models.Signal{Action: models.ActionBuy, Confidence: 1}
	})
	assert.Equal(t, "always_buy", f.Name())
	assert.Equal(t, models.ActionBuy, f.Signal(nil).Action)
	assert.Equal(t, models.Hold(), (&Func{}).Signal(nil))
}

// Property: every built-in strategy returns a valid action with confidence
// in [0, 1] for any positive price path.
func TestProperty_SignalsAreWellFormed(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)
	registry := DefaultRegistry()

	properties.Property("signals are well formed", prop.ForAll(
		func(steps []float64) bool {
			closes := make([]float64, len(steps))
			price := 100.0
			for i, s := range steps {
				price *= 1 + s
				closes[i] = price
			}
			window := candles(closes...)
			for _, s := range registry.All() {
				for end := 1; end <= len(window); end += 7 {
					sig := s.Signal(window[:end])
					if !sig.Action.Valid() || sig.Confidence < 0 || sig.Confidence > 1 {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOfN(120, gen.Float64Range(-0.08, 0.08)),
	))

	properties.TestingRun(t)
}
