package strategies

import (
	"math"

	"github.com/markcheno/go-talib"

	"stock-analysis/internal/models"
)

// Breakout is a Donchian channel breakout: buy a close above the prior
// period's highest high, sell a close below its lowest low.
type Breakout struct {
	period int
}

// NewBreakout creates a new channel breakout strategy.
func NewBreakout(period int) *Breakout {
	return &Breakout{period: period}
}

func (b *Breakout) Name() string {
	return NameBreakout
}

func (b *Breakout) Style() Style {
	return StyleBreakout
}

func (b *Breakout) Signal(window []models.Candle) models.Signal {
	if b.period < 2 || len(window) < b.period+1 {
		return models.Hold()
	}

	prior := window[len(window)-b.period-1 : len(window)-1]
	highs := make([]float64, len(prior))
	lows := make([]float64, len(prior))
	for i, c := range prior {
		highs[i] = c.High
		lows[i] = c.Low
	}
	upper := talib.Max(highs, b.period)[len(highs)-1]
	lower := talib.Min(lows, b.period)[len(lows)-1]
	price := window[len(window)-1].Close

	switch {
	case upper > 0 && price > upper:
		return models.Signal{Action: models.ActionBuy, Confidence: models.ClampConfidence(0.5 + (price-upper)/upper*10)}
	case lower > 0 && price < lower:
		return models.Signal{Action: models.ActionSell, Confidence: models.ClampConfidence(0.5 + (lower-price)/lower*10)}
	}
	return models.Hold()
}

// Momentum follows the rate of change over a fixed period.
type Momentum struct {
	period    int
	threshold float64 // fraction, 0.05 = 5%
}

// NewMomentum creates a new rate-of-change momentum strategy.
func NewMomentum(period int, threshold float64) *Momentum {
	return &Momentum{period: period, threshold: threshold}
}

func (m *Momentum) Name() string {
	return NameMomentum
}

func (m *Momentum) Style() Style {
	return StyleMomentum
}

func (m *Momentum) Signal(window []models.Candle) models.Signal {
	if m.period < 1 || m.threshold <= 0 || len(window) < m.period+1 {
		return models.Hold()
	}

	closes := tail(window, m.period+1)
	roc := talib.Roc(closes, m.period)[m.period] / 100
	confidence := models.ClampConfidence(math.Abs(roc) / (2 * m.threshold))

	switch {
	case roc > m.threshold:
		return models.Signal{Action: models.ActionBuy, Confidence: confidence}
	case roc < -m.threshold:
		return models.Signal{Action: models.ActionSell, Confidence: confidence}
	}
	return models.Hold()
}
