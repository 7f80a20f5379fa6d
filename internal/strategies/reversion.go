package strategies

import (
	"github.com/markcheno/go-talib"

	"stock-analysis/internal/models"
)

// RSIReversion buys oversold and sells overbought conditions.
type RSIReversion struct {
	period     int
	oversold   float64
	overbought float64
}

// NewRSIReversion creates a new RSI mean-reversion strategy.
func NewRSIReversion(period int, oversold, overbought float64) *RSIReversion {
	return &RSIReversion{period: period, oversold: oversold, overbought: overbought}
}

func (r *RSIReversion) Name() string {
	return NameRSIReversion
}

func (r *RSIReversion) Style() Style {
	return StyleReversion
}

func (r *RSIReversion) Signal(window []models.Candle) models.Signal {
	if r.period < 2 || len(window) < r.period+1 {
		return models.Hold()
	}

	closes := tail(window, tailLength(r.period))
	rsi := talib.Rsi(closes, r.period)
	value := rsi[len(rsi)-1]

	switch {
	case value < r.oversold && r.oversold > 0:
		return models.Signal{
			Action:     models.ActionBuy,
			Confidence: models.ClampConfidence(0.5 + (r.oversold-value)/r.oversold),
		}
	case value > r.overbought && r.overbought < 100:
		return models.Signal{
			Action:     models.ActionSell,
			Confidence: models.ClampConfidence(0.5 + (value-r.overbought)/(100-r.overbought)),
		}
	}
	return models.Hold()
}

// BollingerReversion buys closes below the lower band and sells closes
// above the upper band.
type BollingerReversion struct {
	period int
	k      float64
}

// NewBollingerReversion creates a new Bollinger band strategy.
func NewBollingerReversion(period int, k float64) *BollingerReversion {
	return &BollingerReversion{period: period, k: k}
}

func (b *BollingerReversion) Name() string {
	return NameBollingerReversion
}

func (b *BollingerReversion) Style() Style {
	return StyleReversion
}

func (b *BollingerReversion) Signal(window []models.Candle) models.Signal {
	if b.period < 2 || len(window) < b.period {
		return models.Hold()
	}

	closes := tail(window, b.period)
	upper, _, lower := talib.BBands(closes, b.period, b.k, b.k, talib.SMA)
	last := len(closes) - 1
	price := closes[last]
	width := upper[last] - lower[last]
	if width <= 0 {
		return models.Hold()
	}

	switch {
	case price < lower[last]:
		return models.Signal{Action: models.ActionBuy, Confidence: models.ClampConfidence(0.5 + (lower[last]-price)/width)}
	case price > upper[last]:
		return models.Signal{Action: models.ActionSell, Confidence: models.ClampConfidence(0.5 + (price-upper[last])/width)}
	}
	return models.Hold()
}
