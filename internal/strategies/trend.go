package strategies

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"stock-analysis/internal/models"
)

// SMACrossover buys when the fast SMA crosses above the slow SMA and sells
// on the opposite cross.
type SMACrossover struct {
	fast int
	slow int
}

// NewSMACrossover creates a new SMA crossover strategy.
func NewSMACrossover(fast, slow int) *SMACrossover {
	if fast > slow {
		fast, slow = slow, fast
	}
	return &SMACrossover{fast: fast, slow: slow}
}

func (s *SMACrossover) Name() string {
	return NameSMACrossover
}

func (s *SMACrossover) Style() Style {
	return StyleTrend
}

func (s *SMACrossover) String() string {
	return fmt.Sprintf("SMA(%d/%d)", s.fast, s.slow)
}

func (s *SMACrossover) Signal(window []models.Candle) models.Signal {
	if s.fast < 2 || len(window) < s.slow+1 {
		return models.Hold()
	}

	closes := tail(window, s.slow+1)
	fast := talib.Sma(closes, s.fast)
	slow := talib.Sma(closes, s.slow)
	last := len(closes) - 1

	prevDiff := fast[last-1] - slow[last-1]
	diff := fast[last] - slow[last]
	strength := math.Abs(diff) / slow[last] * 20

	switch {
	case prevDiff <= 0 && diff > 0:
		return models.Signal{Action: models.ActionBuy, Confidence: models.ClampConfidence(0.5 + strength)}
	case prevDiff >= 0 && diff < 0:
		return models.Signal{Action: models.ActionSell, Confidence: models.ClampConfidence(0.5 + strength)}
	}
	return models.Hold()
}

// MACDCrossover trades MACD histogram sign changes.
type MACDCrossover struct {
	fast   int
	slow   int
	signal int
}

// NewMACDCrossover creates a new MACD crossover strategy.
func NewMACDCrossover(fast, slow, signal int) *MACDCrossover {
	return &MACDCrossover{fast: fast, slow: slow, signal: signal}
}

func (m *MACDCrossover) Name() string {
	return NameMACDCrossover
}

func (m *MACDCrossover) Style() Style {
	return StyleMomentum
}

func (m *MACDCrossover) lookback() int {
	return m.slow + m.signal - 2
}

func (m *MACDCrossover) Signal(window []models.Candle) models.Signal {
	if m.fast < 2 || m.slow < 2 || m.signal < 2 || len(window) < m.lookback()+2 {
		return models.Hold()
	}

	closes := tail(window, tailLength(m.lookback()))
	_, _, hist := talib.Macd(closes, m.fast, m.slow, m.signal)
	last := len(closes) - 1
	price := closes[last]

	// histogram scaled to price, in percent
	strength := math.Abs(hist[last]) / price * 100

	switch {
	case hist[last-1] <= 0 && hist[last] > 0:
		return models.Signal{Action: models.ActionBuy, Confidence: models.ClampConfidence(0.5 + strength)}
	case hist[last-1] >= 0 && hist[last] < 0:
		return models.Signal{Action: models.ActionSell, Confidence: models.ClampConfidence(0.5 + strength)}
	}
	return models.Hold()
}
