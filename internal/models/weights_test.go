package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/errors"
)

func TestNormalizeHugeWeights(t *testing.T) {
	w, err := NewWeightVector(map[string]float64{"a": 1e308, "b": 1e308, "c": 0})
	require.NoError(t, err)
	assert.InDelta(t, 1, w.Sum(), 1e-12)
	assert.InDelta(t, 0.5, w["a"], 1e-12)
	assert.InDelta(t, 0.5, w["b"], 1e-12)
	assert.Equal(t, 0.0, w["c"])
}

func TestNormalizeIsBitStable(t *testing.T) {
	raw := WeightVector{}
	for i, v := range []float64{0.1, 0.7, 1.3, 0.9, 1.4, 0.3, 2.2, 0.05} {
		raw[string(rune('a'+i))] = v
	}
	first := raw.Normalize()
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, raw.Normalize())
	}
}

func TestNormalizeIgnoresUnusableEntries(t *testing.T) {
	w := WeightVector{"a": math.Inf(1), "b": math.NaN(), "c": -1, "d": 2}.Normalize()
	assert.Equal(t, WeightVector{"a": 0, "b": 0, "c": 0, "d": 1}, w)

	equal := WeightVector{"a": 0, "b": 0}.Normalize()
	assert.Equal(t, WeightVector{"a": 0.5, "b": 0.5}, equal)
}

func TestSeriesValidateRejectsBadCloses(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		s := Series{Symbol: "X", Candles: []Candle{
			{Timestamp: day, Open: 10, High: 10, Low: 10, Close: 10},
			{Timestamp: day.AddDate(0, 0, 1), Open: 10, High: 10, Low: 10, Close: bad},
		}}
		err := s.Validate()
		assert.True(t, errors.Is(err, errors.ErrConfigInvalid), "close %v", bad)
	}
}
