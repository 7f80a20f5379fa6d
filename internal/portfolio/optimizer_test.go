package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/errors"
)

func seeded(seed uint64) *Optimizer {
	o := NewOptimizer()
	o.Seed = seed
	o.Samples = 4000
	return o
}

func alternating(n int, mean, swing float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = mean + swing
		} else {
			out[i] = mean - swing
		}
	}
	return out
}

func negate(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = -v
	}
	return out
}

func threeAssets() History {
	n := 120
	c := make([]float64, n)
	for i := range c {
		c[i] = 0.0004 + 0.012*math.Sin(float64(i)*0.7)
	}
	return History{
		"AAA": alternating(n, 0.0010, 0.015),
		"BBB": alternating(n, 0.0002, 0.004),
		"CCC": c,
	}
}

func TestEstimateInputs(t *testing.T) {
	in, err := EstimateInputs([]string{"A", "B"}, History{
		"A": {0.01, 0.03},
		"B": {0.02, 0.02},
	}, 252)
	require.NoError(t, err)

	assert.InDelta(t, 0.02*252, in.Mean[0], 1e-12)
	assert.InDelta(t, 0.02*252, in.Mean[1], 1e-12)
	assert.InDelta(t, 0.0002*252, in.Covariance.At(0, 0), 1e-12)
	assert.InDelta(t, 0, in.Covariance.At(1, 1), 1e-12)
	assert.InDelta(t, 0, in.Covariance.At(0, 1), 1e-12)
	assert.Equal(t, 2, in.Observations)

	assert.InDelta(t, 0.02*252, in.Return([]float64{0.5, 0.5}), 1e-12)
	assert.InDelta(t, 0.25*0.0002*252, in.Variance([]float64{0.5, 0.5}), 1e-12)
}

func TestEstimateInputsRejectsBadHistory(t *testing.T) {
	tests := []struct {
		name    string
		assets  []string
		history History
		target  error
	}{
		{"no assets", nil, History{}, errors.ErrConfigInvalid},
		{"unknown asset", []string{"X"}, History{"A": {0.1, 0.2}}, errors.ErrConfigInvalid},
		{"duplicate asset", []string{"A", "A"}, History{"A": {0.1, 0.2}}, errors.ErrConfigInvalid},
		{"length mismatch", []string{"A", "B"}, History{"A": {0.1, 0.2}, "B": {0.1}}, errors.ErrConfigInvalid},
		{"nan", []string{"A"}, History{"A": {0.1, math.NaN()}}, errors.ErrConfigInvalid},
		{"one observation", []string{"A"}, History{"A": {0.1}}, errors.ErrInsufficientData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EstimateInputs(tt.assets, tt.history, 252)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

// Two perfectly anti-correlated assets with equal volatility hedge each
// other best at half and half.
func TestMinimizeVarianceHedge(t *testing.T) {
	a := alternating(60, 0, 0.02)
	history := History{"A": a, "B": negate(a)}

	res, err := seeded(11).MinimizeVariance([]string{"A", "B"}, history)
	require.NoError(t, err)

	assert.Equal(t, ObjectiveMinVariance, res.Objective)
	assert.InDelta(t, 0.5, res.Weights["A"], 0.01)
	assert.InDelta(t, 0.5, res.Weights["B"], 0.01)
	assert.InDelta(t, 0, res.Volatility, 1e-3)
	assert.InDelta(t, 1, res.Weights.Sum(), 1e-9)
}

func TestMaximizeSharpePrefersDominantAsset(t *testing.T) {
	n := 100
	b := make([]float64, n)
	for i := range b {
		b[i] = -0.001 + 0.01*math.Sin(float64(i))
	}
	history := History{"GOOD": alternating(n, 0.002, 0.001), "BAD": b}

	res, err := seeded(3).MaximizeSharpe([]string{"GOOD", "BAD"}, history, 0.02)
	require.NoError(t, err)
	assert.Greater(t, res.Weights["GOOD"], 0.9)
	require.True(t, res.SharpeRatio.Defined)
	assert.Greater(t, res.SharpeRatio.Value, 0.0)
}

func TestMaximizeSharpeDegenerate(t *testing.T) {
	history := History{"A": {0.01, 0.01, 0.01}, "B": {0.02, 0.02, 0.02}}
	_, err := seeded(1).MaximizeSharpe([]string{"A", "B"}, history, 0.02)
	assert.True(t, errors.Is(err, errors.ErrNumericDegenerate))
}

func TestOptimizerIsReproducible(t *testing.T) {
	assets := []string{"AAA", "BBB", "CCC"}
	history := threeAssets()

	o := seeded(42)
	o.Workers = 1
	first, err := o.MaximizeSharpe(assets, history, 0.02)
	require.NoError(t, err)

	o.Workers = 8
	second, err := o.MaximizeSharpe(assets, history, 0.02)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := seeded(43).MaximizeSharpe(assets, history, 0.02)
	require.NoError(t, err)
	assert.NotEqual(t, first.Weights, other.Weights)
	assert.Equal(t, 4000+len(assets)+1, first.Samples)
}

func TestTargetReturn(t *testing.T) {
	assets := []string{"AAA", "BBB", "CCC"}
	history := threeAssets()
	o := seeded(5)

	target := 0.15
	res, err := o.TargetReturn(assets, history, target)
	require.NoError(t, err)
	assert.Equal(t, ObjectiveTargetReturn, res.Objective)
	assert.InDelta(t, target, res.ExpectedReturn, o.TargetTolerance*16)

	_, err = o.TargetReturn(assets, history, 5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInfeasibleTarget))

	var infeasible *errors.InfeasibleTargetError
	require.True(t, errors.As(err, &infeasible))
	assert.Less(t, infeasible.MaxReturn, 5.0)
	assert.LessOrEqual(t, infeasible.MinReturn, infeasible.MaxReturn)
}

func TestEfficientFrontier(t *testing.T) {
	assets := []string{"AAA", "BBB", "CCC"}
	points, err := seeded(9).EfficientFrontier(assets, threeAssets(), 6)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(points), 2)

	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].TargetReturn, points[i-1].TargetReturn)
	}
	for _, p := range points {
		assert.InDelta(t, 1, p.Weights.Sum(), 1e-9)
	}

	minVar, err := seeded(9).MinimizeVariance(assets, threeAssets())
	require.NoError(t, err)
	assert.InDelta(t, minVar.ExpectedReturn, points[0].TargetReturn, 1e-12)

	_, err = seeded(9).EfficientFrontier(assets, threeAssets(), 1)
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}

func TestSingleAsset(t *testing.T) {
	res, err := seeded(2).MinimizeVariance([]string{"A"}, History{"A": alternating(10, 0.001, 0.01)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Weights["A"])
}

func TestOptimizerValidate(t *testing.T) {
	o := NewOptimizer()
	o.Samples = 0
	_, err := o.MinimizeVariance([]string{"A"}, History{"A": {0.1, 0.2}})
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}
