package portfolio

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distmv"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/workers"
)

// Objective names what an optimization maximizes or minimizes.
type Objective string

const (
	ObjectiveMaxSharpe    Objective = "max_sharpe"
	ObjectiveMinVariance  Objective = "min_variance"
	ObjectiveTargetReturn Objective = "target_return"
)

// sampleChunks is fixed so a seed reproduces the same cloud for any worker
// count.
const sampleChunks = 16

// OptimizationResult is the best portfolio found for one objective.
type OptimizationResult struct {
	Objective      Objective           `json:"objective" yaml:"objective"`
	Weights        models.WeightVector `json:"weights" yaml:"weights"`
	ExpectedReturn float64             `json:"expected_return" yaml:"expected_return"`
	Volatility     float64             `json:"volatility" yaml:"volatility"`
	SharpeRatio    models.Ratio        `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	Samples        int                 `json:"samples" yaml:"samples"`
	Seed           uint64              `json:"seed" yaml:"seed"`
}

// FrontierPoint is one point of the efficient frontier.
type FrontierPoint struct {
	TargetReturn       float64 `json:"target_return" yaml:"target_return"`
	OptimizationResult `yaml:",inline"`
}

// Optimizer searches random portfolios on the simplex.
type Optimizer struct {
	Samples         int     `mapstructure:"samples"`
	Seed            uint64  `mapstructure:"seed"` // 0 draws a fresh seed per call
	Workers         int     `mapstructure:"workers"`
	TargetTolerance float64 `mapstructure:"target_tolerance"` // absolute, annual return
	MaxWidenings    int     `mapstructure:"max_widenings"`
	TradingDays     int     `mapstructure:"trading_days"`
	RiskFreeRate    float64 `mapstructure:"risk_free_rate"` // used to report Sharpe for non-Sharpe objectives

	logger zerolog.Logger
}

// NewOptimizer returns an optimizer with default settings.
func NewOptimizer() *Optimizer {
	return &Optimizer{
		Samples:         10000,
		TargetTolerance: 0.005,
		MaxWidenings:    4,
		TradingDays:     252,
		RiskFreeRate:    0.02,
		logger:          zerolog.Nop(),
	}
}

// WithLogger sets the optimizer logger.
func (o *Optimizer) WithLogger(logger zerolog.Logger) *Optimizer {
	o.logger = logger
	return o
}

// Validate checks the optimizer settings.
func (o *Optimizer) Validate() error {
	if o.Samples < 1 {
		return errors.NewConfigurationError("samples", o.Samples, "must be at least 1")
	}
	if o.TargetTolerance <= 0 || math.IsNaN(o.TargetTolerance) {
		return errors.NewConfigurationError("target_tolerance", o.TargetTolerance, "must be positive")
	}
	if o.MaxWidenings < 0 {
		return errors.NewConfigurationError("max_widenings", o.MaxWidenings, "must not be negative")
	}
	if o.TradingDays < 1 {
		return errors.NewConfigurationError("trading_days", o.TradingDays, "must be positive")
	}
	return nil
}

// candidate is one sampled portfolio.
type candidate struct {
	weights  []float64
	ret      float64
	variance float64
}

func (c candidate) sharpe(rf float64) models.Ratio {
	if c.variance <= 0 {
		return models.UndefinedRatio()
	}
	return models.DefinedRatio((c.ret - rf) / math.Sqrt(c.variance))
}

// cloud is the sampled set of portfolios for one input estimate.
type cloud struct {
	inputs     *Inputs
	candidates []candidate
	seed       uint64
	rf         float64
}

// MaximizeSharpe returns the sampled portfolio with the highest Sharpe ratio.
func (o *Optimizer) MaximizeSharpe(assets []string, history History, riskFreeRate float64) (*OptimizationResult, error) {
	c, err := o.sample(assets, history)
	if err != nil {
		return nil, err
	}
	return c.maxSharpe(riskFreeRate)
}

// MinimizeVariance returns the sampled portfolio with the lowest variance.
func (o *Optimizer) MinimizeVariance(assets []string, history History) (*OptimizationResult, error) {
	c, err := o.sample(assets, history)
	if err != nil {
		return nil, err
	}
	return c.minVariance(), nil
}

// TargetReturn returns the lowest variance portfolio whose expected return
// lies within the tolerance band around target. The band doubles up to
// MaxWidenings times before the target is reported infeasible.
func (o *Optimizer) TargetReturn(assets []string, history History, target float64) (*OptimizationResult, error) {
	c, err := o.sample(assets, history)
	if err != nil {
		return nil, err
	}
	return c.target(target, o.TargetTolerance, o.MaxWidenings)
}

// EfficientFrontier solves TargetReturn over nPoints evenly spaced targets
// from the minimum variance portfolio's return to the highest sampled
// return. Targets without a qualifying portfolio are skipped.
func (o *Optimizer) EfficientFrontier(assets []string, history History, nPoints int) ([]FrontierPoint, error) {
	if nPoints < 2 {
		return nil, errors.NewConfigurationError("points", nPoints, "must be at least 2")
	}
	c, err := o.sample(assets, history)
	if err != nil {
		return nil, err
	}

	lo := c.minVariance().ExpectedReturn
	hi := lo
	for _, cand := range c.candidates {
		hi = math.Max(hi, cand.ret)
	}

	points := make([]FrontierPoint, 0, nPoints)
	for i := 0; i < nPoints; i++ {
		target := lo + (hi-lo)*float64(i)/float64(nPoints-1)
		res, err := c.target(target, o.TargetTolerance, o.MaxWidenings)
		if err != nil {
			o.logger.Debug().Err(err).Float64("target", target).Msg("Skipping frontier point")
			continue
		}
		points = append(points, FrontierPoint{TargetReturn: target, OptimizationResult: *res})
	}
	return points, nil
}

// sample estimates inputs and draws the candidate cloud: the pure asset
// corners, the equal weight portfolio, then Samples Dirichlet(1, ..., 1)
// draws, which are uniform on the simplex.
func (o *Optimizer) sample(assets []string, history History) (*cloud, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	inputs, err := EstimateInputs(assets, history, o.TradingDays)
	if err != nil {
		return nil, err
	}

	seed := o.Seed
	if seed == 0 {
		seed = rand.Uint64() | 1
	}

	n := len(inputs.Assets)
	fixed := make([]candidate, 0, n+1)
	for i := 0; i < n; i++ {
		w := make([]float64, n)
		w[i] = 1
		fixed = append(fixed, inputs.score(w))
	}
	equal := make([]float64, n)
	for i := range equal {
		equal[i] = 1 / float64(n)
	}
	fixed = append(fixed, inputs.score(equal))

	alpha := make([]float64, n)
	for i := range alpha {
		alpha[i] = 1
	}

	chunks := make([][]candidate, sampleChunks)
	workers.ForEach(o.Workers, sampleChunks, func(ci int) {
		size := o.Samples / sampleChunks
		if ci < o.Samples%sampleChunks {
			size++
		}
		if size == 0 {
			return
		}
		out := make([]candidate, size)
		if n == 1 {
			for k := range out {
				out[k] = inputs.score([]float64{1})
			}
			chunks[ci] = out
			return
		}
		dir := distmv.NewDirichlet(alpha, rand.NewPCG(seed, uint64(ci)))
		for k := range out {
			out[k] = inputs.score(dir.Rand(nil))
		}
		chunks[ci] = out
	})

	all := fixed
	for _, chunk := range chunks {
		all = append(all, chunk...)
	}

	o.logger.Debug().
		Int("assets", n).
		Int("candidates", len(all)).
		Uint64("seed", seed).
		Msg("Sampled portfolio cloud")

	return &cloud{inputs: inputs, candidates: all, seed: seed, rf: o.RiskFreeRate}, nil
}

func (in *Inputs) score(w []float64) candidate {
	return candidate{weights: w, ret: in.Return(w), variance: in.Variance(w)}
}

func (c *cloud) result(obj Objective, cand candidate, rf float64) *OptimizationResult {
	weights := make(models.WeightVector, len(cand.weights))
	for i, a := range c.inputs.Assets {
		weights[a] = cand.weights[i]
	}
	return &OptimizationResult{
		Objective:      obj,
		Weights:        weights,
		ExpectedReturn: cand.ret,
		Volatility:     math.Sqrt(cand.variance),
		SharpeRatio:    cand.sharpe(rf),
		Samples:        len(c.candidates),
		Seed:           c.seed,
	}
}

func (c *cloud) maxSharpe(rf float64) (*OptimizationResult, error) {
	best := -1
	var bestSharpe float64
	for i, cand := range c.candidates {
		s := cand.sharpe(rf)
		if !s.Defined {
			continue
		}
		if best < 0 || s.Value > bestSharpe {
			best, bestSharpe = i, s.Value
		}
	}
	if best < 0 {
		return nil, errors.NewNumericDegenerateError("sharpe_ratio", "every sampled portfolio has zero variance")
	}
	return c.result(ObjectiveMaxSharpe, c.candidates[best], rf), nil
}

func (c *cloud) minVariance() *OptimizationResult {
	best := 0
	for i, cand := range c.candidates {
		if cand.variance < c.candidates[best].variance {
			best = i
		}
	}
	return c.result(ObjectiveMinVariance, c.candidates[best], c.rf)
}

func (c *cloud) target(target, tolerance float64, widenings int) (*OptimizationResult, error) {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return nil, errors.NewConfigurationError("target_return", target, "must be finite")
	}
	tol := tolerance
	for attempt := 0; attempt <= widenings; attempt++ {
		best := -1
		for i, cand := range c.candidates {
			if math.Abs(cand.ret-target) > tol {
				continue
			}
			if best < 0 || cand.variance < c.candidates[best].variance {
				best = i
			}
		}
		if best >= 0 {
			return c.result(ObjectiveTargetReturn, c.candidates[best], c.rf), nil
		}
		tol *= 2
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, cand := range c.candidates {
		lo = math.Min(lo, cand.ret)
		hi = math.Max(hi, cand.ret)
	}
	return nil, errors.NewInfeasibleTargetError(target, lo, hi)
}

// String summarizes the result on one line.
func (r *OptimizationResult) String() string {
	return fmt.Sprintf("%s: return %.2f%%, volatility %.2f%%, sharpe %s", r.Objective, r.ExpectedReturn*100, r.Volatility*100, r.SharpeRatio)
}
