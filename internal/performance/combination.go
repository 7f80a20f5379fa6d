package performance

import (
	"fmt"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/workers"
)

// CombinationConfig controls the optimal combination search.
type CombinationConfig struct {
	CorrelationPenalty float64 `json:"correlation_penalty" yaml:"correlation_penalty"`
	MaxSubsets         int     `json:"max_subsets" yaml:"max_subsets"`
}

// DefaultCombinationConfig returns the default search settings.
func DefaultCombinationConfig() CombinationConfig {
	return CombinationConfig{
		CorrelationPenalty: 0.5,
		MaxSubsets:         200000,
	}
}

// Combination is the best strategy subset found.
type Combination struct {
	Strategies      []string            `json:"strategies" yaml:"strategies"`
	Weights         models.WeightVector `json:"weights" yaml:"weights"`
	SharpeRatio     float64             `json:"sharpe_ratio" yaml:"sharpe_ratio"`
	MeanCorrelation float64             `json:"mean_correlation" yaml:"mean_correlation"`
	Score           float64             `json:"score" yaml:"score"`
	Evaluated       int                 `json:"evaluated" yaml:"evaluated"`
}

type subsetScore struct {
	weights models.WeightVector
	sharpe  models.Ratio
	meanCor float64
	score   float64
}

// FindOptimalCombination scores every subset of 1..maxStrategies strategies
// by the Sharpe ratio of their weighted combined returns minus a penalty
// on mean pairwise correlation, and returns the best one. Members are
// weighted by their positive Sharpe ratio, or equally when none is
// positive.
func (a *Analyzer) FindOptimalCombination(logs map[string]models.TradeLog, maxStrategies int, cfg CombinationConfig) (*Combination, error) {
	names := sortedNames(logs)
	if len(names) == 0 {
		return nil, errors.NewInsufficientDataError("strategies", 1, 0)
	}
	if maxStrategies < 1 {
		return nil, errors.NewConfigurationError("max_strategies", maxStrategies, "must be at least 1")
	}
	if cfg.CorrelationPenalty < 0 {
		return nil, errors.NewConfigurationError("correlation_penalty", cfg.CorrelationPenalty, "must be non-negative")
	}
	if maxStrategies > len(names) {
		maxStrategies = len(names)
	}

	limit := cfg.MaxSubsets
	if limit <= 0 {
		limit = DefaultCombinationConfig().MaxSubsets
	}
	if count := subsetCount(len(names), maxStrategies, limit); count > limit {
		return nil, errors.NewConfigurationError("max_strategies", maxStrategies,
			fmt.Sprintf("more than %d subsets of %d strategies", limit, len(names)))
	}

	returns := make([]datedReturns, len(names))
	sharpes := make([]models.Ratio, len(names))
	days := a.tradingDays()
	for i, name := range names {
		returns[i] = returnsByDate(logs[name])
		sharpes[i] = a.Analyze(logs[name]).SharpeRatio
	}
	corr := correlationOf(names, returns)

	subsets := enumerateSubsets(len(names), maxStrategies)
	scores := make([]subsetScore, len(subsets))

	workers.ForEach(a.Workers, len(subsets), func(s int) {
		members := subsets[s]
		raw := make(map[string]float64, len(members))
		series := make([]datedReturns, len(members))
		memberNames := make([]string, len(members))
		for k, idx := range members {
			memberNames[k] = names[idx]
			series[k] = returns[idx]
			if sharpes[idx].Defined && sharpes[idx].Value > 0 {
				raw[names[idx]] = sharpes[idx].Value
			} else {
				raw[names[idx]] = 0
			}
		}
		weights := models.WeightVector(raw).Normalize()

		aligned := align(series...)
		combined := make([]float64, len(aligned[0]))
		for k, name := range memberNames {
			w := weights[name]
			for t, r := range aligned[k] {
				combined[t] += w * r
			}
		}

		sharpe := SharpeRatio(combined, a.RiskFreeRate, days)
		meanCor := corr.MeanPairwise(memberNames)
		scores[s] = subsetScore{
			weights: weights,
			sharpe:  sharpe,
			meanCor: meanCor,
			score:   sharpe.Value - cfg.CorrelationPenalty*meanCor,
		}
	})

	best := -1
	for s, sc := range scores {
		if !sc.sharpe.Defined {
			continue
		}
		if best < 0 || sc.score > scores[best].score {
			best = s
		}
	}
	if best < 0 {
		return nil, errors.NewNumericDegenerateError("combination_sharpe", "no subset has a defined Sharpe ratio")
	}

	chosen := make([]string, len(subsets[best]))
	for k, idx := range subsets[best] {
		chosen[k] = names[idx]
	}

	a.logger.Debug().
		Strs("strategies", chosen).
		Float64("score", scores[best].score).
		Int("evaluated", len(subsets)).
		Msg("Optimal combination found")

	return &Combination{
		Strategies:      chosen,
		Weights:         scores[best].weights,
		SharpeRatio:     scores[best].sharpe.Value,
		MeanCorrelation: scores[best].meanCor,
		Score:           scores[best].score,
		Evaluated:       len(subsets),
	}, nil
}

// subsetCount returns sum_{k=1..maxK} C(n, k), stopping once it exceeds limit.
func subsetCount(n, maxK, limit int) int {
	total := 0
	c := 1
	for k := 1; k <= maxK; k++ {
		c = c * (n - k + 1) / k
		total += c
		if total > limit {
			return total
		}
	}
	return total
}

// enumerateSubsets lists index subsets by size, then lexicographically.
func enumerateSubsets(n, maxK int) [][]int {
	var out [][]int
	for k := 1; k <= maxK; k++ {
		idx := make([]int, k)
		for i := range idx {
			idx[i] = i
		}
		for {
			subset := make([]int, k)
			copy(subset, idx)
			out = append(out, subset)

			i := k - 1
			for i >= 0 && idx[i] == n-k+i {
				i--
			}
			if i < 0 {
				break
			}
			idx[i]++
			for j := i + 1; j < k; j++ {
				idx[j] = idx[j-1] + 1
			}
		}
	}
	return out
}
