package performance

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"stock-analysis/internal/models"
)

// minCommonPoints is the minimum overlap for a pairwise correlation.
const minCommonPoints = 3

// Correlation is a symmetric matrix of pairwise return correlations.
type Correlation struct {
	Strategies []string         `json:"strategies" yaml:"strategies"`
	Values     [][]models.Ratio `json:"values" yaml:"values"`
}

// Get returns the correlation between two strategies, undefined when either
// is unknown.
func (c Correlation) Get(a, b string) models.Ratio {
	i, j := c.index(a), c.index(b)
	if i < 0 || j < 0 {
		return models.UndefinedRatio()
	}
	return c.Values[i][j]
}

func (c Correlation) index(name string) int {
	for i, s := range c.Strategies {
		if s == name {
			return i
		}
	}
	return -1
}

// MeanPairwise averages the defined off-diagonal correlations among names.
// A single strategy (or no defined pair) has mean 0.
func (c Correlation) MeanPairwise(names []string) float64 {
	var sum float64
	var n int
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if r := c.Get(names[i], names[j]); r.Defined {
				sum += r.Value
				n++
			}
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// datedReturns holds daily returns keyed by calendar date.
type datedReturns map[time.Time]float64

func returnsByDate(log models.TradeLog) datedReturns {
	curve := log.EquityCurve
	if len(curve) == 0 {
		curve = EquityCurveFromTrades(log)
	}
	out := make(datedReturns, len(curve))
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		out[models.Day(curve[i].Timestamp)] = curve[i].Equity/prev - 1
	}
	return out
}

// align returns the values of each series on the dates present in all of
// them, in date order.
func align(series ...datedReturns) [][]float64 {
	if len(series) == 0 {
		return nil
	}
	var dates []time.Time
	for d := range series[0] {
		common := true
		for _, s := range series[1:] {
			if _, ok := s[d]; !ok {
				common = false
				break
			}
		}
		if common {
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	out := make([][]float64, len(series))
	for k, s := range series {
		out[k] = make([]float64, len(dates))
		for i, d := range dates {
			out[k][i] = s[d]
		}
	}
	return out
}

func pearson(x, y []float64) models.Ratio {
	if len(x) < minCommonPoints {
		return models.UndefinedRatio()
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return models.UndefinedRatio()
	}
	return models.DefinedRatio(r)
}

// CorrelationMatrix computes pairwise Pearson correlations of the logs'
// daily returns, aligned per pair on common dates.
func (a *Analyzer) CorrelationMatrix(logs map[string]models.TradeLog) Correlation {
	names := sortedNames(logs)
	returns := make([]datedReturns, len(names))
	for i, name := range names {
		returns[i] = returnsByDate(logs[name])
	}
	return correlationOf(names, returns)
}

func correlationOf(names []string, returns []datedReturns) Correlation {
	n := len(names)
	values := make([][]models.Ratio, n)
	for i := range values {
		values[i] = make([]models.Ratio, n)
		values[i][i] = models.DefinedRatio(1)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			aligned := align(returns[i], returns[j])
			r := pearson(aligned[0], aligned[1])
			values[i][j] = r
			values[j][i] = r
		}
	}
	return Correlation{Strategies: names, Values: values}
}
