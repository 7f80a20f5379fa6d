package models

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// WeightVector maps a strategy id or asset symbol to a weight in [0, 1].
type WeightVector map[string]float64

// NewWeightVector validates raw weights and returns them normalized.
func NewWeightVector(raw map[string]float64) (WeightVector, error) {
	for k, w := range raw {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return nil, fmt.Errorf("weight for %q must be a non-negative finite number, got %v", k, w)
		}
	}
	return WeightVector(raw).Normalize(), nil
}

// Normalize returns a copy whose weights sum to 1. Negative and
// non-finite entries are treated as zero; an all-zero vector falls back to
// equal weights. Weights are summed in key order, scaled by the largest
// weight, so the result is bit-identical across calls and never overflows.
func (w WeightVector) Normalize() WeightVector {
	out := make(WeightVector, len(w))
	if len(w) == 0 {
		return out
	}
	keys := w.Keys()

	var largest float64
	for _, k := range keys {
		if v := w[k]; usableWeight(v) && v > largest {
			largest = v
		}
	}

	if largest == 0 {
		equal := 1 / float64(len(w))
		for _, k := range keys {
			out[k] = equal
		}
		return out
	}

	var total float64
	for _, k := range keys {
		if v := w[k]; usableWeight(v) {
			total += v / largest
		}
	}
	for _, k := range keys {
		if v := w[k]; usableWeight(v) {
			out[k] = (v / largest) / total
		} else {
			out[k] = 0
		}
	}
	return out
}

func usableWeight(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Sum returns the total weight, added in key order.
func (w WeightVector) Sum() float64 {
	var total float64
	for _, k := range w.Keys() {
		total += w[k]
	}
	return total
}

// Keys returns the keys in sorted order.
func (w WeightVector) Keys() []string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the weight for key, or 0 when absent.
func (w WeightVector) Get(key string) float64 {
	return w[key]
}

// Clone returns a copy.
func (w WeightVector) Clone() WeightVector {
	out := make(WeightVector, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}

// Ratio is a ratio metric that may be undefined (zero denominator).
// Undefined ratios are never coerced to zero or infinity.
type Ratio struct {
	Value   float64
	Defined bool
}

// DefinedRatio wraps a computed value.
func DefinedRatio(v float64) Ratio {
	return Ratio{Value: v, Defined: true}
}

// UndefinedRatio returns the undefined sentinel.
func UndefinedRatio() Ratio {
	return Ratio{}
}

// String formats the ratio with two decimals, or "n/a".
func (r Ratio) String() string {
	if !r.Defined {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", r.Value)
}

// MarshalJSON encodes undefined ratios as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON decodes null as undefined.
func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = UndefinedRatio()
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = DefinedRatio(v)
	return nil
}

// MarshalYAML encodes undefined ratios as null.
func (r Ratio) MarshalYAML() (interface{}, error) {
	if !r.Defined {
		return nil, nil
	}
	return r.Value, nil
}
