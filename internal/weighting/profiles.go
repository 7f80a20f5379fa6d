// Package weighting combines per-strategy signals into one weighted
// consensus per symbol.
package weighting

import (
	"fmt"
	"sort"
	"strings"

	"stock-analysis/internal/errors"
	"stock-analysis/internal/models"
	"stock-analysis/internal/strategies"
)

// Profile names a preset strategy weighting.
type Profile string

const (
	ProfileConservative Profile = "conservative"
	ProfileBalanced     Profile = "balanced"
	ProfileAggressive   Profile = "aggressive"
	ProfileGrowth       Profile = "growth"
	ProfileValue        Profile = "value"
	ProfileCatalyst     Profile = "catalyst"

	// ProfileCustom marks weights set through SetCustomWeights.
	ProfileCustom Profile = "custom"
)

type preset struct {
	description string
	weights     map[string]float64
}

var presets = map[Profile]preset{
	ProfileConservative: {
		description: "favours mean reversion and slow trend confirmation",
		weights: map[string]float64{
			strategies.NameSMACrossover:       0.25,
			strategies.NameMACDCrossover:      0.10,
			strategies.NameRSIReversion:       0.25,
			strategies.NameBollingerReversion: 0.25,
			strategies.NameBreakout:           0.05,
			strategies.NameMomentum:           0.10,
		},
	},
	ProfileBalanced: {
		description: "equal say for every strategy",
		weights: map[string]float64{
			strategies.NameSMACrossover:       1,
			strategies.NameMACDCrossover:      1,
			strategies.NameRSIReversion:       1,
			strategies.NameBollingerReversion: 1,
			strategies.NameBreakout:           1,
			strategies.NameMomentum:           1,
		},
	},
	ProfileAggressive: {
		description: "chases breakouts and momentum",
		weights: map[string]float64{
			strategies.NameSMACrossover:       0.10,
			strategies.NameMACDCrossover:      0.20,
			strategies.NameRSIReversion:       0.05,
			strategies.NameBollingerReversion: 0.05,
			strategies.NameBreakout:           0.30,
			strategies.NameMomentum:           0.30,
		},
	},
	ProfileGrowth: {
		description: "rides established trends",
		weights: map[string]float64{
			strategies.NameSMACrossover:       0.25,
			strategies.NameMACDCrossover:      0.25,
			strategies.NameRSIReversion:       0.05,
			strategies.NameBollingerReversion: 0.05,
			strategies.NameBreakout:           0.15,
			strategies.NameMomentum:           0.25,
		},
	},
	ProfileValue: {
		description: "buys weakness, sells strength",
		weights: map[string]float64{
			strategies.NameSMACrossover:       0.10,
			strategies.NameMACDCrossover:      0.05,
			strategies.NameRSIReversion:       0.35,
			strategies.NameBollingerReversion: 0.35,
			strategies.NameBreakout:           0.05,
			strategies.NameMomentum:           0.10,
		},
	},
	ProfileCatalyst: {
		description: "reacts to sharp range expansions",
		weights: map[string]float64{
			strategies.NameSMACrossover:       0.05,
			strategies.NameMACDCrossover:      0.15,
			strategies.NameRSIReversion:       0.05,
			strategies.NameBollingerReversion: 0.05,
			strategies.NameBreakout:           0.40,
			strategies.NameMomentum:           0.30,
		},
	},
}

// Profiles returns the preset profiles in sorted order.
func Profiles() []Profile {
	out := make([]Profile, 0, len(presets))
	for p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseProfile resolves a profile name, case-insensitively.
func ParseProfile(name string) (Profile, error) {
	p := Profile(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := presets[p]; !ok {
		return "", errors.NewConfigurationError("profile", name, fmt.Sprintf("unknown profile (available: %v)", Profiles()))
	}
	return p, nil
}

// Weights returns the normalized preset weights. Custom or unknown profiles
// have none.
func (p Profile) Weights() models.WeightVector {
	pr, ok := presets[p]
	if !ok {
		return models.WeightVector{}
	}
	return models.WeightVector(pr.weights).Normalize()
}

// Description is a one-line summary for listings.
func (p Profile) Description() string {
	if p == ProfileCustom {
		return "user supplied weights"
	}
	return presets[p].description
}

func (p Profile) String() string {
	return string(p)
}
