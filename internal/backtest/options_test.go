package backtest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-analysis/internal/errors"
)

func TestParseOptionsAppliesOverridesOnDefaults(t *testing.T) {
	opts, err := ParseOptions(map[string]interface{}{
		"initial_capital":       50000,
		"stop_loss":             "0.08",
		"trailing_stop":         true,
		"partial_profit_taking": true,
		"profit_levels":         `[{"profit_threshold":0.1,"sell_fraction":0.5},{"profit_threshold":0.25,"sell_fraction":1}]`,
	})
	require.NoError(t, err)

	assert.Equal(t, 50000.0, opts.InitialCapital)
	assert.Equal(t, 0.08, opts.StopLoss)
	assert.True(t, opts.TrailingStop)
	assert.Equal(t, 0.10, opts.PositionSize)
	assert.Equal(t, 0.10, opts.TrailingStopDistance)
	assert.True(t, opts.CloseAtEnd)
	require.Equal(t, 2, opts.ProfitLevels.Len())
	assert.Equal(t, ProfitLevel{Threshold: 0.25, Fraction: 1}, opts.ProfitLevels.Level(1))
}

func TestParseOptionsAcceptsLevelMaps(t *testing.T) {
	opts, err := ParseOptions(map[string]interface{}{
		"partial_profit_taking": true,
		"profit_levels": []map[string]interface{}{
			{"profit_threshold": 0.1, "sell_fraction": 0.25},
			{"profit_threshold": int64(1), "sell_fraction": 1},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []ProfitLevel{{0.1, 0.25}, {1, 1}}, opts.ProfitLevels.Levels())

	opts, err = ParseOptions(map[string]interface{}{
		"profit_levels": []interface{}{
			map[string]interface{}{"profit_threshold": 0.05, "sell_fraction": 0.5},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, opts.ProfitLevels.Len())
}

func TestParseOptionsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{"descending levels", map[string]interface{}{
			"profit_levels": `[{"profit_threshold":0.2,"sell_fraction":0.5},{"profit_threshold":0.1,"sell_fraction":0.5}]`,
		}},
		{"fraction above one", map[string]interface{}{
			"profit_levels": `[{"profit_threshold":0.2,"sell_fraction":1.5}]`,
		}},
		{"malformed json", map[string]interface{}{"profit_levels": `[{`}},
		{"unknown key", map[string]interface{}{"stoploss": 0.1}},
		{"partial without levels", map[string]interface{}{"partial_profit_taking": true}},
		{"negative capital", map[string]interface{}{"initial_capital": -1}},
		{"stop loss of one", map[string]interface{}{"stop_loss": 1.0}},
		{"zero trailing distance", map[string]interface{}{"trailing_stop_distance": 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOptions(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfigInvalid), "got %v", err)
		})
	}
}

func TestProfitLadderIsImmutable(t *testing.T) {
	levels := []ProfitLevel{{0.1, 0.5}}
	ladder, err := NewProfitLadder(levels)
	require.NoError(t, err)

	levels[0].Fraction = 0.9
	assert.Equal(t, 0.5, ladder.Level(0).Fraction)

	copied := ladder.Levels()
	copied[0].Threshold = 5
	assert.Equal(t, 0.1, ladder.Level(0).Threshold)
}

func TestOptionsJSONRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.ProfitLevels = MustProfitLadder(ProfitLevel{0.1, 0.5})

	data, err := json.Marshal(opts)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"profit_levels":[{"profit_threshold":0.1,"sell_fraction":0.5}]`)

	var decoded Options
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, opts, decoded)
}

func TestEmptyLadderMatchesDefaults(t *testing.T) {
	for _, levels := range [][]ProfitLevel{nil, {}} {
		ladder, err := NewProfitLadder(levels)
		require.NoError(t, err)
		assert.Equal(t, ProfitLadder{}, ladder)
	}

	opts, err := ParseOptions(map[string]interface{}{"profit_levels": []interface{}{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions(), opts)

	var decoded Options
	b, err := json.Marshal(DefaultOptions())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, DefaultOptions(), decoded)
}
