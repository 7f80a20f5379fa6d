package cli

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"stock-analysis/internal/models"
)

// For any non-negative weights, FormatWeights lists every key once, in
// order, with percentages that sum to about 100.
func TestProperty_WeightsFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatWeights lists normalized weights in key order", prop.ForAll(
		func(raw []float64) bool {
			in := make(map[string]float64, len(raw))
			for i, w := range raw {
				in[string(rune('A'+i))] = w
			}
			w, err := models.NewWeightVector(in)
			if err != nil {
				return false
			}

			parts := strings.Split(FormatWeights(w), ", ")
			if len(parts) != len(raw) {
				t.Logf("expected %d entries, got %q", len(raw), FormatWeights(w))
				return false
			}

			total := 0.0
			for i, part := range parts {
				name, pct, ok := strings.Cut(part, "=")
				if !ok || name != string(rune('A'+i)) || !strings.HasSuffix(pct, "%") {
					t.Logf("bad entry %q", part)
					return false
				}
				v, err := strconv.ParseFloat(strings.TrimSuffix(pct, "%"), 64)
				if err != nil {
					return false
				}
				total += v
			}
			return math.Abs(total-100) <= 0.01*float64(len(raw))
		},
		gen.SliceOfN(5, gen.Float64Range(0, 10)),
	))

	properties.TestingRun(t)
}

// Every rendered table line starts each column at the same offset.
func TestProperty_TableAlignment(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("columns line up across rows", prop.ForAll(
		func(cells []string) bool {
			var buf bytes.Buffer
			out := &Output{writer: &buf, colorEnabled: true}

			table := NewTable(out, "NAME", "VALUE")
			for _, c := range cells {
				table.AddRow(c, out.ColoredString(ColorGreen, "x"))
			}
			table.Render()

			width := len("NAME")
			for _, c := range cells {
				if len(c) > width {
					width = len(c)
				}
			}

			lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
			if len(lines) != len(cells)+2 {
				return false
			}
			for i, line := range lines {
				plain := stripANSI(line)
				if i == 1 {
					if plain != strings.Repeat("-", width)+"--"+strings.Repeat("-", len("VALUE")) {
						t.Logf("bad separator %q", plain)
						return false
					}
					continue
				}
				if len(plain) < width+2 || plain[width:width+2] != "  " {
					t.Logf("misaligned line %q", plain)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestFormatRatioUndefined(t *testing.T) {
	assert.Equal(t, "n/a", FormatRatioPercent(models.UndefinedRatio()))
	assert.Equal(t, "+12.50%", FormatRatioPercent(models.DefinedRatio(0.125)))
	assert.Equal(t, "25.00%", FormatWeight(0.25))
	assert.Equal(t, "67%", FormatConfidence(0.666))
}

func TestParseWeights(t *testing.T) {
	w, err := parseWeights("aapl=0.6, MSFT:40")
	assert.NoError(t, err)
	assert.Equal(t, map[string]float64{"AAPL": 0.6, "MSFT": 40}, w)

	_, err = parseWeights("AAPL")
	assert.Error(t, err)
	_, err = parseWeights("AAPL=lots")
	assert.Error(t, err)
	_, err = parseWeights(" , ")
	assert.Error(t, err)
}
