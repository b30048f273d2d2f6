package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurveNormalize(t *testing.T) {
	curve := Curve{{0, 0}, {10, 0.9}, {15, 1}}

	cases := []struct {
		raw  float64
		want float64
	}{
		{-5, 0},    // below range clamps to first score
		{0, 0},     // exact first breakpoint
		{5, 0.45},  // linear interpolation on the first segment
		{10, 0.9},  // exact middle breakpoint
		{12, 0.94}, // interpolation on the second segment
		{15, 1},    // exact last breakpoint
		{100, 1},   // above range clamps to last score
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, curve.Normalize(tc.raw), 1e-9, "raw=%v", tc.raw)
	}
}

func TestCurveNormalizeEdgeShapes(t *testing.T) {
	assert.Zero(t, Curve{}.Normalize(5), "empty curve yields 0")

	single := Curve{{3, 0.5}}
	assert.Equal(t, 0.5, single.Normalize(0))
	assert.Equal(t, 0.5, single.Normalize(10))

	// A vertical step (two breakpoints at the same raw) resolves to the
	// upper score rather than dividing by zero.
	step := Curve{{0, 0}, {1, 0.2}, {1, 0.8}, {2, 1}}
	assert.Equal(t, 0.8, step.Normalize(1))
}

func TestCurveValidate(t *testing.T) {
	require.NoError(t, Curve{{0, 0}, {5, 0.5}, {10, 1}}.Validate())

	assert.Error(t, Curve{}.Validate(), "empty")
	assert.Error(t, Curve{{5, 0.5}, {0, 0}}.Validate(), "unsorted")
	assert.Error(t, Curve{{0, 0.8}, {5, 0.2}}.Validate(), "not monotone")
	assert.Error(t, Curve{{0, 0}, {5, 1.5}}.Validate(), "score above 1")
	assert.Error(t, Curve{{0, -0.2}, {5, 1}}.Validate(), "score below 0")
}

func TestDefaultCurvesAreValid(t *testing.T) {
	curves := DefaultCurves()
	require.NotEmpty(t, curves)
	for key, curve := range curves {
		assert.NoError(t, curve.Validate(), "curve %q", key)
	}

	// Every curve key the factor table references must be present.
	for _, spec := range componentTable {
		for _, f := range spec.factors {
			_, ok := curves[f.curveKey]
			assert.True(t, ok, "factor %s references missing curve %q", f.name, f.curveKey)
		}
	}
}
