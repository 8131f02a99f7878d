package pipeline

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateStats(t *testing.T) {
	mc := NewMetricsCalculator(&logging.NoOpLogger{})

	assert.Nil(t, mc.CalculateStats(nil))

	stats := mc.CalculateStats([]float64{4, 1, 3, 2, 5})
	require.NotNil(t, stats)
	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 1.0, stats.Min)
	assert.Equal(t, 5.0, stats.Max)
	assert.Equal(t, 3.0, stats.Mean)
	assert.Equal(t, 3.0, stats.Median)
	assert.Equal(t, 5.0, stats.P95)
	assert.InDelta(t, math.Sqrt(2), stats.StdDev, 1e-12)

	single := mc.CalculateStats([]float64{7})
	assert.Equal(t, 7.0, single.Median)
	assert.Equal(t, 7.0, single.P95)
	assert.Equal(t, 0.0, single.StdDev)

	// empirical quantiles return sample values, never interpolations
	even := mc.CalculateStats([]float64{10, 40, 20, 30})
	assert.Equal(t, 20.0, even.Median)
	assert.Equal(t, 40.0, even.P95)
}

func TestCalculateStatsDropsNonFinite(t *testing.T) {
	stats := NewMetricsCalculator(nil).CalculateStats([]float64{1, math.Inf(1)})
	require.NotNil(t, stats)
	assert.Equal(t, 0.0, stats.Max)
	assert.Equal(t, 0.0, stats.Mean)
	assert.Equal(t, 1.0, stats.Min)
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{soundscape.NewConfigurationError("bad", nil), "configuration"},
		{soundscape.NewInputResolutionError("/x", "missing", nil), "input"},
		{soundscape.NewRecordingIOError("/x", "corrupt", nil), "io"},
		{soundscape.NewDataFormatError("/x", "no timestamp", nil), "format"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizeError(tt.err))
	}
}

func TestParseFailurePolicy(t *testing.T) {
	p, err := ParseFailurePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicySkip, p)

	p, err = ParseFailurePolicy(" ABORT ")
	require.NoError(t, err)
	assert.Equal(t, PolicyAbort, p)

	_, err = ParseFailurePolicy("retry")
	assert.True(t, soundscape.IsKind(err, soundscape.KindConfiguration))
}
