package soundscape

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByHourScenario(t *testing.T) {
	axis := []float64{0, 500, 1000}
	rows := []DensityRow{
		{ID: "a.wav", Hour: 8, FreqAxis: axis, Values: []float64{0.0, 0.5, 1.0}},
		{ID: "b.wav", Hour: 8, FreqAxis: axis, Values: []float64{0.2, 0.5, 0.8}},
		{ID: "c.wav", Hour: 14, FreqAxis: axis, Values: []float64{1.0, 1.0, 1.0}},
	}

	m, err := GroupByHour(rows)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, []int{8, 14}, m.Hours)
	assert.Equal(t, axis, m.FreqAxis)
	assert.Equal(t, []int{2, 1}, m.Counts)

	row08, ok := m.Row(8)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0.1, 0.5, 0.9}, row08, 1e-12)

	row14, ok := m.Row(14)
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{1, 1, 1}, row14, 1e-12)

	_, ok = m.Row(9)
	assert.False(t, ok)
}

func TestGroupByHourPermutationInvariant(t *testing.T) {
	axis := []float64{0, 1, 2, 3}
	rng := rand.New(rand.NewSource(7))

	var rows []DensityRow
	for i := range 40 {
		values := make([]float64, len(axis))
		for j := range values {
			values[j] = rng.Float64()
		}
		rows = append(rows, DensityRow{
			ID:       string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Hour:     rng.Intn(24),
			FreqAxis: axis,
			Values:   values,
		})
	}

	want, err := GroupByHour(rows)
	require.NoError(t, err)

	for range 10 {
		shuffled := append([]DensityRow(nil), rows...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := GroupByHour(shuffled)
		require.NoError(t, err)
		assert.Equal(t, want.Hours, got.Hours)
		assert.Equal(t, want.Values, got.Values)
	}
}

func TestGroupByHourCellsBounded(t *testing.T) {
	axis := []float64{0, 1}
	rows := []DensityRow{
		{ID: "x", Hour: 3, FreqAxis: axis, Values: []float64{1, 0}},
		{ID: "y", Hour: 3, FreqAxis: axis, Values: []float64{1, 0.25}},
		{ID: "z", Hour: 3, FreqAxis: axis, Values: []float64{1, 0.75}},
	}

	m, err := GroupByHour(rows)
	require.NoError(t, err)
	for _, row := range m.Values {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestGroupByHourMismatchedAxis(t *testing.T) {
	rows := []DensityRow{
		{ID: "a", Hour: 1, FreqAxis: []float64{0, 10}, Values: []float64{0, 0}},
		{ID: "b", Hour: 1, FreqAxis: []float64{0, 20}, Values: []float64{0, 0}},
	}

	_, err := GroupByHour(rows)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
}

func TestGroupByHourEmpty(t *testing.T) {
	m, err := GroupByHour(nil)
	require.NoError(t, err)
	assert.Empty(t, m.Hours)
}
