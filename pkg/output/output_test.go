package output

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMatrix() *soundscape.Matrix {
	return &soundscape.Matrix{
		Hours:    []int{0, 8, 14},
		FreqAxis: []float64{0, 93.75, 187.5, 281.25},
		Values: [][]float64{
			{0, 0.1, 0.0125, 1.0 / 3},
			{0.5, 0, 0.25, 0.75},
			{1, 0.015625, 0, 2.0 / 7},
		},
	}
}

func TestMatrixCSVRoundTrip(t *testing.T) {
	m := sampleMatrix()

	var buf bytes.Buffer
	require.NoError(t, WriteMatrixCSV(&buf, m, -1))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "hour,0,93.75,187.5,281.25", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "00,"))
	assert.True(t, strings.HasPrefix(lines[2], "08,"))

	got, err := ReadMatrixCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Hours, got.Hours)
	assert.Equal(t, m.FreqAxis, got.FreqAxis)
	assert.Equal(t, m.Values, got.Values)
}

func TestSaveAndLoadMatrix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "soundscape.csv")
	require.NoError(t, SaveMatrix(path, sampleMatrix(), -1))

	got, err := LoadMatrix(path)
	require.NoError(t, err)
	assert.Equal(t, sampleMatrix().Values, got.Values)
}

func TestReadMatrixCSVBlankCorner(t *testing.T) {
	in := ",0.0,93.75\n08,0.1,0.2\n"
	m, err := ReadMatrixCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []int{8}, m.Hours)
	assert.Equal(t, []float64{0, 93.75}, m.FreqAxis)
	assert.Equal(t, [][]float64{{0.1, 0.2}}, m.Values)
}

func TestReadMatrixCSVTimeHeader(t *testing.T) {
	// pandas groupby("time").mean().to_csv() layout
	in := "time,0.0,93.75\n08,0.1,0.2\n14,0.0,1.0\n"
	m, err := ReadMatrixCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []int{8, 14}, m.Hours)
	assert.Equal(t, []float64{0, 93.75}, m.FreqAxis)
	assert.Equal(t, [][]float64{{0.1, 0.2}, {0.0, 1.0}}, m.Values)

	m, err = ReadMatrixCSV(strings.NewReader("Time,1\n8,0.5\n"))
	require.NoError(t, err)
	assert.Equal(t, []int{8}, m.Hours)
}

func TestPartialPath(t *testing.T) {
	assert.Equal(t, "graphical_soundscape.partial.csv", PartialPath("graphical_soundscape.csv"))
	assert.Equal(t, filepath.Join("out", "site.partial.png"), PartialPath(filepath.Join("out", "site.png")))
	assert.Equal(t, "matrix.partial", PartialPath("matrix"))
	assert.Equal(t, "site.partial.csv", PartialPath("site.partial.csv"))
}

func TestReadMatrixCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"no frequencies": "hour\n08\n",
		"bad corner":     "minute,1\n08,0.5\n",
		"bad frequency":  "hour,abc\n08,0.5\n",
		"bad hour":       "hour,1\nxx,0.5\n",
		"bad value":      "hour,1\n08,nope\n",
		"ragged":         "hour,1,2\n08,0.5\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadMatrixCSV(strings.NewReader(in))
			require.Error(t, err)
			assert.True(t, soundscape.IsKind(err, soundscape.KindDataFormat))
		})
	}
}

func TestLoadMatrixMissing(t *testing.T) {
	_, err := LoadMatrix(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.True(t, soundscape.IsKind(err, soundscape.KindInputResolution))
}

func TestLoadMatrixAttachesPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("hour,1\nxx,0.5\n"), 0o644))

	_, err := LoadMatrix(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestWriteMatrixCSVRejectsInconsistentShape(t *testing.T) {
	m := sampleMatrix()
	m.Values[1] = m.Values[1][:2]
	assert.Error(t, WriteMatrixCSV(&bytes.Buffer{}, m, -1))
}

func TestNewFormatter(t *testing.T) {
	for _, f := range []string{"json", "yaml", "yml", "csv", "table", "", "JSON"} {
		formatter, err := NewFormatter(f)
		require.NoError(t, err, f)
		assert.NotNil(t, formatter, f)
	}
	_, err := NewFormatter("xml")
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	type row struct {
		Name   string    `json:"name"`
		Value  float64   `json:"value"`
		Series []float64 `json:"series"`
		Hidden string    `json:"-"`
		Plain  int
	}

	got := Sanitize(map[string]any{
		"inf":  math.Inf(1),
		"nan":  math.NaN(),
		"ok":   1.5,
		"list": []any{math.Inf(-1), 2.0},
		"row":  &row{Name: "a", Value: math.NaN(), Series: []float64{1, math.Inf(1)}, Hidden: "x", Plain: 3},
	}).(map[string]any)

	assert.Equal(t, 0.0, got["inf"])
	assert.Equal(t, 0.0, got["nan"])
	assert.Equal(t, 1.5, got["ok"])
	assert.Equal(t, []any{0.0, 2.0}, got["list"])
	assert.Equal(t, map[string]any{
		"name":   "a",
		"value":  0.0,
		"series": []float64{1, 0},
		"Plain":  3,
	}, got["row"])

	assert.Nil(t, Sanitize((*row)(nil)))
}
