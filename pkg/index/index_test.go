package index

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RyanBlaney/graphical-soundscape/pkg/output"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	d, err := Cosine([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, d, 1e-12)

	d, err = Cosine([]float64{1, 2, 3}, []float64{2, 4, 6})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, d, 1e-12)

	_, err = Cosine([]float64{0, 0}, []float64{1, 1})
	assert.Error(t, err)
	_, err = Cosine([]float64{1}, []float64{1, 2})
	assert.Error(t, err)
}

func TestBrayCurtis(t *testing.T) {
	d, err := BrayCurtis([]float64{1, 2, 3}, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	// |1-3| + |0-1| = 3 over (4 + 1) = 5
	d, err = BrayCurtis([]float64{1, 0}, []float64{3, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, d, 1e-12)

	_, err = BrayCurtis([]float64{0}, []float64{0})
	assert.Error(t, err)
}

func TestDistanceByName(t *testing.T) {
	for _, name := range []string{"", "cosine", "braycurtis", "Bray-Curtis"} {
		_, err := DistanceByName(name)
		assert.NoError(t, err, name)
	}
	_, err := DistanceByName("euclidean")
	require.Error(t, err)
	assert.True(t, soundscape.IsKind(err, soundscape.KindConfiguration))
}

func TestTemplatesCompute(t *testing.T) {
	tpl := Templates{
		Forest:    []float64{1, 0, 0, 0},
		Grassland: []float64{0, 0, 0, 1},
	}

	v, err := tpl.Compute([]float64{1, 0, 0, 0}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	v, err = tpl.Compute([]float64{0, 0, 0, 1}, Cosine)
	require.NoError(t, err)
	assert.InDelta(t, -1.0, v, 1e-12)

	_, err = tpl.Compute([]float64{1, 0}, Cosine)
	assert.Error(t, err)
}

func TestReadColumn(t *testing.T) {
	in := "id,Forest,Grassland\n0,0.1,0.3\n1,0.2,0.4\n"
	v, err := ReadColumn(strings.NewReader(in), "Grassland")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 0.4}, v)

	_, err = ReadColumn(strings.NewReader(in), "Desert")
	assert.Error(t, err)
	_, err = ReadColumn(strings.NewReader("Forest\nabc\n"), "Forest")
	assert.Error(t, err)
	_, err = ReadColumn(strings.NewReader(""), "Forest")
	assert.Error(t, err)
}

func TestComputePathFileAndDirectory(t *testing.T) {
	dir := t.TempDir()

	forest := filepath.Join(dir, "forest.tpl")
	grass := filepath.Join(dir, "grass.tpl")
	require.NoError(t, os.WriteFile(forest, []byte("Forest\n1\n0\n0\n0\n"), 0o644))
	require.NoError(t, os.WriteFile(grass, []byte("Grassland\n0\n0\n0\n1\n"), 0o644))

	tpl, err := LoadTemplates(forest, "Forest", grass, "Grassland")
	require.NoError(t, err)

	graphs := filepath.Join(dir, "graphs")
	require.NoError(t, os.MkdirAll(graphs, 0o755))
	forestLike := &soundscape.Matrix{Hours: []int{5, 6}, FreqAxis: []float64{0, 100}, Values: [][]float64{{1, 0}, {0, 0}}}
	grassLike := &soundscape.Matrix{Hours: []int{5, 6}, FreqAxis: []float64{0, 100}, Values: [][]float64{{0, 0}, {0, 1}}}
	require.NoError(t, output.SaveMatrix(filepath.Join(graphs, "a.csv"), forestLike, -1))
	require.NoError(t, output.SaveMatrix(filepath.Join(graphs, "b.csv"), grassLike, -1))

	results, err := ComputePath(filepath.Join(graphs, "a.csv"), tpl, Cosine)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Value, 1e-12)

	results, err = ComputePath(graphs, tpl, BrayCurtis)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.csv", results[0].File)
	assert.Equal(t, "b.csv", results[1].File)
	assert.InDelta(t, 1.0, results[0].Value, 1e-12)
	assert.InDelta(t, -1.0, results[1].Value, 1e-12)

	var buf bytes.Buffer
	require.NoError(t, WriteResultsCSV(&buf, results))
	assert.Equal(t, "fname,index_value\na.csv,1\nb.csv,-1\n", buf.String())
}

func TestLoadTemplatesLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	forest := filepath.Join(dir, "f.csv")
	grass := filepath.Join(dir, "g.csv")
	require.NoError(t, os.WriteFile(forest, []byte("Forest\n1\n2\n"), 0o644))
	require.NoError(t, os.WriteFile(grass, []byte("Grassland\n1\n"), 0o644))

	_, err := LoadTemplates(forest, "Forest", grass, "Grassland")
	require.Error(t, err)
	assert.True(t, soundscape.IsKind(err, soundscape.KindConfiguration))
}

func TestComputePathMissing(t *testing.T) {
	_, err := ComputePath(filepath.Join(t.TempDir(), "none"), Templates{}, Cosine)
	require.Error(t, err)
	assert.True(t, soundscape.IsKind(err, soundscape.KindInputResolution))

	_, err = ComputePath(t.TempDir(), Templates{}, Cosine)
	assert.True(t, soundscape.IsKind(err, soundscape.KindInputResolution))
}
