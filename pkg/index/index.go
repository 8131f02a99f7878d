// Package index computes the Biotic Acoustic Integrity index of a soundscape:
// how much closer a sample is to a forest template than to a grassland one.
package index

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/RyanBlaney/graphical-soundscape/pkg/output"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"gonum.org/v1/gonum/floats"
)

// Distance measures the dissimilarity of two equal-length vectors
type Distance func(a, b []float64) (float64, error)

// Cosine returns 1 - cos(a, b)
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return math.NaN(), fmt.Errorf("cosine distance undefined for a zero vector")
	}
	return 1 - floats.Dot(a, b)/(na*nb), nil
}

// BrayCurtis returns sum|a-b| / sum|a+b|
func BrayCurtis(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("length mismatch: %d vs %d", len(a), len(b))
	}
	var num, den float64
	for i := range a {
		num += math.Abs(a[i] - b[i])
		den += math.Abs(a[i] + b[i])
	}
	if den == 0 {
		return math.NaN(), fmt.Errorf("bray-curtis distance undefined for two zero vectors")
	}
	return num / den, nil
}

// DistanceByName returns cosine or braycurtis
func DistanceByName(name string) (Distance, error) {
	switch strings.ToLower(name) {
	case "", "cosine":
		return Cosine, nil
	case "braycurtis", "bray-curtis":
		return BrayCurtis, nil
	default:
		return nil, soundscape.NewConfigurationError(fmt.Sprintf("unknown distance %q (want cosine or braycurtis)", name), nil)
	}
}

// Templates holds the reference soundscapes
type Templates struct {
	Forest    []float64
	Grassland []float64
}

// Compute returns d(sample, grassland) - d(sample, forest)
func (t Templates) Compute(sample []float64, d Distance) (float64, error) {
	dg, err := d(sample, t.Grassland)
	if err != nil {
		return 0, fmt.Errorf("grassland template: %w", err)
	}
	df, err := d(sample, t.Forest)
	if err != nil {
		return 0, fmt.Errorf("forest template: %w", err)
	}
	return dg - df, nil
}

// LoadTemplates reads the Forest and Grassland columns of two template tables
func LoadTemplates(forestPath, forestColumn, grasslandPath, grasslandColumn string) (Templates, error) {
	forest, err := LoadColumn(forestPath, forestColumn)
	if err != nil {
		return Templates{}, err
	}
	grassland, err := LoadColumn(grasslandPath, grasslandColumn)
	if err != nil {
		return Templates{}, err
	}
	if len(forest) != len(grassland) {
		return Templates{}, soundscape.NewConfigurationError(
			fmt.Sprintf("templates differ in length: forest %d, grassland %d", len(forest), len(grassland)), nil)
	}
	return Templates{Forest: forest, Grassland: grassland}, nil
}

// LoadColumn reads one numeric column of a CSV file by header name
func LoadColumn(path, column string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, soundscape.NewInputResolutionError(path, "cannot open template", err)
	}
	defer f.Close()

	values, err := ReadColumn(f, column)
	if err != nil {
		return nil, soundscape.NewDataFormatError(path, "invalid template", err)
	}
	return values, nil
}

// ReadColumn reads one numeric column of CSV data by header name
func ReadColumn(r io.Reader, column string) ([]float64, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no header")
	}

	col := -1
	for i, h := range records[0] {
		if strings.TrimSpace(h) == column {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("column %q not found", column)
	}

	values := make([]float64, 0, len(records)-1)
	for i, rec := range records[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[col]), 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		values = append(values, v)
	}
	return values, nil
}

// Result is the index value of one persisted soundscape
type Result struct {
	File  string  `json:"fname"`
	Value float64 `json:"index_value"`
}

// ComputePath scores a persisted matrix file, or every .csv file in a
// directory (sorted by name)
func ComputePath(path string, t Templates, d Distance) ([]Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, soundscape.NewInputResolutionError(path, "path does not exist", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.csv"))
		if err != nil {
			return nil, soundscape.NewInputResolutionError(path, "cannot list matrices", err)
		}
		sort.Strings(files)
		if len(files) == 0 {
			return nil, soundscape.NewInputResolutionError(path, "no .csv matrices found", nil)
		}
	}

	results := make([]Result, 0, len(files))
	for _, file := range files {
		m, err := output.LoadMatrix(file)
		if err != nil {
			return nil, err
		}
		v, err := t.Compute(m.Flatten(), d)
		if err != nil {
			return nil, soundscape.NewDataFormatError(file, "cannot compare with templates", err)
		}
		results = append(results, Result{File: filepath.Base(file), Value: v})
	}
	return results, nil
}

// WriteResultsCSV writes fname,index_value rows
func WriteResultsCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"fname", "index_value"}); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write([]string{r.File, strconv.FormatFloat(r.Value, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
