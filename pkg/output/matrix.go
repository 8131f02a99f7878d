package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
)

// HourColumn is the header of the first column of a persisted matrix
const HourColumn = "hour"

// timeColumn is the first header written by pandas groupby("time") exports
const timeColumn = "time"

// WriteMatrixCSV writes m with one row per hour and one column per frequency.
// precision < 0 writes the shortest representation that reads back exactly.
func WriteMatrixCSV(w io.Writer, m *soundscape.Matrix, precision int) error {
	if err := m.Validate(); err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	header := make([]string, 0, len(m.FreqAxis)+1)
	header = append(header, HourColumn)
	for _, f := range m.FreqAxis {
		header = append(header, strconv.FormatFloat(f, 'f', -1, 64))
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(header))
	for i, h := range m.Hours {
		row[0] = soundscape.HourLabel(h)
		for j, v := range m.Values[i] {
			row[j+1] = strconv.FormatFloat(v, 'g', precision, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing hour %d: %w", h, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// PartialPath marks path as holding an incomplete run by inserting ".partial"
// before its extension, so the label stays with the file.
func PartialPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if strings.HasSuffix(base, ".partial") {
		return path
	}
	return base + ".partial" + ext
}

// SaveMatrix writes m to path, creating parent directories
func SaveMatrix(path string, m *soundscape.Matrix, precision int) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteMatrixCSV(f, m, precision); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadMatrixCSV parses a matrix written by WriteMatrixCSV. A blank or "time"
// first header cell is accepted as well.
func ReadMatrixCSV(r io.Reader) (*soundscape.Matrix, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, soundscape.NewDataFormatError("", "malformed matrix csv", err)
	}
	if len(records) == 0 {
		return nil, soundscape.NewDataFormatError("", "matrix csv is empty", nil)
	}

	header := records[0]
	if len(header) < 2 {
		return nil, soundscape.NewDataFormatError("", "matrix csv has no frequency columns", nil)
	}
	if first := strings.TrimSpace(header[0]); !isHourHeader(first) {
		return nil, soundscape.NewDataFormatError("", fmt.Sprintf("unexpected first column %q", first), nil)
	}

	m := &soundscape.Matrix{FreqAxis: make([]float64, len(header)-1)}
	for j, h := range header[1:] {
		f, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if err != nil {
			return nil, soundscape.NewDataFormatError("", fmt.Sprintf("invalid frequency %q", h), err)
		}
		m.FreqAxis[j] = f
	}

	for i, rec := range records[1:] {
		hour, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, soundscape.NewDataFormatError("", fmt.Sprintf("row %d: invalid hour %q", i+1, rec[0]), err)
		}
		values := make([]float64, len(rec)-1)
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				return nil, soundscape.NewDataFormatError("", fmt.Sprintf("row %d: invalid value %q", i+1, cell), err)
			}
			values[j] = v
		}
		m.Hours = append(m.Hours, hour)
		m.Values = append(m.Values, values)
	}

	if err := m.Validate(); err != nil {
		return nil, soundscape.NewDataFormatError("", "inconsistent matrix", err)
	}
	return m, nil
}

func isHourHeader(s string) bool {
	return s == "" || strings.EqualFold(s, HourColumn) || strings.EqualFold(s, timeColumn)
}

// LoadMatrix reads a persisted matrix from path
func LoadMatrix(path string) (*soundscape.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, soundscape.NewInputResolutionError(path, "cannot open matrix", err)
	}
	defer f.Close()

	m, err := ReadMatrixCSV(f)
	if err != nil {
		if se, ok := err.(*soundscape.Error); ok && se.Path == "" {
			se.Path = path
		}
		return nil, err
	}
	return m, nil
}
