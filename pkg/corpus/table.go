package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
)

// Column names of a metadata table
const (
	ColumnPath   = "path_audio"
	ColumnName   = "fname"
	ColumnSensor = "sensor_name"
	ColumnDate   = "date"
	ColumnTime   = "time"
)

func resolveTable(path string) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, soundscape.NewInputResolutionError(path, "cannot open table", err)
	}
	defer f.Close()

	recs, rejected, err := ReadTable(f, filepath.Dir(path))
	if err != nil {
		var se *soundscape.Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, soundscape.NewInputResolutionError(path, "cannot read table", err)
	}

	return &Corpus{Kind: InputTable, Source: path, Recordings: recs, Rejected: rejected}, nil
}

// ReadTable reads recording metadata from CSV. The path_audio column is
// required together with a time or date column; relative paths are resolved
// against baseDir. Rows whose timestamp cannot be parsed are returned as
// rejects.
func ReadTable(r io.Reader, baseDir string) ([]soundscape.Recording, []error, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, soundscape.NewInputResolutionError("", "table is empty", nil)
		}
		return nil, nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}

	pathCol, ok := cols[ColumnPath]
	if !ok {
		return nil, nil, soundscape.NewInputResolutionError("", "table is missing the path_audio column", nil)
	}
	timeCol, hasTime := cols[ColumnTime]
	dateCol, hasDate := cols[ColumnDate]
	if !hasTime && !hasDate {
		return nil, nil, soundscape.NewInputResolutionError("", "table needs a time or date column", nil)
	}
	nameCol, hasName := cols[ColumnName]
	sensorCol, hasSensor := cols[ColumnSensor]

	field := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var (
		recs     []soundscape.Recording
		rejected []error
	)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}

		p := field(row, pathCol)
		if p == "" {
			rejected = append(rejected, soundscape.NewDataFormatError(fmt.Sprintf("line %d", line), "empty path_audio", nil))
			continue
		}
		if !filepath.IsAbs(p) && baseDir != "" {
			p = filepath.Join(baseDir, p)
		}

		var ts time.Time
		var perr error
		switch {
		case hasTime && hasDate:
			ts, perr = soundscape.ParseCaptureTime(field(row, dateCol) + " " + field(row, timeCol))
			if perr != nil {
				ts, perr = soundscape.ParseCaptureTime(field(row, timeCol))
			}
		case hasTime:
			ts, perr = soundscape.ParseCaptureTime(field(row, timeCol))
		default:
			ts, perr = soundscape.ParseCaptureTime(field(row, dateCol))
		}
		if perr != nil {
			rejected = append(rejected, soundscape.NewDataFormatError(p, "unparseable capture time", perr))
			continue
		}

		rec := soundscape.Recording{Path: p, CaptureTime: ts}
		if hasName {
			rec.Name = field(row, nameCol)
		}
		if rec.Name == "" {
			rec.Name = filepath.Base(p)
		}
		if hasSensor {
			rec.Sensor = field(row, sensorCol)
		}
		recs = append(recs, rec)
	}

	return recs, rejected, nil
}
