package soundscape

import (
	"fmt"
	"time"
)

// Recording is a single audio file of the corpus with its capture time
type Recording struct {
	Path        string    `json:"path_audio" yaml:"path_audio"`
	Name        string    `json:"fname" yaml:"fname"`
	Sensor      string    `json:"sensor_name,omitempty" yaml:"sensor_name,omitempty"`
	CaptureTime time.Time `json:"capture_time" yaml:"capture_time"`
}

// ID returns the identifier a density row is labelled with
func (r Recording) ID() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Name
}

// Hour returns the hour-of-day bucket of the recording
func (r Recording) Hour() int {
	return r.CaptureTime.Hour()
}

// Peak is a local maximum of a spectrogram. Time and Freq are literal members of the
// spectrogram axes; the indices locate the cell in the underlying matrix.
type Peak struct {
	Time       float64 `json:"time"`
	Freq       float64 `json:"freq"`
	FrameIndex int     `json:"frame_index"`
	BinIndex   int     `json:"bin_index"`
	Amplitude  float64 `json:"amplitude_db"`
}

// DensityRow holds the per-frequency-bin peak density of one recording
type DensityRow struct {
	ID       string    `json:"id"`
	Hour     int       `json:"hour"`
	FreqAxis []float64 `json:"freq_axis"`
	Values   []float64 `json:"values"`
	Frames   int       `json:"frames"`
}

// Matrix is the graphical soundscape: rows are hours of the day present in the corpus,
// columns are frequency bins, cells are the mean peak density.
type Matrix struct {
	Hours    []int       `json:"hours" yaml:"hours"`
	FreqAxis []float64   `json:"freq_axis" yaml:"freq_axis"`
	Values   [][]float64 `json:"values" yaml:"values"`

	// Counts holds the number of recordings averaged into each row
	Counts []int `json:"counts,omitempty" yaml:"counts,omitempty"`

	// Partial is set when the matrix was built from a subset of the scheduled corpus
	Partial bool `json:"partial" yaml:"partial"`
}

// HourLabel formats an hour the way matrix rows are keyed
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d", hour)
}

// Row returns the density values for the given hour
func (m *Matrix) Row(hour int) ([]float64, bool) {
	for i, h := range m.Hours {
		if h == hour {
			return m.Values[i], true
		}
	}
	return nil, false
}

// Flatten returns the cells in row-major order (hour by hour)
func (m *Matrix) Flatten() []float64 {
	out := make([]float64, 0, len(m.Hours)*len(m.FreqAxis))
	for _, row := range m.Values {
		out = append(out, row...)
	}
	return out
}

// Validate checks the matrix shape
func (m *Matrix) Validate() error {
	if len(m.Values) != len(m.Hours) {
		return fmt.Errorf("matrix has %d rows but %d hour labels", len(m.Values), len(m.Hours))
	}
	for i, row := range m.Values {
		if len(row) != len(m.FreqAxis) {
			return fmt.Errorf("row %s has %d columns, expected %d", HourLabel(m.Hours[i]), len(row), len(m.FreqAxis))
		}
	}
	return nil
}
