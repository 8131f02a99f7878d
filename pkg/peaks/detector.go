package peaks

import (
	"fmt"

	"github.com/RyanBlaney/graphical-soundscape/pkg/audio"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
)

// Config holds the peak picking parameters
type Config struct {
	// MinDistance is the neighbourhood radius in cells along both axes
	MinDistance int `json:"min_distance"`

	// ThresholdAbs is the minimum amplitude (dB) of a peak
	ThresholdAbs float64 `json:"threshold_abs"`

	// ExcludeBorder drops peaks closer than MinDistance to the grid edge
	ExcludeBorder bool `json:"exclude_border"`
}

// Validate checks the data-independent parameters
func (c Config) Validate() error {
	if c.MinDistance < 1 {
		return fmt.Errorf("min_distance must be at least 1, got %d", c.MinDistance)
	}
	return nil
}

// Detector finds local maxima of spectrograms
type Detector struct {
	config Config
	logger logging.Logger
}

// NewDetector creates a peak detector
func NewDetector(config Config, logger logging.Logger) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, soundscape.NewConfigurationError("invalid peak detection parameters", err)
	}
	if logger == nil {
		logger = logging.WithFields(logging.Fields{})
	}
	return &Detector{
		config: config,
		logger: logger.WithFields(logging.Fields{
			"component": "peak_detector",
		}),
	}, nil
}

// Config returns the detector parameters
func (d *Detector) Config() Config {
	return d.config
}

// Detect returns the peaks of sgram in raster order (frequency bin, then frame).
// The threshold must lie strictly above the spectrogram minimum, otherwise the
// clipped floor itself would be reported as peaks.
func (d *Detector) Detect(sgram *audio.Spectrogram) ([]soundscape.Peak, error) {
	if sgram == nil || sgram.NumBins() == 0 || sgram.NumFrames() == 0 {
		return nil, fmt.Errorf("empty spectrogram")
	}

	floor := sgram.Min()
	if d.config.ThresholdAbs <= floor {
		return nil, soundscape.NewConfigurationError(
			fmt.Sprintf("threshold_abs %g must be above the spectrogram minimum %g", d.config.ThresholdAbs, floor), nil)
	}

	cells := LocalMaxima(sgram.Values, d.config.MinDistance, d.config.ThresholdAbs, d.config.ExcludeBorder)

	peaks := make([]soundscape.Peak, len(cells))
	for i, c := range cells {
		peaks[i] = soundscape.Peak{
			Time:       sgram.TimeAxis[c.Col],
			Freq:       sgram.FreqAxis[c.Row],
			FrameIndex: c.Col,
			BinIndex:   c.Row,
			Amplitude:  sgram.Values[c.Row][c.Col],
		}
	}

	d.logger.Debug("Peaks detected", logging.Fields{
		"function":  "Detect",
		"peaks":     len(peaks),
		"bins":      sgram.NumBins(),
		"frames":    sgram.NumFrames(),
		"floor_db":  floor,
		"threshold": d.config.ThresholdAbs,
	})

	return peaks, nil
}
