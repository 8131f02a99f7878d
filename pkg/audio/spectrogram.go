package audio

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/algorithms/windowing"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"
)

// Spectrogram is a dB-scaled power spectrogram. Values is indexed
// [frequency bin][time frame].
type Spectrogram struct {
	Values     [][]float64 `json:"-"`
	TimeAxis   []float64   `json:"time_axis"`
	FreqAxis   []float64   `json:"freq_axis"`
	SampleRate int         `json:"sample_rate"`
	WindowSize int         `json:"window_size"`
	HopSize    int         `json:"hop_size"`
}

// NumBins returns the number of frequency bins
func (s *Spectrogram) NumBins() int { return len(s.FreqAxis) }

// NumFrames returns the number of time frames
func (s *Spectrogram) NumFrames() int { return len(s.TimeAxis) }

// Min returns the smallest value in the spectrogram
func (s *Spectrogram) Min() float64 {
	lo := math.Inf(1)
	for _, row := range s.Values {
		if len(row) > 0 {
			lo = math.Min(lo, floats.Min(row))
		}
	}
	return lo
}

// Max returns the largest value in the spectrogram
func (s *Spectrogram) Max() float64 {
	hi := math.Inf(-1)
	for _, row := range s.Values {
		if len(row) > 0 {
			hi = math.Max(hi, floats.Max(row))
		}
	}
	return hi
}

// SignalLoader decodes a recording into a mono waveform
type SignalLoader interface {
	Load(path string) (*Signal, error)
}

// Builder turns recordings into spectrograms at a fixed target sample rate
type Builder struct {
	config SpectrogramConfig
	loader SignalLoader
	logger logging.Logger
}

// NewBuilder validates the parameters and creates a spectrogram builder
func NewBuilder(config SpectrogramConfig, loader SignalLoader, logger logging.Logger) (*Builder, error) {
	if err := config.Validate(); err != nil {
		return nil, soundscape.NewConfigurationError("invalid spectrogram parameters", err)
	}
	if loader == nil {
		return nil, soundscape.NewConfigurationError("spectrogram builder requires a loader", nil)
	}
	if logger == nil {
		logger = logging.WithFields(logging.Fields{})
	}
	return &Builder{
		config: config,
		loader: loader,
		logger: logger.WithFields(logging.Fields{
			"component": "spectrogram_builder",
		}),
	}, nil
}

// Config returns the builder parameters
func (b *Builder) Config() SpectrogramConfig {
	return b.config
}

// Build loads path, resamples it to the target rate and computes its spectrogram
func (b *Builder) Build(path string) (*Spectrogram, error) {
	logger := b.logger.WithFields(logging.Fields{
		"function": "Build",
		"path":     path,
	})

	sig, err := b.loader.Load(path)
	if err != nil {
		return nil, err
	}

	samples := sig.Samples
	if sig.SampleRate != b.config.TargetSampleRate {
		logger.Debug("Resampling", logging.Fields{
			"from": sig.SampleRate,
			"to":   b.config.TargetSampleRate,
		})
		samples, err = ResamplePoly(samples, sig.SampleRate, b.config.TargetSampleRate)
		if err != nil {
			return nil, soundscape.NewRecordingIOError(path, "resampling failed", err)
		}
	}

	sgram, err := Compute(samples, b.config.TargetSampleRate, b.config.WindowLength, b.config.Overlap, b.config.DynamicRangeDB)
	if err != nil {
		return nil, soundscape.NewRecordingIOError(path, "spectrogram failed", err)
	}

	logger.Debug("Spectrogram computed", logging.Fields{
		"bins":   sgram.NumBins(),
		"frames": sgram.NumFrames(),
	})

	return sgram, nil
}

// Compute returns the one-sided power spectral density of samples in dB,
// using a periodic Hann window. Values below max-dbRange are raised to that
// floor.
func Compute(samples []float64, sampleRate, windowLength, overlap int, dbRange float64) (*Spectrogram, error) {
	if sampleRate <= 0 || windowLength <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d or window length %d", sampleRate, windowLength)
	}
	if overlap < 0 || overlap >= windowLength {
		return nil, fmt.Errorf("overlap %d must be in [0, %d)", overlap, windowLength)
	}
	if dbRange <= 0 {
		return nil, fmt.Errorf("dynamic range must be positive, got %g", dbRange)
	}
	if len(samples) < windowLength {
		return nil, fmt.Errorf("signal of %d samples is shorter than one window (%d)", len(samples), windowLength)
	}

	hop := windowLength - overlap
	numFrames := (len(samples)-windowLength)/hop + 1
	numBins := windowLength/2 + 1

	window := windowing.NewHann(windowLength, false).GetCoefficients()
	winPower := 0.0
	for _, w := range window {
		winPower += w * w
	}
	psdScale := 1.0 / (float64(sampleRate) * winPower)

	values := make([][]float64, numBins)
	for k := range values {
		values[k] = make([]float64, numFrames)
	}

	frame := make([]float64, windowLength)
	for i := range numFrames {
		start := i * hop
		for n := range windowLength {
			frame[n] = samples[start+n] * window[n]
		}
		spectrum := fft.FFTReal(frame)

		for k := range numBins {
			mag := cmplx.Abs(spectrum[k])
			p := mag * mag * psdScale
			if k != 0 && !(windowLength%2 == 0 && k == numBins-1) {
				p *= 2
			}
			values[k][i] = p
		}
	}

	// power to dB with a fixed dynamic range below the peak
	tiny := math.SmallestNonzeroFloat64
	peak := math.Inf(-1)
	for _, row := range values {
		for i, p := range row {
			row[i] = 10 * math.Log10(math.Max(p, tiny))
			peak = math.Max(peak, row[i])
		}
	}
	floor := peak - dbRange
	for _, row := range values {
		for i, v := range row {
			if v < floor {
				row[i] = floor
			}
		}
	}

	freqAxis := make([]float64, numBins)
	for k := range freqAxis {
		freqAxis[k] = float64(k) * float64(sampleRate) / float64(windowLength)
	}
	timeAxis := make([]float64, numFrames)
	for i := range timeAxis {
		timeAxis[i] = float64(windowLength/2+i*hop) / float64(sampleRate)
	}

	return &Spectrogram{
		Values:     values,
		TimeAxis:   timeAxis,
		FreqAxis:   freqAxis,
		SampleRate: sampleRate,
		WindowSize: windowLength,
		HopSize:    hop,
	}, nil
}
