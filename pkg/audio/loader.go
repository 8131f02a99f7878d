package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/RyanBlaney/sonido-sonar/logging"
	"github.com/RyanBlaney/sonido-sonar/transcode"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Signal is a decoded single-channel waveform scaled to [-1, 1]
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the signal length in seconds
func (s *Signal) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// Loader decodes recordings from disk
type Loader struct {
	config *LoaderConfig
	logger logging.Logger
}

// NewLoader creates a loader; a nil config falls back to the defaults
func NewLoader(config *LoaderConfig, logger logging.Logger) *Loader {
	if config == nil {
		config = DefaultLoaderConfig()
	}
	if logger == nil {
		logger = logging.WithFields(logging.Fields{})
	}
	return &Loader{config: config, logger: logger}
}

// Load decodes path into a single channel. WAV and MP3 are decoded natively,
// everything else is handed to ffmpeg.
func (l *Loader) Load(path string) (*Signal, error) {
	logger := l.logger.WithFields(logging.Fields{
		"component": "audio_loader",
		"function":  "Load",
		"path":      path,
	})

	var (
		sig *Signal
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		sig, err = l.loadWAV(path)
	case ".mp3":
		sig, err = l.loadMP3(path)
	default:
		sig, err = l.loadFFmpeg(path)
	}
	if err != nil {
		var se *soundscape.Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, soundscape.NewRecordingIOError(path, "decode failed", err)
	}
	if len(sig.Samples) == 0 {
		return nil, soundscape.NewRecordingIOError(path, "recording contains no samples", nil)
	}

	logger.Debug("Recording decoded", logging.Fields{
		"sample_rate": sig.SampleRate,
		"samples":     len(sig.Samples),
		"duration_s":  sig.Duration(),
		"channel":     string(l.config.Channel),
	})

	return sig, nil
}

func (l *Loader) loadWAV(path string) (*Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, soundscape.NewRecordingIOError(path, "cannot open file", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, soundscape.NewRecordingIOError(path, "invalid wav file", nil)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading pcm: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, soundscape.NewRecordingIOError(path, "wav file has no format chunk", nil)
	}

	samples := intBufferToFloat(buf)
	mono, err := selectChannel(samples, buf.Format.NumChannels, l.config.Channel)
	if err != nil {
		return nil, soundscape.NewRecordingIOError(path, "channel selection failed", err)
	}

	return &Signal{Samples: mono, SampleRate: buf.Format.SampleRate}, nil
}

func (l *Loader) loadMP3(path string) (*Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, soundscape.NewRecordingIOError(path, "cannot open file", err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("mp3 header: %w", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("reading mp3 frames: %w", err)
	}

	// go-mp3 always emits 16-bit little-endian stereo
	n := len(raw) / 2
	interleaved := make([]float64, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(raw[2*i : 2*i+2]))
		interleaved[i] = float64(v) / 32768.0
	}

	mono, err := selectChannel(interleaved, 2, l.config.Channel)
	if err != nil {
		return nil, soundscape.NewRecordingIOError(path, "channel selection failed", err)
	}

	return &Signal{Samples: mono, SampleRate: decoder.SampleRate()}, nil
}

func (l *Loader) loadFFmpeg(path string) (*Signal, error) {
	channels := 2
	if l.config.Channel == ChannelMean {
		channels = 1
	}

	cfg := transcode.DefaultDecoderConfig()
	cfg.TargetSampleRate = l.config.TargetSampleRate
	cfg.TargetChannels = channels
	cfg.ResampleQuality = "high"
	cfg.EnableNormalization = false
	if l.config.FFmpegPath != "" {
		cfg.FFmpegPath = l.config.FFmpegPath
	}
	if l.config.FFprobePath != "" {
		cfg.FFprobePath = l.config.FFprobePath
	}
	if l.config.DecodeTimeout > 0 {
		cfg.Timeout = l.config.DecodeTimeout
	}

	decoder := transcode.NewDecoder(cfg)
	defer decoder.Close()

	data, err := decoder.DecodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	mono, err := selectChannel(data.PCM, data.Channels, l.config.Channel)
	if err != nil {
		return nil, soundscape.NewRecordingIOError(path, "channel selection failed", err)
	}

	return &Signal{Samples: mono, SampleRate: data.SampleRate}, nil
}

// intBufferToFloat scales integer PCM to [-1, 1]; 8-bit WAV is unsigned
func intBufferToFloat(buf *goaudio.IntBuffer) []float64 {
	bits := buf.SourceBitDepth
	if bits <= 0 {
		bits = 16
	}
	scale := float64(int64(1) << uint(bits-1))

	out := make([]float64, len(buf.Data))
	if bits == 8 {
		for i, v := range buf.Data {
			out[i] = float64(v-128) / scale
		}
		return out
	}
	for i, v := range buf.Data {
		out[i] = float64(v) / scale
	}
	return out
}

// selectChannel extracts one channel (or the channel mean) from interleaved samples
func selectChannel(interleaved []float64, numChannels int, channel Channel) ([]float64, error) {
	if numChannels <= 1 {
		return interleaved, nil
	}

	frames := len(interleaved) / numChannels
	out := make([]float64, frames)

	switch channel {
	case ChannelLeft, "":
		for i := range frames {
			out[i] = interleaved[i*numChannels]
		}
	case ChannelRight:
		for i := range frames {
			out[i] = interleaved[i*numChannels+1]
		}
	case ChannelMean:
		inv := 1.0 / float64(numChannels)
		for i := range frames {
			sum := 0.0
			for c := range numChannels {
				sum += interleaved[i*numChannels+c]
			}
			out[i] = sum * inv
		}
	default:
		return nil, fmt.Errorf("unsupported channel %q", channel)
	}

	return out, nil
}
