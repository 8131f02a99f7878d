package audio

import (
	"fmt"
	"strings"
	"time"
)

// Channel selects which channel of a multi-channel recording is analysed
type Channel string

const (
	ChannelLeft  Channel = "left"
	ChannelRight Channel = "right"
	ChannelMean  Channel = "mean"
)

// ParseChannel parses a channel name, defaulting to the left channel
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "left":
		return ChannelLeft, nil
	case "right":
		return ChannelRight, nil
	case "mean", "mono":
		return ChannelMean, nil
	default:
		return "", fmt.Errorf("unknown channel %q (want left, right or mean)", s)
	}
}

// LoaderConfig holds audio decoding settings
type LoaderConfig struct {
	Channel Channel `json:"channel"`

	// TargetSampleRate is handed to ffmpeg for formats decoded through it
	TargetSampleRate int `json:"target_sample_rate"`

	FFmpegPath    string        `json:"ffmpeg_path"`
	FFprobePath   string        `json:"ffprobe_path"`
	DecodeTimeout time.Duration `json:"decode_timeout"`
}

// DefaultLoaderConfig returns the default loader configuration
func DefaultLoaderConfig() *LoaderConfig {
	return &LoaderConfig{
		Channel:          ChannelLeft,
		TargetSampleRate: 48000,
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		DecodeTimeout:    60 * time.Second,
	}
}

// SpectrogramConfig holds the spectrogram parameters
type SpectrogramConfig struct {
	TargetSampleRate int     `json:"target_fs"`
	WindowLength     int     `json:"nperseg"`
	Overlap          int     `json:"noverlap"`
	DynamicRangeDB   float64 `json:"db_range"`
}

// Validate checks the spectrogram parameters
func (c SpectrogramConfig) Validate() error {
	if c.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive, got %d", c.TargetSampleRate)
	}
	if c.WindowLength <= 0 {
		return fmt.Errorf("window length must be positive, got %d", c.WindowLength)
	}
	if c.Overlap < 0 || c.Overlap >= c.WindowLength {
		return fmt.Errorf("overlap must be in [0, %d), got %d", c.WindowLength, c.Overlap)
	}
	if c.DynamicRangeDB <= 0 {
		return fmt.Errorf("dynamic range must be positive, got %g", c.DynamicRangeDB)
	}
	return nil
}

// HopSize returns the number of samples between consecutive frames
func (c SpectrogramConfig) HopSize() int {
	return c.WindowLength - c.Overlap
}

// FreqResolution returns the bin width in Hz
func (c SpectrogramConfig) FreqResolution() float64 {
	return float64(c.TargetSampleRate) / float64(c.WindowLength)
}
