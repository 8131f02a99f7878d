package configs

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	// Application settings
	Verbose      bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
	ConfigDir    string `mapstructure:"config_dir" yaml:"config_dir" json:"config_dir"`

	// Spectrogram and peak picking parameters
	GraphSoundscapes GraphConfig `mapstructure:"graph_soundscapes" yaml:"graph_soundscapes" json:"graph_soundscapes"`

	// Corpus processing
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Audio decoding
	Audio AudioConfig `mapstructure:"audio" yaml:"audio" json:"audio"`

	// Density row cache
	Store StoreConfig `mapstructure:"store" yaml:"store" json:"store"`

	// Acoustic integrity index
	Index IndexConfig `mapstructure:"index" yaml:"index" json:"index"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Run metrics
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

// GraphConfig holds the analysis parameters of a graphical soundscape
type GraphConfig struct {
	TargetFS      int     `mapstructure:"target_fs" yaml:"target_fs" json:"target_fs"`
	NPerSeg       int     `mapstructure:"nperseg" yaml:"nperseg" json:"nperseg"`
	NOverlap      int     `mapstructure:"noverlap" yaml:"noverlap" json:"noverlap"`
	DBRange       float64 `mapstructure:"db_range" yaml:"db_range" json:"db_range"`
	MinDistance   int     `mapstructure:"min_distance" yaml:"min_distance" json:"min_distance"`
	ThresholdAbs  float64 `mapstructure:"threshold_abs" yaml:"threshold_abs" json:"threshold_abs"`
	ExcludeBorder bool    `mapstructure:"exclude_border" yaml:"exclude_border" json:"exclude_border"`
	Channel       string  `mapstructure:"channel" yaml:"channel" json:"channel"`
}

// PipelineConfig contains corpus processing settings
type PipelineConfig struct {
	Workers       int           `mapstructure:"workers" yaml:"workers" json:"workers"`
	FailurePolicy string        `mapstructure:"failure_policy" yaml:"failure_policy" json:"failure_policy"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	Recursive     bool          `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Extensions    []string      `mapstructure:"extensions" yaml:"extensions" json:"extensions"`
}

// AudioConfig contains decoder settings
type AudioConfig struct {
	FFmpegPath    string        `mapstructure:"ffmpeg_path" yaml:"ffmpeg_path" json:"ffmpeg_path"`
	FFprobePath   string        `mapstructure:"ffprobe_path" yaml:"ffprobe_path" json:"ffprobe_path"`
	DecodeTimeout time.Duration `mapstructure:"decode_timeout" yaml:"decode_timeout" json:"decode_timeout"`
}

// StoreConfig contains the run cache location; an empty path disables caching
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path" json:"path"`
}

// IndexConfig contains the template vectors of the acoustic integrity index
type IndexConfig struct {
	TemplateForest          string `mapstructure:"template_forest" yaml:"template_forest" json:"template_forest"`
	TemplateForestColumn    string `mapstructure:"template_forest_column" yaml:"template_forest_column" json:"template_forest_column"`
	TemplateGrassland       string `mapstructure:"template_grassland" yaml:"template_grassland" json:"template_grassland"`
	TemplateGrasslandColumn string `mapstructure:"template_grassland_column" yaml:"template_grassland_column" json:"template_grassland_column"`
	Distance                string `mapstructure:"distance" yaml:"distance" json:"distance"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Precision int    `mapstructure:"precision" yaml:"precision" json:"precision"`
	TickStep  int    `mapstructure:"tick_step" yaml:"tick_step" json:"tick_step"`
	Colormap  string `mapstructure:"colormap" yaml:"colormap" json:"colormap"`
	Progress  bool   `mapstructure:"progress" yaml:"progress" json:"progress"`
}

// MetricsConfig contains run metric settings
type MetricsConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	LogFile string   `mapstructure:"log_file" yaml:"log_file" json:"log_file"`
	Tags    []string `mapstructure:"tags" yaml:"tags" json:"tags"`
}

// LoadConfig loads configuration from viper, filling unset keys with defaults
func LoadConfig(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, soundscape.NewConfigurationError("unable to decode configuration", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration
func ValidateConfig(config *Config) error {
	g := config.GraphSoundscapes

	if g.TargetFS <= 0 {
		return invalid("graph_soundscapes.target_fs must be positive, got %d", g.TargetFS)
	}
	if g.NPerSeg <= 0 {
		return invalid("graph_soundscapes.nperseg must be positive, got %d", g.NPerSeg)
	}
	if g.NOverlap < 0 || g.NOverlap >= g.NPerSeg {
		return invalid("graph_soundscapes.noverlap must be in [0, nperseg), got %d", g.NOverlap)
	}
	if g.DBRange <= 0 {
		return invalid("graph_soundscapes.db_range must be positive, got %g", g.DBRange)
	}
	if g.MinDistance < 1 {
		return invalid("graph_soundscapes.min_distance must be at least 1, got %d", g.MinDistance)
	}
	if !slices.Contains([]string{"", "left", "right", "mean", "mono"}, strings.ToLower(g.Channel)) {
		return invalid("graph_soundscapes.channel must be left, right or mean, got %q", g.Channel)
	}

	if config.Pipeline.Workers < 0 {
		return invalid("pipeline.workers cannot be negative")
	}
	if !slices.Contains([]string{"", "skip", "abort"}, strings.ToLower(config.Pipeline.FailurePolicy)) {
		return invalid("pipeline.failure_policy must be skip or abort, got %q", config.Pipeline.FailurePolicy)
	}
	if config.Pipeline.Timeout < 0 {
		return invalid("pipeline.timeout cannot be negative")
	}

	if !slices.Contains([]string{"", "cosine", "braycurtis"}, strings.ToLower(config.Index.Distance)) {
		return invalid("index.distance must be cosine or braycurtis, got %q", config.Index.Distance)
	}

	if config.Output.Precision < -1 {
		return invalid("output.precision must be -1 or greater")
	}
	if config.Output.TickStep < 0 {
		return invalid("output.tick_step cannot be negative")
	}

	return nil
}

func invalid(format string, args ...any) error {
	return soundscape.NewConfigurationError(fmt.Sprintf(format, args...), nil)
}
