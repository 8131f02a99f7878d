package configs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets default configuration values for all components
func setDefaults(v *viper.Viper) {
	defaults := GetDefaultConfig()

	// Analysis defaults
	g := defaults.GraphSoundscapes
	setIfUnset(v, "graph_soundscapes.target_fs", g.TargetFS)
	setIfUnset(v, "graph_soundscapes.nperseg", g.NPerSeg)
	setIfUnset(v, "graph_soundscapes.noverlap", g.NOverlap)
	setIfUnset(v, "graph_soundscapes.db_range", g.DBRange)
	setIfUnset(v, "graph_soundscapes.min_distance", g.MinDistance)
	setIfUnset(v, "graph_soundscapes.threshold_abs", g.ThresholdAbs)
	setIfUnset(v, "graph_soundscapes.exclude_border", g.ExcludeBorder)
	setIfUnset(v, "graph_soundscapes.channel", g.Channel)

	// Pipeline defaults
	setIfUnset(v, "pipeline.workers", defaults.Pipeline.Workers)
	setIfUnset(v, "pipeline.failure_policy", defaults.Pipeline.FailurePolicy)
	setIfUnset(v, "pipeline.timeout", defaults.Pipeline.Timeout)
	setIfUnset(v, "pipeline.recursive", defaults.Pipeline.Recursive)
	setIfUnset(v, "pipeline.extensions", defaults.Pipeline.Extensions)

	// Decoder defaults
	setIfUnset(v, "audio.ffmpeg_path", defaults.Audio.FFmpegPath)
	setIfUnset(v, "audio.ffprobe_path", defaults.Audio.FFprobePath)
	setIfUnset(v, "audio.decode_timeout", defaults.Audio.DecodeTimeout)

	setIfUnset(v, "store.path", defaults.Store.Path)

	// Index defaults
	setIfUnset(v, "index.template_forest_column", defaults.Index.TemplateForestColumn)
	setIfUnset(v, "index.template_grassland_column", defaults.Index.TemplateGrasslandColumn)
	setIfUnset(v, "index.distance", defaults.Index.Distance)

	// Output defaults
	setIfUnset(v, "output.precision", defaults.Output.Precision)
	setIfUnset(v, "output.tick_step", defaults.Output.TickStep)
	setIfUnset(v, "output.colormap", defaults.Output.Colormap)
	setIfUnset(v, "output.progress", defaults.Output.Progress)

	// Metric defaults
	setIfUnset(v, "metrics.enabled", defaults.Metrics.Enabled)
	setIfUnset(v, "metrics.log_file", defaults.Metrics.LogFile)

	// Application defaults
	setIfUnset(v, "verbose", defaults.Verbose)
	setIfUnset(v, "log_level", defaults.LogLevel)
	setIfUnset(v, "output_format", defaults.OutputFormat)
	setIfUnset(v, "config_dir", defaults.ConfigDir)
}

func setIfUnset(v *viper.Viper, key string, value any) {
	if !v.IsSet(key) {
		v.Set(key, value)
	}
}

// GetDefaultConfig returns the default configuration
func GetDefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		Verbose:      false,
		LogLevel:     "info",
		OutputFormat: "table",
		ConfigDir:    filepath.Join(home, ".config", "soundscape"),

		GraphSoundscapes: GetDefaultGraphConfig(),
		Pipeline:         GetDefaultPipelineConfig(),
		Audio:            GetDefaultAudioConfig(),
		Index:            GetDefaultIndexConfig(),
		Output:           GetDefaultOutputConfig(),
		Metrics: MetricsConfig{
			Enabled: false,
			LogFile: filepath.Join(os.TempDir(), "soundscape-metrics.log"),
		},
	}
}

// GetDefaultGraphConfig returns the default analysis parameters
func GetDefaultGraphConfig() GraphConfig {
	return GraphConfig{
		TargetFS:      48000,
		NPerSeg:       256,
		NOverlap:      128,
		DBRange:       80,
		MinDistance:   1,
		ThresholdAbs:  -80,
		ExcludeBorder: true,
		Channel:       "left",
	}
}

// GetDefaultPipelineConfig returns the default corpus processing settings
func GetDefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Workers:       0, // one per CPU
		FailurePolicy: "skip",
		Timeout:       0,
		Recursive:     false,
		Extensions:    []string{".wav", ".mp3", ".flac"},
	}
}

// GetDefaultAudioConfig returns the default decoder settings
func GetDefaultAudioConfig() AudioConfig {
	return AudioConfig{
		FFmpegPath:    "ffmpeg",
		FFprobePath:   "ffprobe",
		DecodeTimeout: 60 * time.Second,
	}
}

// GetDefaultIndexConfig returns the default index settings
func GetDefaultIndexConfig() IndexConfig {
	return IndexConfig{
		TemplateForestColumn:    "Forest",
		TemplateGrasslandColumn: "Grassland",
		Distance:                "cosine",
	}
}

// GetDefaultOutputConfig returns the default output settings
func GetDefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Precision: -1,
		TickStep:  20,
		Colormap:  "viridis",
		Progress:  true,
	}
}
