package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/graphical-soundscape/configs"
	"github.com/RyanBlaney/graphical-soundscape/internal/pipeline"
	"github.com/RyanBlaney/graphical-soundscape/internal/store"
	"github.com/RyanBlaney/graphical-soundscape/pkg/audio"
	"github.com/RyanBlaney/graphical-soundscape/pkg/corpus"
	"github.com/RyanBlaney/graphical-soundscape/pkg/peaks"
	"github.com/RyanBlaney/graphical-soundscape/pkg/soundscape"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var titleCaser = cases.Title(language.English)

// loadConfigFromFile loads a configuration file on top of the defaults
func loadConfigFromFile(filePath string) (*configs.Config, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil, soundscape.NewConfigurationError(fmt.Sprintf("configuration file does not exist: %s", filePath), nil)
	}

	switch filepath.Ext(filePath) {
	case ".yaml", ".yml":
		return loadConfigFromYAML(filePath)
	case ".json":
		return loadConfigFromJSON(filePath)
	default:
		// Try YAML first, then JSON
		if cfg, err := loadConfigFromYAML(filePath); err == nil {
			return cfg, nil
		}
		return loadConfigFromJSON(filePath)
	}
}

// loadConfigFromYAML loads from YAML file
func loadConfigFromYAML(filePath string) (*configs.Config, error) {
	data, err := readConfigFile(filePath)
	if err != nil {
		return nil, err
	}

	config := configs.GetDefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, soundscape.NewConfigurationError("failed to parse YAML config", err)
	}

	return config, nil
}

// loadConfigFromJSON loads from JSON file
func loadConfigFromJSON(filePath string) (*configs.Config, error) {
	data, err := readConfigFile(filePath)
	if err != nil {
		return nil, err
	}

	config := configs.GetDefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, soundscape.NewConfigurationError("failed to parse JSON config", err)
	}

	return config, nil
}

func readConfigFile(filePath string) ([]byte, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, soundscape.NewConfigurationError("failed to open config file", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, soundscape.NewConfigurationError("failed to read config file", err)
	}
	return data, nil
}

// spectrogramConfig maps the analysis section onto the spectrogram builder
func spectrogramConfig(cfg *configs.Config) audio.SpectrogramConfig {
	g := cfg.GraphSoundscapes
	return audio.SpectrogramConfig{
		TargetSampleRate: g.TargetFS,
		WindowLength:     g.NPerSeg,
		Overlap:          g.NOverlap,
		DynamicRangeDB:   g.DBRange,
	}
}

// loaderConfig maps the analysis and decoder sections onto the audio loader
func loaderConfig(cfg *configs.Config) (*audio.LoaderConfig, error) {
	channel, err := audio.ParseChannel(cfg.GraphSoundscapes.Channel)
	if err != nil {
		return nil, err
	}
	return &audio.LoaderConfig{
		Channel:          channel,
		TargetSampleRate: cfg.GraphSoundscapes.TargetFS,
		FFmpegPath:       cfg.Audio.FFmpegPath,
		FFprobePath:      cfg.Audio.FFprobePath,
		DecodeTimeout:    cfg.Audio.DecodeTimeout,
	}, nil
}

func peakConfig(cfg *configs.Config) peaks.Config {
	g := cfg.GraphSoundscapes
	return peaks.Config{
		MinDistance:   g.MinDistance,
		ThresholdAbs:  g.ThresholdAbs,
		ExcludeBorder: g.ExcludeBorder,
	}
}

func corpusOptions(cfg *configs.Config) corpus.Options {
	opts := corpus.DefaultOptions()
	if len(cfg.Pipeline.Extensions) > 0 {
		opts.Extensions = make([]string, 0, len(cfg.Pipeline.Extensions))
		for _, ext := range cfg.Pipeline.Extensions {
			ext = strings.ToLower(ext)
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			opts.Extensions = append(opts.Extensions, ext)
		}
	}
	opts.Recursive = cfg.Pipeline.Recursive
	return opts
}

// pipelineConfig maps the pipeline section onto the aggregator. Params
// fingerprints every setting that changes a density row.
func pipelineConfig(cfg *configs.Config, progress io.Writer) (pipeline.Config, error) {
	policy, err := pipeline.ParseFailurePolicy(cfg.Pipeline.FailurePolicy)
	if err != nil {
		return pipeline.Config{}, err
	}
	return pipeline.Config{
		Workers:  cfg.Pipeline.Workers,
		Policy:   policy,
		Timeout:  cfg.Pipeline.Timeout,
		Params:   store.Fingerprint(cfg.GraphSoundscapes),
		Progress: progress,
	}, nil
}

// GenerateExampleConfig writes the default configuration as YAML
func GenerateExampleConfig(outputFile string) error {
	data, err := yaml.Marshal(configs.GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(outputFile)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("✅ Example configuration written to: %s\n", outputFile)
	return nil
}

// ValidateConfigFile loads and validates a configuration file
func ValidateConfigFile(configFile string) (*configs.Config, error) {
	config, err := loadConfigFromFile(configFile)
	if err != nil {
		return nil, err
	}

	if err := configs.ValidateConfig(config); err != nil {
		return nil, err
	}

	// the loader must accept the channel too
	if _, err := loaderConfig(config); err != nil {
		return nil, err
	}

	g := config.GraphSoundscapes
	fmt.Printf("✅ Configuration is valid: %s\n", configFile)
	fmt.Printf("   %s\n", titleCaser.String(strings.ReplaceAll("graph_soundscapes", "_", " ")))
	fmt.Printf("   - Sample rate: %d Hz, window %d, overlap %d\n", g.TargetFS, g.NPerSeg, g.NOverlap)
	fmt.Printf("   - Frequency resolution: %.2f Hz\n", spectrogramConfig(config).FreqResolution())
	fmt.Printf("   - Peaks: min distance %d, threshold %.1f dB\n", g.MinDistance, g.ThresholdAbs)
	fmt.Printf("   %s\n", titleCaser.String("pipeline"))
	fmt.Printf("   - Failure policy: %s\n", config.Pipeline.FailurePolicy)

	return config, nil
}
