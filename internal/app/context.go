package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/graphical-soundscape/configs"
	"github.com/RyanBlaney/graphical-soundscape/pkg/output"
	"github.com/RyanBlaney/sonido-sonar/logging"
)

// Context holds the application context and configuration
type Context struct {
	// CLI arguments
	ConfigFile   string // Application configuration file (optional)
	OutputFile   string
	OutputFormat string
	LogLevel     string
	Verbose      bool
	Quiet        bool

	// Runtime context
	Logger logging.Logger
	Config *configs.Config

	// Stdout receives results and progress lines; os.Stdout when nil
	Stdout io.Writer
}

// SoundscapeApp handles the application lifecycle shared by all commands
type SoundscapeApp struct {
	ctx    *Context
	config *configs.Config
	logger logging.Logger
	stdout io.Writer
}

// NewSoundscapeApp creates a new application from the command context
func NewSoundscapeApp(ctx *Context) (*SoundscapeApp, error) {
	// Set up logging
	logger := ctx.Logger
	if logger == nil {
		logger = setupLogging(ctx)
		ctx.Logger = logger
	}

	// Load configuration
	config, err := loadAndMergeConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	ctx.Config = config

	stdout := ctx.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	logger.Debug("Soundscape application initialized", logging.Fields{
		"config_file":   ctx.ConfigFile,
		"output_format": config.OutputFormat,
		"target_fs":     config.GraphSoundscapes.TargetFS,
		"nperseg":       config.GraphSoundscapes.NPerSeg,
		"noverlap":      config.GraphSoundscapes.NOverlap,
	})

	return &SoundscapeApp{
		ctx:    ctx,
		config: config,
		logger: logger,
		stdout: stdout,
	}, nil
}

// Config returns the effective configuration
func (app *SoundscapeApp) Config() *configs.Config {
	return app.config
}

// setupLogging configures logging based on context
func setupLogging(ctx *Context) logging.Logger {
	logger := logging.NewDefaultLogger()
	switch {
	case ctx.Quiet:
		logger.SetLevel(logging.ErrorLevel)
	case ctx.Verbose:
		logger.SetLevel(logging.DebugLevel)
	default:
		logger.SetLevel(parseLevel(ctx.LogLevel))
	}
	logging.SetGlobalLogger(logger)
	return logger
}

func parseLevel(level string) logging.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logging.DebugLevel
	case "warn", "warning":
		return logging.WarnLevel
	case "error":
		return logging.ErrorLevel
	default:
		return logging.InfoLevel
	}
}

// loadAndMergeConfig resolves the configuration: an explicit config on the
// context, then a config file, then viper. CLI overrides are applied last.
func loadAndMergeConfig(ctx *Context) (*configs.Config, error) {
	config := ctx.Config
	var err error
	switch {
	case config != nil:
	case ctx.ConfigFile != "":
		config, err = loadConfigFromFile(ctx.ConfigFile)
	default:
		config, err = configs.LoadConfig(nil)
	}
	if err != nil {
		return nil, err
	}

	if ctx.OutputFormat != "" {
		config.OutputFormat = ctx.OutputFormat
	}
	if ctx.Verbose {
		config.Verbose = true
	}
	if ctx.Quiet {
		config.Output.Progress = false
	}

	if _, err := output.NewFormatter(config.OutputFormat); err != nil {
		return nil, err
	}
	if err := configs.ValidateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// outputResults formats data in the configured format and writes it to the
// output file or stdout
func (app *SoundscapeApp) outputResults(data any) error {
	formattedData, err := output.Render(app.config.OutputFormat, data)
	if err != nil {
		return err
	}

	if app.ctx.OutputFile != "" {
		return app.writeToFile(app.ctx.OutputFile, formattedData)
	}

	_, err = app.stdout.Write(formattedData)
	return err
}

// writeToFile writes data to the specified output file
func (app *SoundscapeApp) writeToFile(path string, data []byte) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	app.logger.Debug("Results written to file", logging.Fields{
		"output_file": path,
		"size_bytes":  len(data),
	})

	return nil
}

// progress returns the writer for per-recording progress lines, or nil
func (app *SoundscapeApp) progress() io.Writer {
	if !app.config.Output.Progress {
		return nil
	}
	return app.stdout
}

// newLogger returns the application logger tagged with a command name
func (app *SoundscapeApp) newLogger(command string) logging.Logger {
	return app.logger.WithFields(logging.Fields{"command": command})
}
