package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RyanBlaney/graphical-soundscape/internal/app"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SOUNDSCAPE"

var (
	configFile   string
	verbose      bool
	quiet        bool
	logLevel     string
	outputFormat string
	outputFile   string
	configDir    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "soundscape",
	Short: "Graphical soundscapes from passive acoustic recordings",
	Long: `Build graphical soundscapes from passive acoustic monitoring recordings.

Each recording is turned into a spectrogram, its local maxima are picked and
counted per frequency bin, and the resulting densities are averaged by hour of
day into a matrix that can be persisted, plotted and compared against
reference soundscapes.

Key features:
- WAV, MP3 and (through ffmpeg) FLAC and other formats
- Polyphase resampling to a common sample rate
- Concurrent corpus processing with skip or abort failure policies
- SQLite cache of per-recording densities for resumable runs
- Matrix persistence as CSV and rendering as PNG
- Acoustic integrity index against forest and grassland templates`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "",
		"config directory (default is $HOME/.config/soundscape)")

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/soundscape/soundscape.yaml)")

	// Output and logging flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"only log errors and hide progress lines")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "",
		"output format (json, table, csv, yaml)")
	rootCmd.PersistentFlags().StringVar(&outputFile, "output-file", "",
		"write the command report to a file instead of stdout")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	// .env values become environment variables unless already set
	_ = godotenv.Load()

	if configFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		// Search config in home directory and /etc
		if configDir != "" {
			viper.AddConfigPath(configDir)
		}
		viper.AddConfigPath(filepath.Join(home, ".config", "soundscape"))
		viper.AddConfigPath("/etc/soundscape")
		viper.AddConfigPath("./configs")
		viper.SetConfigName("soundscape")
		viper.SetConfigType("yaml")
	}

	// Environment variable support
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	} else if configFile != "" {
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", configFile, err)
		os.Exit(1)
	}
}

// initializeConfig initializes configuration after flags are parsed
func initializeConfig(cmd *cobra.Command) error {
	return bindFlags(cmd, viper.GetViper())
}

// bindFlags binds each command flag that has a config key to viper
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := f.Annotations[configKeyAnnotation]
		if !ok || len(key) == 0 {
			return
		}

		// Bind the flag to viper
		if err := v.BindPFlag(key[0], f); err != nil {
			lastErr = err
		}

		// Bind to environment variable
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(key[0], ".", "_"))
		if err := v.BindEnv(key[0], envPrefix+"_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

const configKeyAnnotation = "soundscape_config_key"

// bindConfigKey marks a flag as an override of a configuration key
func bindConfigKey(flags *pflag.FlagSet, flag, key string) {
	if err := flags.SetAnnotation(flag, configKeyAnnotation, []string{key}); err != nil {
		panic(err)
	}
}

// newApp builds the application from the global flags
func newApp() (*app.SoundscapeApp, error) {
	return app.NewSoundscapeApp(&app.Context{
		OutputFile:   outputFile,
		OutputFormat: outputFormat,
		LogLevel:     viper.GetString("log_level"),
		Verbose:      viper.GetBool("verbose"),
		Quiet:        quiet,
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
