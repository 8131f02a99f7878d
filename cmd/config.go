package cmd

import (
	"github.com/RyanBlaney/graphical-soundscape/internal/app"
	"github.com/spf13/cobra"
)

// configCmd groups the configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create and validate configuration files",
}

var configInitCmd = &cobra.Command{
	Use:   "init <file>",
	Short: "Write the default configuration as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.GenerateExampleConfig(args[0])
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a configuration file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := app.ValidateConfigFile(args[0])
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}
