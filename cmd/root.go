package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"connkit/internal/config"
	"connkit/internal/logger"
)

// version is set at build time.
var version = "dev"

var (
	cfgFile      string
	outputFormat string
	cfg          *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "connkit",
	Short:         "Run connectors against external systems",
	Long:          "A connector toolkit: build configuration schemas, validate values and execute connector operations against HTTP APIs.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if outputFormat != "table" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q, want table or json", outputFormat)
		}
		loaded, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		if err := logger.Init(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./connkit.yaml)")
	flags.StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "console", "log encoding: console or json")
	flags.Duration("timeout", 0, "timeout of one outbound request (0 uses the configured value)")
	flags.Int("max-retries", 3, "attempts per execution, including the refresh retry")
	flags.Float64("rate-limit", 0, "outbound requests per second across all connectors; 0 disables limiting")
	flags.String("connections-dir", "./connections", "directory containing connection YAML files")
	flags.String("secrets-file", "", "path to .env-style secrets file")
	flags.String("forms-file", "", "YAML or JSON file listing the data entry forms")
	flags.String("content-dir", "./content", "directory holding stored documents")
	flags.String("plugins-dir", "./plugins", "directory containing external plugin executables")
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}
