// Package cli provides the command-line interface for readdigest.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/readdigest/internal/config"
	"github.com/ppiankov/readdigest/internal/logger"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

const defaultConfigDir = ".readdigest"

var (
	configDir string
	logLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "readdigest",
	Short: "Collect new posts from followed writers into a digest",
	Long: "readdigest polls a fixed list of RSS, Atom and JSON feeds, keeps a memory of what it has already " +
		"shown, and prints only the posts that are new since the last run.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "readdigest %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config", defaultConfigDir, "config directory containing config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	defer logger.Close()
	defer logger.Sync()
	return rootCmd.Execute()
}

// loadConfig reads the config directory and points logging at the configured
// level and file. --log-level wins over log.level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.Log.Level
	if logLevel != "" {
		level = logLevel
	}
	if err := logger.Init(logger.Config{Level: level, File: cfg.Log.File}); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
