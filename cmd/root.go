// Package cmd implements the command-line interface for gopace.
package cmd

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/gopace/cmd/httpd"
	"github.com/jonesrussell/gopace/cmd/run"
	"github.com/jonesrussell/gopace/cmd/schedule"
	"github.com/jonesrussell/gopace/cmd/status"
	"github.com/jonesrussell/gopace/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "gopace",
		Short: "Paced execution of automated social-media actions",
		Long: `gopace paces, throttles, caches, and retries automated social-media
actions so an automation agent respects rate limits, avoids burst
patterns, and degrades gracefully under failure.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment overrides are visible to viper.
	_ = godotenv.Load()

	return rootCmd.ExecuteContext(context.Background())
}

// loadConfig is handed to subcommands so they share flag handling.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: built-in defaults plus GOPACE_* environment)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("gopace version 1.0.0")
		},
	})

	rootCmd.AddCommand(run.Command(loadConfig, &debug))
	rootCmd.AddCommand(httpd.Command(loadConfig, &debug))
	rootCmd.AddCommand(schedule.Command(loadConfig, &debug))
	rootCmd.AddCommand(status.Command(loadConfig, &debug))
}
