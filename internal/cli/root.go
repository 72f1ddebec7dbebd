package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/instinct/internal/config"
	"github.com/lazypower/instinct/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "instinct",
	Short: "Learned behavioral instincts for AI coding agents",
	Long:  "Instinct observes agent tool usage, detects recurring patterns, and maintains a confidence-scored set of learned behaviors. Single Go binary.",
}

var configPath string

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.instinct/config.toml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(observeCmd)
	rootCmd.AddCommand(evolveCmd)
	rootCmd.AddCommand(instinctsCmd)
	rootCmd.AddCommand(skillsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(hookCmd)
}

// loadConfig resolves the active configuration for a command run.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

// openDB opens the configured database, falling back to the default path.
func openDB(cfg config.Config) (*store.DB, error) {
	path := cfg.Database.Path
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(path)
}
