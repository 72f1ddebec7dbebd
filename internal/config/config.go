package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all instinct engine configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Observer  ObserverConfig  `toml:"observer"`
	Instincts InstinctsConfig `toml:"instincts"`
	Evolution EvolutionConfig `toml:"evolution"`
	Dedup     DedupConfig     `toml:"dedup"`
	Privacy   PrivacyConfig   `toml:"privacy"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// ObserverConfig controls observation capture and whether passes run at all.
type ObserverConfig struct {
	Enabled             bool     `toml:"enabled"`
	MaxObservationsMB   int      `toml:"max_observations_mb"`
	ExcludeTools        []string `toml:"exclude_tools"`
	ExcludePathPatterns []string `toml:"exclude_path_patterns"`
}

// InstinctsConfig holds the confidence lifecycle knobs.
type InstinctsConfig struct {
	InitialConfidence    float64 `toml:"initial_confidence"`
	ConfidenceIncrement  float64 `toml:"confidence_increment"`
	MaxConfidence        float64 `toml:"max_confidence"`
	AutoApproveThreshold float64 `toml:"auto_approve_threshold"`
	DecayEnabled         bool    `toml:"decay_enabled"`
	GracePeriodDays      int     `toml:"grace_period_days"`
	DecayPerWeek         float64 `toml:"confidence_decay_per_week"`
	PruneConfidence      float64 `toml:"prune_confidence"`
	PruneStalenessDays   int     `toml:"prune_staleness_days"`
	MaxInstincts         int     `toml:"max_instincts"`
	UsageReinforcement   float64 `toml:"usage_reinforcement"`
}

type EvolutionConfig struct {
	MinClusterSize       int     `toml:"min_cluster_size"`
	MinAverageConfidence float64 `toml:"min_average_confidence"`
}

type DedupConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
}

// PrivacyConfig bounds what the observation writer may record.
type PrivacyConfig struct {
	MaxCommandPreviewLength int      `toml:"max_command_preview_length"`
	MaxContentBytes         int      `toml:"max_content_bytes"`
	ExcludeSecretFiles      []string `toml:"exclude_secret_files"`
	SecretCommandPatterns   []string `toml:"secret_command_patterns"`
}

// Default returns a Config with the stock thresholds.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37717,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Observer: ObserverConfig{
			Enabled:           true,
			MaxObservationsMB: 10,
		},
		Instincts: InstinctsConfig{
			InitialConfidence:    0.3,
			ConfidenceIncrement:  0.1,
			MaxConfidence:        0.95,
			AutoApproveThreshold: 0.7,
			DecayEnabled:         true,
			GracePeriodDays:      14,
			DecayPerWeek:         0.05,
			PruneConfidence:      0.2,
			PruneStalenessDays:   60,
			MaxInstincts:         100,
			UsageReinforcement:   0.02,
		},
		Evolution: EvolutionConfig{
			MinClusterSize:       3,
			MinAverageConfidence: 0.5,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.85,
		},
		Privacy: PrivacyConfig{
			MaxCommandPreviewLength: 200,
			MaxContentBytes:         50 * 1024,
			ExcludeSecretFiles: []string{
				".env", ".env.*", "credentials.*", "*.key", "*.pem",
			},
			SecretCommandPatterns: []string{
				`--token=\S+`, `--password=\S+`, `API_KEY=\S+`,
				`Bearer\s+\S+`, `--secret=\S+`,
			},
		},
	}
}

// DefaultPath returns the default config file path: ~/.instinct/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".instinct", "config.toml"), nil
}

// Load reads the config file at path and overlays it onto the defaults.
// A missing file is not an error — defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
