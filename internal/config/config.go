// Package config loads tallyd configuration from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`

	// ListenAddr is the server bind address.
	ListenAddr string `yaml:"listen_addr"`

	// AssetsDir is where uploaded person photos are stored.
	AssetsDir string `yaml:"assets_dir"`

	// JWTSecret signs and validates bearer tokens.
	JWTSecret string `yaml:"jwt_secret"`

	Remote    Remote    `yaml:"remote"`
	Sync      Sync      `yaml:"sync"`
	Retention Retention `yaml:"retention"`
}

// Remote points a client at its cloud store.
type Remote struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

// Sync tunes the sync engine.
type Sync struct {
	// Debounce is how long to wait after a local save before syncing, so a
	// burst of edits coalesces into one cycle.
	Debounce time.Duration `yaml:"debounce"`

	// MaxRetries bounds attempts per entity type on transient failures.
	MaxRetries int `yaml:"max_retries"`

	// BaseBackoff is the first retry delay; it doubles per attempt.
	BaseBackoff time.Duration `yaml:"base_backoff"`
}

// Retention controls server-side tombstone housekeeping.
type Retention struct {
	// TombstoneTTL is how long tombstones are kept before a purge removes
	// them. Devices offline longer than this can miss deletions.
	TombstoneTTL time.Duration `yaml:"tombstone_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DBPath:     "tally.db",
		ListenAddr: ":8080",
		AssetsDir:  "assets",
		JWTSecret:  "",
		Sync: Sync{
			Debounce:    5 * time.Second,
			MaxRetries:  4,
			BaseBackoff: 500 * time.Millisecond,
		},
		Retention: Retention{
			TombstoneTTL: 90 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.DBPath = getEnv("TALLY_DB_PATH", cfg.DBPath)
	cfg.ListenAddr = getEnv("TALLY_LISTEN_ADDR", cfg.ListenAddr)
	cfg.AssetsDir = getEnv("TALLY_ASSETS_DIR", cfg.AssetsDir)
	cfg.JWTSecret = getEnv("TALLY_JWT_SECRET", cfg.JWTSecret)
	cfg.Remote.BaseURL = getEnv("TALLY_REMOTE_URL", cfg.Remote.BaseURL)
	cfg.Remote.Token = getEnv("TALLY_REMOTE_TOKEN", cfg.Remote.Token)

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
