// Package config loads claudehist configuration from a TOML file with
// sensible defaults; command-line flags override anything set here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config holds all claudehist configuration.
type Config struct {
	General GeneralConfig `toml:"general"`
	Remote  RemoteConfig  `toml:"remote"`
}

// GeneralConfig holds local paths.
type GeneralConfig struct {
	// SourceDir is the Claude data directory to mirror.
	SourceDir string `toml:"source_dir,omitempty"`
	// DBPath is the local SQLite database file.
	DBPath string `toml:"db_path,omitempty"`
}

// RemoteConfig holds Cloudflare D1 settings.
type RemoteConfig struct {
	// Enabled selects the remote backend by default.
	Enabled bool `toml:"enabled"`
	// Database is the D1 database name passed to wrangler.
	Database string `toml:"database,omitempty"`
	// FallbackToLocal permits falling back to the local backend when
	// the remote is unreachable.
	FallbackToLocal bool `toml:"fallback_to_local"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		General: GeneralConfig{
			SourceDir: filepath.Join(home, ".claude"),
			DBPath:    filepath.Join(home, ".local", "share", "claude", "conversations.db"),
		},
		Remote: RemoteConfig{
			Database:        "claude",
			FallbackToLocal: true,
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "claudehist")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "claudehist")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	if err := os.MkdirAll(Dir(), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(cfg)
}
