package server

import (
	"fmt"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for configuration environment variables.
// Example: CHATTERD_STORE_BACKEND=sqlite maps to store.backend.
const EnvPrefix = "CHATTERD_"

// Store backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds server configuration.
type Config struct {
	Listen   string      `koanf:"listen"`    // TCP bind address
	WSListen string      `koanf:"ws_listen"` // WebSocket bind address (empty = disabled)
	Metrics  string      `koanf:"metrics"`   // Prometheus HTTP bind address (empty = disabled)
	Store    StoreConfig `koanf:"store"`
	Log      LogConfig   `koanf:"log"`
}

// StoreConfig selects and locates the user store backend.
type StoreConfig struct {
	Backend string `koanf:"backend"` // "file" or "sqlite"
	Path    string `koanf:"path"`    // users file or database path
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Listen: "127.0.0.1:9009",
		Store: StoreConfig{
			Backend: BackendFile,
			Path:    "users.json",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig builds a Config from defaults, an optional YAML file, and
// CHATTERD_* environment variables, in increasing priority.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return cfg, fmt.Errorf("server: load config file: %w", err)
		}
	}

	// CHATTERD_STORE_BACKEND -> store.backend
	envTransform := func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return cfg, fmt.Errorf("server: load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("server: unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("server: unknown store backend %q (valid: file, sqlite)", c.Store.Backend)
	}
	if c.Listen == "" {
		return fmt.Errorf("server: listen address must not be empty")
	}
	return nil
}
