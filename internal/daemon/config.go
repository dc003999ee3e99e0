// Package daemon holds the server configuration, loaded from
// ~/.timebank/config.toml with sensible defaults for every field.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full daemon configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Ledger  LedgerConfig  `toml:"ledger"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	Metrics bool   `toml:"metrics"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig selects the storage engine.
// Engine is "sqlite" (durable) or "memory" (ephemeral, for development).
type StorageConfig struct {
	Engine string `toml:"engine"`
	Path   string `toml:"path"`
}

// LedgerConfig configures credit provisioning.
type LedgerConfig struct {
	// SignupGrant is the one-time credit granted at account provisioning,
	// in minutes.
	SignupGrant int64 `toml:"signup_grant"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:    "127.0.0.1",
			Port:    8787,
			Metrics: true,
		},
		Storage: StorageConfig{
			Engine: "sqlite",
			Path:   filepath.Join(homeDir(), ".timebank", "timebank.db"),
		},
		Ledger: LedgerConfig{
			SignupGrant: 60,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".timebank", "config.toml")
}

// Load reads the config file at path, overlaying it on the defaults.
// A missing file is not an error — defaults apply.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
