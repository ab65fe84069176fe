package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"
	BackendMemory = "memory"
)

// Duration is a time.Duration written as a string like "2s" or "168h"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config holds application configuration
type Config struct {
	Owner    string `toml:"owner"`
	Backend  string `toml:"backend"`
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file,omitempty"`

	Save   SaveConfig   `toml:"save"`
	Backup BackupConfig `toml:"backup"`
	Review ReviewConfig `toml:"review"`
}

type SaveConfig struct {
	Debounce Duration `toml:"debounce"`
	Timeout  Duration `toml:"timeout"`
}

type BackupConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval Duration `toml:"interval"`
	Dir      string   `toml:"dir,omitempty"`
	// Keep is the number of backups kept per owner; 0 keeps all.
	Keep int `toml:"keep"`
}

type ReviewConfig struct {
	Window   Duration `toml:"window"`
	Timezone string   `toml:"timezone,omitempty"`
}

// Load loads the config file from the standard location
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return Default(), nil // Return default if can't find config path
	}
	return LoadFromFile(configPath)
}

// LoadFromFile loads config from a specific file. Keys missing from the
// file keep their defaults.
func LoadFromFile(filePath string) (*Config, error) {
	config := Default()

	// If file doesn't exist, return default config
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filePath, err)
	}
	return config, nil
}

// Default returns the default configuration
func Default() *Config {
	owner := os.Getenv("USER")
	if owner == "" {
		owner = "default"
	}
	return &Config{
		Owner:    owner,
		Backend:  BackendSQLite,
		LogLevel: "warn",
		Save: SaveConfig{
			Debounce: Duration{2 * time.Second},
			Timeout:  Duration{10 * time.Second},
		},
		Backup: BackupConfig{
			Enabled:  true,
			Interval: Duration{10 * time.Minute},
			Keep:     50,
		},
		Review: ReviewConfig{
			Window: Duration{7 * 24 * time.Hour},
		},
	}
}

// Validate checks values that cannot be checked by type alone
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSQLite, BackendJSON, BackendMemory:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	if c.Owner == "" {
		return fmt.Errorf("owner must not be empty")
	}
	if c.Save.Debounce.Duration < 0 || c.Save.Timeout.Duration < 0 {
		return fmt.Errorf("save durations must not be negative")
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must not be negative")
	}
	if _, err := c.ReviewLocation(); err != nil {
		return err
	}
	return nil
}

// ReviewLocation returns the timezone that defines "today" for the review
// filter. An empty timezone means the local one.
func (c *Config) ReviewLocation() (*time.Location, error) {
	if c.Review.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Review.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid review timezone: %w", err)
	}
	return loc, nil
}

// ResolveDataDir returns the data directory, defaulting to
// ~/.local/share/minders.
func (c *Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "minders"), nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// GetConfigDir returns the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "minders"), nil
}

// Marshal renders the configuration as TOML
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// SaveTo writes the configuration to filePath, creating its directory
func (c *Config) SaveTo(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
