package commands

import (
	"os"
	"path/filepath"

	"github.com/pstuifzand/minders/internal/config"
)

type Flags struct {
	ConfigPath string
	Owner      string
	Backend    string
	DataDir    string
	LogLevel   string
	LogFile    string

	// Config is loaded in the Before hook with the flags applied on top
	Config *config.Config
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "minders", "config.toml")
	}
	path, err := config.GetConfigPath()
	if err != nil {
		return "config.toml"
	}
	return path
}

// Apply loads the config file and overrides it with the flags that were
// given explicitly.
func (f *Flags) Apply(isSet func(name string) bool) (*config.Config, error) {
	cfg, err := config.LoadFromFile(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if isSet("owner") {
		cfg.Owner = f.Owner
	}
	if isSet("backend") {
		cfg.Backend = f.Backend
	}
	if isSet("data-dir") {
		cfg.DataDir = f.DataDir
	}
	if isSet("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if isSet("log-file") {
		cfg.LogFile = f.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f.Config = cfg
	return cfg, nil
}
