package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables overriding the default locations.
const (
	EnvConfigPath = "ABOOK_CONFIG_PATH"
	EnvHome       = "ABOOK_HOME"
)

// Defaults are the locations used when the user configures none.
type Defaults struct {
	// ConfigPath is the config file (default ~/.config/abook.toml).
	ConfigPath string
	// BaseDir holds the contact store, index, keys and logs
	// (default ~/.local/share/abook).
	BaseDir string
}

// LogDir is the default log directory.
func (d *Defaults) LogDir() string { return filepath.Join(d.BaseDir, "log") }

// GetDefaults resolves the default locations, environment variables first.
func GetDefaults() (*Defaults, error) {
	configPath, err := envOrHome(EnvConfigPath, ".config", "abook.toml")
	if err != nil {
		return nil, err
	}
	baseDir, err := envOrHome(EnvHome, ".local", "share", "abook")
	if err != nil {
		return nil, err
	}
	return &Defaults{ConfigPath: configPath, BaseDir: baseDir}, nil
}

func envOrHome(env string, elem ...string) (string, error) {
	if path := os.Getenv(env); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append([]string{homeDir}, elem...)...), nil
}
