package config

import (
	"os"
	"path/filepath"
)

// UserDir returns ~/.parley.
func UserDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".parley"), nil
}

// DefaultPath returns the config file location used when --config is not
// given. It falls back to ./config.yaml when the home directory is unknown.
func DefaultPath() string {
	dir, err := UserDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "config.yaml")
}
