// Package config loads server configuration. Everything has a default;
// a missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// Dir is the per-user directory holding config and data.
	Dir = ".stride"

	// File is the config filename inside Dir.
	File = "config.yaml"

	// EnvDataDir overrides the data directory when set.
	EnvDataDir = "STRIDE_DATA_DIR"
)

// Config holds the server settings.
type Config struct {
	// DataDir is where the SQLite database lives.
	DataDir string `yaml:"data_dir"`

	// ListLimit caps list and search results.
	ListLimit int `yaml:"list_limit"`

	// MaxNoteLength caps stored note and context content.
	MaxNoteLength int `yaml:"max_note_length"`
}

// Default returns the built-in configuration rooted under the user's
// home directory.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir:       filepath.Join(home, Dir),
		ListLimit:     20,
		MaxNoteLength: 4000,
	}
}

// Path returns the default config file location.
func Path() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, Dir, File)
}

// Load reads the config file at path, layering it over defaults. A
// missing file yields the defaults; a malformed one is an error. The
// STRIDE_DATA_DIR environment variable wins over both.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if dir := os.Getenv(EnvDataDir); dir != "" {
		cfg.DataDir = dir
	}

	if cfg.ListLimit <= 0 {
		cfg.ListLimit = Default().ListLimit
	}
	if cfg.MaxNoteLength <= 0 {
		cfg.MaxNoteLength = Default().MaxNoteLength
	}
	return cfg, nil
}
