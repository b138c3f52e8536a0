package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".pagerank"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads corpus configurations from a YAML file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers should handle this error appropriately based on whether
// the config file path was explicitly specified by the user.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	// Initialize Corpora map if nil
	if cf.Corpora == nil {
		cf.Corpora = make(map[string]CorpusConfig)
	}

	if err := cf.validate(); err != nil {
		return nil, err
	}

	return &cf, nil
}

// validate rejects values that can never be valid estimator parameters.
// Zero values are allowed because they mean "not set".
func (cf *File) validate() error {
	check := func(name string, cc CorpusConfig) error {
		if cc.Damping != 0 && !(cc.Damping > 0 && cc.Damping < 1) {
			return fmt.Errorf("%s: %w", name, ErrInvalidDamping)
		}
		if cc.Samples < 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidSamples)
		}
		if cc.Walkers < 0 {
			return fmt.Errorf("%s: %w", name, ErrInvalidWalkers)
		}
		return nil
	}

	if err := check("defaults", cf.Defaults); err != nil {
		return err
	}
	for dir, cc := range cf.Corpora {
		if err := check("corpora."+dir, cc); err != nil {
			return err
		}
	}
	return nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .pagerank in the current directory
// 3. Look for .pagerank in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	// If explicit path is provided, use it
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	// Check current directory
	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	// Check home directory
	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	// Check XDG config directory
	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
