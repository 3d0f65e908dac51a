// Package config provides configuration loading and management for
// dcmtoolbox. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers bounds concurrent slice decoding and per-group
		// conversions
		NumWorkers int `yaml:"numWorkers"`

		// SmoothSigma is the default Gaussian smoothing sigma for STL
		// generation; 0 disables smoothing
		SmoothSigma float64 `yaml:"smoothSigma"`
	} `yaml:"processing"`

	// Grouping parameters
	Grouping struct {
		// SplitBy is the default tag used to partition slices into series
		SplitBy string `yaml:"splitBy"`

		// OrientationPrecision is the number of decimal places direction
		// cosines are rounded to when orientation values become group keys
		OrientationPrecision int `yaml:"orientationPrecision"`
	} `yaml:"grouping"`

	// Video parameters
	Video struct {
		// FPS is the default frame rate for video output
		FPS int `yaml:"fps"`
	} `yaml:"video"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.SmoothSigma = 1.0

	// Set default grouping parameters
	cfg.Grouping.SplitBy = "series-number"
	cfg.Grouping.OrientationPrecision = 3

	// Set default video parameters
	cfg.Video.FPS = 10

	// Set default output parameters
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
