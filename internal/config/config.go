// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads and saves the bfilter configuration file.
// Command line flags take their defaults from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/espdev/itkcvbf/internal/bilateral"
	"gopkg.in/yaml.v3"
)

// Default location of the configuration file, relative to the working directory
const DefaultPath = "bfilter.yaml"

// Configuration loaded from YAML
type Config struct {
	Filter struct {
		// Number of axes of the volumes to filter, 2 to 4
		Dimension int `yaml:"dimension"`

		bilateral.Params `yaml:",inline"`
	} `yaml:"filter"`

	Output struct {
		// Log file name, or %auto to derive it from the output file name
		Log string `yaml:"log"`

		// Optional JPEG preview of the middle slice
		Preview string `yaml:"preview"`

		// Colour the preview with a false colour ramp instead of grey levels
		FalseColor bool `yaml:"falseColor"`
	} `yaml:"output"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Filter.Dimension = 3
	cfg.Filter.Params = bilateral.DefaultParams()
	cfg.Output.Log = "%auto"
	cfg.Server.Addr = "localhost:8080"
	return cfg
}

// Loads configuration from a YAML file. If the file doesn't exist, returns the defaults.
// Entries missing from the file keep their default values.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Saves the configuration to a YAML file, creating its directory if needed
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// Checks the dimension and the filter parameters
func (cfg *Config) Validate() error {
	if d := cfg.Filter.Dimension; d < 2 || d > 4 {
		return fmt.Errorf("%w: %d", bilateral.ErrInvalidDimension, d)
	}
	return cfg.Filter.Params.Validate()
}

// Returns the filter parameters
func (cfg *Config) Params() bilateral.Params {
	return cfg.Filter.Params
}
