package config

import (
	"os"

	"gopkg.in/yaml.v2"
)

// LoadFile reads a YAML configuration file, layering it over the
// defaults and validating the result.
func LoadFile(filename string) (*Config, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
