// Package config loads the hearthd YAML configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration. Fields map to the YAML file;
// missing values keep the defaults from Default.
type Config struct {
	Server struct {
		Addr              string        `yaml:"addr"`
		ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
		ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Publish struct {
		URL             string `yaml:"url"`
		IntervalSeconds int    `yaml:"interval_seconds"`
	} `yaml:"publish"`
}

// Default returns the built-in configuration.
func Default() Config {
	var cfg Config
	cfg.Server.Addr = ":8080"
	cfg.Server.ReadHeaderTimeout = 5 * time.Second
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Log.Level = "info"
	cfg.Publish.IntervalSeconds = 60
	return cfg
}

// Load reads path and overlays it on the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return cfg, nil
}
