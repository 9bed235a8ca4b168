package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses the process environment into the provided struct.
// The struct should use `env` tags to define mappings.
//
// Example:
//
//	type Config struct {
//	    Port     int    `env:"HTTP_PORT" envDefault:"8080"`
//	    LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadFrom parses cfg from an explicit environment instead of os.Environ.
// Variables not present in environ fall back to their envDefault tags.
func LoadFrom(cfg any, environ map[string]string) error {
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
