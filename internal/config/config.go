// Package config loads the server's ambient configuration: the env-tag
// struct parsed by caarlos0/env (with optional .env convenience via
// joho/godotenv), grounded on the teacher's config.go. The wire-level
// flags spec §6 names explicitly (--port, --replicaof, --dir,
// --dbfilename) are parsed separately with the stdlib flag package in
// cmd/kvserver, since the spec calls them out as the documented external
// interface rather than ambient knobs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds the ambient knobs the wire protocol itself doesn't
// legislate: logging, metrics, and the blocking-operation tuning
// parameters spec §5 leaves to the implementation.
type Config struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// MetricsAddr, when non-empty, starts a side HTTP listener serving
	// /metrics on this address. Empty disables it so metrics never
	// compete with the RESP port (spec SPEC_FULL.md "Metrics").
	MetricsAddr     string `env:"METRICS_ADDR" envDefault:""`
	MetricsInterval int    `env:"METRICS_INTERVAL_SECONDS" envDefault:"15"`

	WaitPollIntervalMs     int `env:"WAIT_POLL_INTERVAL_MS" envDefault:"10"`
	ReplconfGetackInterval int `env:"REPLCONF_GETACK_INTERVAL_MS" envDefault:"1000"`

	MaxConnections int `env:"MAX_CONNECTIONS" envDefault:"10000"`
}

// Load reads configuration from an optional .env file and the process
// environment, then validates it. Priority: env vars > .env file >
// defaults, matching the teacher's LoadConfig.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks range and enum constraints, the same shape of checks
// as the teacher's Config.Validate.
func (c *Config) Validate() error {
	if c.MaxConnections < 1 {
		return fmt.Errorf("MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.WaitPollIntervalMs < 1 {
		return fmt.Errorf("WAIT_POLL_INTERVAL_MS must be > 0, got %d", c.WaitPollIntervalMs)
	}
	if c.ReplconfGetackInterval < 1 {
		return fmt.Errorf("REPLCONF_GETACK_INTERVAL_MS must be > 0, got %d", c.ReplconfGetackInterval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error (got %q)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of json, pretty (got %q)", c.LogFormat)
	}
	return nil
}
