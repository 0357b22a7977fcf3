package config

import "testing"

func defaultConfig() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "json",
		WaitPollIntervalMs:     10,
		ReplconfGetackInterval: 1000,
		MaxConnections:         10000,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := defaultConfig().Validate(); err != nil {
		t.Fatalf("unexpected error validating defaults: %v", err)
	}
}

func TestValidateRejectsNonPositiveMaxConnections(t *testing.T) {
	cfg := defaultConfig()
	cfg.MaxConnections = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for MaxConnections <= 0")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for an unrecognized log level")
	}
}

func TestValidateRejectsUnknownLogFormat(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogFormat = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for an unrecognized log format")
	}
}

func TestValidateRejectsNonPositiveIntervals(t *testing.T) {
	cfg := defaultConfig()
	cfg.WaitPollIntervalMs = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for WaitPollIntervalMs <= 0")
	}

	cfg = defaultConfig()
	cfg.ReplconfGetackInterval = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for ReplconfGetackInterval <= 0")
	}
}
