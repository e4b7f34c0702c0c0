package main

import (
	"strings"
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		port:             8080,
		store:            storeMemory,
		turnTimeout:      10 * time.Second,
		storeTimeout:     3 * time.Second,
		subscriberBuffer: 16,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"unknown store", func(c *Config) { c.store = "sqlite" }, "unknown store"},
		{"postgres without dsn", func(c *Config) { c.store = storePostgres }, "--database-url"},
		{"postgres with dsn", func(c *Config) { c.store = storePostgres; c.databaseURL = "postgres://x" }, ""},
		{"redis without addr", func(c *Config) { c.store = storeRedis }, "--redis-addr"},
		{"dynamo without table", func(c *Config) { c.store = storeDynamo; c.awsRegion = "us-east-1" }, "--dynamo-table"},
		{"zero turn timeout", func(c *Config) { c.turnTimeout = 0 }, "turn timeout"},
		{"negative store timeout", func(c *Config) { c.storeTimeout = -time.Second }, "store timeout"},
		{"zero buffer", func(c *Config) { c.subscriberBuffer = 0 }, "subscriber buffer"},
		{"relative public url", func(c *Config) { c.publicURL = "/games" }, "public url"},
		{"public url", func(c *Config) { c.publicURL = "https://play.example.com" }, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 8080 || cfg.store != storeMemory || cfg.turnTimeout != 10*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICTACTOE_PORT", "9090")
	t.Setenv("TICTACTOE_STORE", "redis")
	t.Setenv("TICTACTOE_TURN_TIMEOUT", "30s")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.port)
	}
	if cfg.store != storeRedis {
		t.Errorf("expected redis store, got %q", cfg.store)
	}
	if cfg.turnTimeout != 30*time.Second {
		t.Errorf("expected 30s turn timeout, got %s", cfg.turnTimeout)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("TICTACTOE_PORT", "9090")

	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags([]string{"--port", "7070"}); err != nil {
		t.Fatal(err)
	}
	if cfg.port != 7070 {
		t.Errorf("expected flag to win, got %d", cfg.port)
	}
}
