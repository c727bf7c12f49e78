package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"
log_level = "debug"

[venue]
paper_fee_bps = 10

[archive]
interval = "30m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "dev" || cfg.LogLevel != "debug" {
		t.Errorf("mode/log_level = %s/%s", cfg.Mode, cfg.LogLevel)
	}
	if cfg.Venue.PaperFeeBps != 10 {
		t.Errorf("paper_fee_bps = %d, want 10", cfg.Venue.PaperFeeBps)
	}
	if cfg.Archive.Interval.Duration != 30*time.Minute {
		t.Errorf("archive interval = %s, want 30m", cfg.Archive.Interval.Duration)
	}

	// Untouched fields keep their defaults.
	if cfg.Venue.ChainID != 42161 {
		t.Errorf("chain_id = %d, want default 42161", cfg.Venue.ChainID)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
mode = "dev"

[redis]
addr = "file-redis:6379"
`)

	t.Setenv("YVAULT_REDIS_ADDR", "env-redis:6379")
	t.Setenv("YVAULT_VENUE_CHAIN_ID", "1")
	t.Setenv("YVAULT_VENUE_ADMINS", "0x00000000000000000000000000000000000000a1, 0x00000000000000000000000000000000000000a2")
	t.Setenv("YVAULT_SERVER_ENABLED", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Redis.Addr != "env-redis:6379" {
		t.Errorf("redis addr = %s, want env override", cfg.Redis.Addr)
	}
	if cfg.Venue.ChainID != 1 {
		t.Errorf("chain_id = %d, want 1", cfg.Venue.ChainID)
	}
	if len(cfg.Venue.Admins) != 2 {
		t.Fatalf("admins = %v, want 2 entries", cfg.Venue.Admins)
	}
	if cfg.Server.Enabled {
		t.Error("server should be disabled via env")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Venue.OperatorKey = "deadbeef"
	cfg.Postgres.Password = "hunter2"
	cfg.Server.AdminKey = "root"
	cfg.Redis.Password = "" // empty fields stay empty

	red := RedactedConfig(&cfg)

	if red.Venue.OperatorKey != "***" || red.Postgres.Password != "***" || red.Server.AdminKey != "***" {
		t.Error("secrets survived redaction")
	}
	if red.Redis.Password != "" {
		t.Error("empty secret should stay empty")
	}
	if cfg.Venue.OperatorKey != "deadbeef" {
		t.Error("redaction mutated the original config")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Defaults()
		cfg.Mode = "serve"
		cfg.Venue.RPCURL = "https://rpc.example.org"
		cfg.Venue.RouterAddress = "0x00000000000000000000000000000000000000aa"
		cfg.Venue.OperatorKey = "deadbeef"
		cfg.Postgres.Host = "localhost"
		cfg.Server.AdminKey = "secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid serve config", mutate: func(c *Config) {}},
		{name: "dev mode needs nothing", mutate: func(c *Config) {
			*c = Defaults()
			c.Mode = "dev"
			c.Server.AdminKey = "secret"
		}},
		{name: "unknown mode", mutate: func(c *Config) { c.Mode = "replay" }, wantErr: true},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "trace" }, wantErr: true},
		{name: "missing rpc url", mutate: func(c *Config) { c.Venue.RPCURL = "" }, wantErr: true},
		{name: "bad router address", mutate: func(c *Config) { c.Venue.RouterAddress = "not-an-address" }, wantErr: true},
		{name: "no key source", mutate: func(c *Config) { c.Venue.OperatorKey = "" }, wantErr: true},
		{name: "no postgres", mutate: func(c *Config) { c.Postgres.Host = ""; c.Postgres.DSN = "" }, wantErr: true},
		{name: "bad admin address", mutate: func(c *Config) { c.Venue.Admins = []string{"nope"} }, wantErr: true},
		{name: "server without admin key", mutate: func(c *Config) { c.Server.AdminKey = "" }, wantErr: true},
		{name: "server port out of range", mutate: func(c *Config) { c.Server.Port = 70_000 }, wantErr: true},
		{name: "archive without bucket", mutate: func(c *Config) { c.Archive.Enabled = true }, wantErr: true},
		{name: "archive ok", mutate: func(c *Config) {
			c.Archive.Enabled = true
			c.S3.Bucket = "vault-archive"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
