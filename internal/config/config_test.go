package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "revibes.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFromPath("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("driver = %s", cfg.Database.Driver)
	}
	if cfg.Rewards.ExchangePendingTTL != 24*time.Hour {
		t.Fatalf("pending ttl = %s", cfg.Rewards.ExchangePendingTTL)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Fatalf("addr = %s", cfg.Server.Addr())
	}
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
database:
  driver: postgres
  dsn: postgres://file
redis:
  cache_ttl: 2m
rewards:
  voucher_claim_valid_days: 14
admin:
  user_ids: [file-admin]
`)
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("ADMIN_USER_IDS", "a1, a2")

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://env" {
		t.Fatalf("env should override file dsn, got %s", cfg.Database.DSN)
	}
	if cfg.Redis.CacheTTL != 2*time.Minute {
		t.Fatalf("cache ttl = %s", cfg.Redis.CacheTTL)
	}
	if cfg.Rewards.VoucherClaimValidDays != 14 {
		t.Fatalf("claim days = %d", cfg.Rewards.VoucherClaimValidDays)
	}
	if len(cfg.Admin.UserIDs) != 2 || cfg.Admin.UserIDs[1] != "a2" {
		t.Fatalf("admin ids = %v", cfg.Admin.UserIDs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres"; c.Database.DSN = "" }},
		{"negative burst", func(c *Config) { c.RateLimit.Burst = -1 }},
		{"zero claim days", func(c *Config) { c.Rewards.VoucherClaimValidDays = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
