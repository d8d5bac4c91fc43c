// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/Sanjaya-Inc/Revibes-Backend-sub000/pkg/logger"
)

// PathEnv names the environment variable holding the YAML config path.
const PathEnv = "REVIBES_CONFIG"

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig         `yaml:"server"`
	Database  DatabaseConfig       `yaml:"database"`
	Redis     RedisConfig          `yaml:"redis"`
	Logging   logger.LoggingConfig `yaml:"logging"`
	RateLimit RateLimitConfig      `yaml:"rate_limit"`
	CORS      CORSConfig           `yaml:"cors"`
	Admin     AdminConfig          `yaml:"admin"`
	Rewards   RewardsConfig        `yaml:"rewards"`
	Scheduler SchedulerConfig      `yaml:"scheduler"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"SERVER_HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"`
	AuditLogPath    string        `yaml:"audit_log_path" env:"AUDIT_LOG_PATH"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig selects the persistence backend. Driver "memory" keeps all
// state in process and needs no DSN.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DATABASE_DRIVER"`
	DSN             string        `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	AutoMigrate     bool          `yaml:"auto_migrate" env:"DATABASE_AUTO_MIGRATE"`
}

// RedisConfig configures the catalog cache. An empty address selects the
// in-process cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env:"REDIS_DB"`
	CacheTTL time.Duration `yaml:"cache_ttl" env:"REDIS_CACHE_TTL"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second" env:"RATE_LIMIT_RPS"`
	Burst             int `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	OriginsCSV     string   `yaml:"-" env:"CORS_ALLOWED_ORIGINS"`
}

// AdminConfig lists user ids granted the admin role regardless of the role
// header forwarded by the gateway.
type AdminConfig struct {
	UserIDs    []string `yaml:"user_ids"`
	UserIDsCSV string   `yaml:"-" env:"ADMIN_USER_IDS"`
}

type RewardsConfig struct {
	VoucherClaimValidDays int           `yaml:"voucher_claim_valid_days" env:"VOUCHER_CLAIM_VALID_DAYS"`
	ExchangePendingTTL    time.Duration `yaml:"exchange_pending_ttl" env:"EXCHANGE_PENDING_TTL"`
}

// SchedulerConfig holds cron specs for the maintenance sweeps.
type SchedulerConfig struct {
	Enabled            bool   `yaml:"enabled" env:"SCHEDULER_ENABLED"`
	VoucherExpirySpec  string `yaml:"voucher_expiry" env:"SCHEDULER_VOUCHER_EXPIRY"`
	ExchangeExpirySpec string `yaml:"exchange_expiry" env:"SCHEDULER_EXCHANGE_EXPIRY"`
	MissionSweepSpec   string `yaml:"mission_sweep" env:"SCHEDULER_MISSION_SWEEP"`
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "memory",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{CacheTTL: 5 * time.Minute},
		Logging: logger.LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
		CORS:      CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Rewards: RewardsConfig{
			VoucherClaimValidDays: 30,
			ExchangePendingTTL:    24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Enabled:            true,
			VoucherExpirySpec:  "@every 15m",
			ExchangeExpirySpec: "@every 30m",
			MissionSweepSpec:   "@hourly",
		},
	}
}

// Load reads the file named by REVIBES_CONFIG (if set) and applies
// environment overrides.
func Load() (*Config, error) {
	return LoadFromPath(strings.TrimSpace(os.Getenv(PathEnv)))
}

// LoadFromPath is Load with an explicit file path. An empty path skips the
// file and uses defaults plus environment.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("apply environment: %w", err)
	}
	if v := splitCSV(cfg.CORS.OriginsCSV); len(v) > 0 {
		cfg.CORS.AllowedOrigins = v
	}
	if v := splitCSV(cfg.Admin.UserIDsCSV); len(v) > 0 {
		cfg.Admin.UserIDs = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the service relies on.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver %q not supported", c.Database.Driver)
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if c.Rewards.VoucherClaimValidDays <= 0 {
		return errors.New("rewards.voucher_claim_valid_days must be positive")
	}
	if c.Rewards.ExchangePendingTTL <= 0 {
		return errors.New("rewards.exchange_pending_ttl must be positive")
	}
	return nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
