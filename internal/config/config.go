// Package config loads server settings from defaults, an optional YAML file
// and the environment, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the server.
type Config struct {
	Port     int    `yaml:"port"`
	DBDriver string `yaml:"db_driver"`
	DBPath   string `yaml:"db_path"`

	// DatabaseURL is the PostgreSQL DSN, used when DBDriver is postgres.
	DatabaseURL string `yaml:"database_url"`

	// JWTSecret enables bearer-token auth on the RPC services when set.
	JWTSecret string `yaml:"jwt_secret"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	CommissionPercent       int64         `yaml:"commission_percent"`
	PaymentEarnDivisor      int64         `yaml:"payment_earn_divisor"`
	DeliveryEarnDivisor     int64         `yaml:"delivery_earn_divisor"`
	AllocatorCandidateLimit int           `yaml:"allocator_candidate_limit"`
	SettlementInterval      time.Duration `yaml:"settlement_interval"`
	ReturnWindow            time.Duration `yaml:"return_window"`
	GatewayTimeout          time.Duration `yaml:"gateway_timeout"`

	// RateLimitRPS of 0 disables per-user rate limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// Stock seeds the in-process inventory when no external catalog is wired.
	// Only settable from the config file.
	Stock map[string]int64 `yaml:"stock"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:                    8080,
		DBDriver:                "sqlite",
		DBPath:                  "./data/helperpoints.db",
		LogLevel:                "info",
		LogFormat:               "text",
		CommissionPercent:       5,
		PaymentEarnDivisor:      100,
		DeliveryEarnDivisor:     50,
		AllocatorCandidateLimit: 50,
		SettlementInterval:      time.Hour,
		ReturnWindow:            7 * 24 * time.Hour,
		GatewayTimeout:          10 * time.Second,
		RateLimitRPS:            0,
		RateLimitBurst:          20,
	}
}

// Load reads .env if present, then the YAML file named by CONFIG_FILE, then
// the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	integer("PORT", &c.Port)
	str("DB_DRIVER", &c.DBDriver)
	str("DB_PATH", &c.DBPath)
	str("DATABASE_URL", &c.DatabaseURL)
	str("JWT_SECRET", &c.JWTSecret)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	int64v("COMMISSION_PERCENT", &c.CommissionPercent)
	int64v("PAYMENT_EARN_DIVISOR", &c.PaymentEarnDivisor)
	int64v("DELIVERY_EARN_DIVISOR", &c.DeliveryEarnDivisor)
	integer("ALLOCATOR_CANDIDATE_LIMIT", &c.AllocatorCandidateLimit)
	duration("SETTLEMENT_INTERVAL", &c.SettlementInterval)
	duration("RETURN_WINDOW", &c.ReturnWindow)
	duration("GATEWAY_TIMEOUT", &c.GatewayTimeout)
	float("RATE_LIMIT_RPS", &c.RateLimitRPS)
	integer("RATE_LIMIT_BURST", &c.RateLimitBurst)

	return errors.Join(errs...)
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required for sqlite"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("database_url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db_driver %q", c.DBDriver))
	}
	if c.CommissionPercent < 0 || c.CommissionPercent > 100 {
		errs = append(errs, fmt.Errorf("commission_percent must be within 0..100, got %d", c.CommissionPercent))
	}
	if c.PaymentEarnDivisor <= 0 || c.DeliveryEarnDivisor <= 0 {
		errs = append(errs, errors.New("earn divisors must be positive"))
	}
	if c.AllocatorCandidateLimit <= 0 {
		errs = append(errs, errors.New("allocator_candidate_limit must be positive"))
	}
	if c.SettlementInterval <= 0 || c.GatewayTimeout <= 0 || c.ReturnWindow < 0 {
		errs = append(errs, errors.New("intervals and timeouts must be positive"))
	}
	for product, qty := range c.Stock {
		if qty < 0 {
			errs = append(errs, fmt.Errorf("stock for %s cannot be negative", product))
		}
	}
	return errors.Join(errs...)
}

// DSN returns the data source for the configured driver.
func (c Config) DSN() string {
	if c.DBDriver == "postgres" {
		return c.DatabaseURL
	}
	return c.DBPath
}
