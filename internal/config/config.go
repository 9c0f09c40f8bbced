package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string `yaml:"database_url"`

	// Auth0
	Auth0Domain   string `yaml:"auth0_domain"`
	Auth0Audience string `yaml:"auth0_audience"`

	// Server
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
	Env         string   `yaml:"env"`
	LogLevel    string   `yaml:"log_level"`

	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	Recurring    RecurringConfig    `yaml:"recurring"`
	Materializer MaterializerConfig `yaml:"materializer"`
}

// RateLimitConfig holds per-user request limits
type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"`
	Burst     int `yaml:"burst"`
}

// RecurringConfig tunes the read-path expansion of recurring definitions
type RecurringConfig struct {
	VirtualWindowDays int `yaml:"virtual_window_days"`
	Fanout            int `yaml:"fanout"`
}

// MaterializerConfig controls the background materializer
type MaterializerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// Load reads configuration from .env, the environment and then the YAML
// file named by CONFIG_FILE, in that order of increasing precedence.
func Load() (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func fromEnv() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	enabled, err := getEnvBool("MATERIALIZER_ENABLED", true)
	if err != nil {
		errs = append(errs, err.Error())
	}
	interval, err := getEnvDuration("MATERIALIZER_INTERVAL", time.Hour)
	if err != nil {
		errs = append(errs, err.Error())
	}

	cfg := &Config{
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Auth0Domain:   getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		Port:          getEnv("PORT", "8080"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		RateLimit: RateLimitConfig{
			PerMinute: intVar("RATE_LIMIT_PER_MINUTE", 100),
			Burst:     intVar("RATE_LIMIT_BURST", 10),
		},
		Recurring: RecurringConfig{
			VirtualWindowDays: intVar("VIRTUAL_WINDOW_DAYS", 90),
			Fanout:            intVar("RECURRING_FANOUT", 8),
		},
		Materializer: MaterializerConfig{
			Enabled:  enabled,
			Interval: interval,
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// overlayFile applies the keys present in a YAML file on top of cfg.
// ${VAR} references are expanded before parsing.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	if c.RateLimit.PerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}
	if c.Recurring.VirtualWindowDays <= 0 {
		return fmt.Errorf("VIRTUAL_WINDOW_DAYS must be positive")
	}
	if c.Recurring.Fanout <= 0 {
		return fmt.Errorf("RECURRING_FANOUT must be positive")
	}
	if c.Materializer.Enabled && c.Materializer.Interval <= 0 {
		return fmt.Errorf("MATERIALIZER_INTERVAL must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", key)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 30m or 1h", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
