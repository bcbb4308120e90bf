// Package common provides shared utilities for Stacker
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Stacker
type Config struct {
	Environment string             `toml:"environment"`
	Server      ServerConfig       `toml:"server"`
	Storage     StorageConfig      `toml:"storage"`
	Redis       RedisConfig        `toml:"redis"`
	Clients     ClientsConfig      `toml:"clients"`
	Execution   ExecutionConfig    `toml:"execution"`
	Scheduler   SchedulerConfig    `toml:"scheduler"`
	FX          map[string]float64 `toml:"fx"` // units of base currency per one unit of the keyed currency
	Notify      NotifyConfig       `toml:"notify"`
	Auth        AuthConfig         `toml:"auth"`
	Logging     LoggingConfig      `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig selects and configures the record store.
type StorageConfig struct {
	Backend   string `toml:"backend"` // "surrealdb" (default) or "memory"
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// RedisConfig configures the optional Redis used for the scheduler sweep lock.
// An empty Address disables locking.
type RedisConfig struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// ClientsConfig holds price feed client configurations
type ClientsConfig struct {
	Naver    NaverConfig    `toml:"naver"`
	Longport LongportConfig `toml:"longport"`
}

// NaverConfig holds the KRX quote endpoint configuration
type NaverConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *NaverConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// LongportConfig holds Longport OpenAPI credentials for US/HK quotes.
// The client is only created when all three credentials are present.
type LongportConfig struct {
	AppKey      string `toml:"app_key"`
	AppSecret   string `toml:"app_secret"`
	AccessToken string `toml:"access_token"`
	RateLimit   int    `toml:"rate_limit"`
}

// Enabled reports whether Longport credentials are configured.
func (c *LongportConfig) Enabled() bool {
	return c.AppKey != "" && c.AppSecret != "" && c.AccessToken != ""
}

// ExecutionConfig tunes the execution orchestrator.
type ExecutionConfig struct {
	BaseCurrency      string `toml:"base_currency"`
	Timezone          string `toml:"timezone"`          // default timezone when a plan has none
	PriceFetchDelay   string `toml:"price_fetch_delay"` // pause between sequential quote requests
	Timeout           string `toml:"timeout"`           // deadline for one orchestration run
	StrictIdempotency bool   `toml:"strict_idempotency"`
}

// GetPriceFetchDelay parses and returns the inter-request delay
func (c *ExecutionConfig) GetPriceFetchDelay() time.Duration {
	d, err := time.ParseDuration(c.PriceFetchDelay)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// GetTimeout parses and returns the orchestration deadline
func (c *ExecutionConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// SchedulerConfig controls the daily execution sweep.
type SchedulerConfig struct {
	Enabled bool   `toml:"enabled"`
	Spec    string `toml:"spec"` // cron expression evaluated in Execution.Timezone
}

// NotifyConfig holds delivery settings for execution notifications.
type NotifyConfig struct {
	SMTPHost       string `toml:"smtp_host"`
	SMTPPort       int    `toml:"smtp_port"`
	SMTPUsername   string `toml:"smtp_username"`
	SMTPPassword   string `toml:"smtp_password"`
	From           string `toml:"from"`
	WebhookTimeout string `toml:"webhook_timeout"`
}

// GetWebhookTimeout parses and returns the webhook HTTP timeout
func (c *NotifyConfig) GetWebhookTimeout() time.Duration {
	d, err := time.ParseDuration(c.WebhookTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Backend:   "surrealdb",
			Address:   "ws://localhost:8000/rpc",
			Namespace: "stacker",
			Database:  "stacker",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			Naver: NaverConfig{
				BaseURL:   "https://polling.finance.naver.com/api/realtime",
				RateLimit: 5,
				Timeout:   "10s",
			},
			Longport: LongportConfig{
				RateLimit: 5,
			},
		},
		Execution: ExecutionConfig{
			BaseCurrency:    "KRW",
			Timezone:        "Asia/Seoul",
			PriceFetchDelay: "200ms",
			Timeout:         "60s",
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Spec:    "0 8 * * *",
		},
		FX: map[string]float64{
			"KRW": 1,
		},
		Notify: NotifyConfig{
			SMTPPort:       587,
			WebhookTimeout: "5s",
		},
		Auth: AuthConfig{
			JWTSecret: "dev-jwt-secret-change-in-production",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	config.Execution.BaseCurrency = strings.ToUpper(config.Execution.BaseCurrency)
	if config.FX == nil {
		config.FX = map[string]float64{}
	}
	if _, ok := config.FX[config.Execution.BaseCurrency]; !ok {
		config.FX[config.Execution.BaseCurrency] = 1
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("STACKER_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("STACKER_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("STACKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("STACKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if v := os.Getenv("STACKER_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = v
	}
	if v := os.Getenv("STACKER_STORAGE_ADDRESS"); v != "" {
		config.Storage.Address = v
	}
	if v := os.Getenv("STACKER_STORAGE_PASSWORD"); v != "" {
		config.Storage.Password = v
	}

	if v := os.Getenv("STACKER_REDIS_ADDRESS"); v != "" {
		config.Redis.Address = v
	}

	if v := os.Getenv("STACKER_TIMEZONE"); v != "" {
		config.Execution.Timezone = v
	}

	if v := os.Getenv("STACKER_LONGPORT_APP_KEY"); v != "" {
		config.Clients.Longport.AppKey = v
	}
	if v := os.Getenv("STACKER_LONGPORT_APP_SECRET"); v != "" {
		config.Clients.Longport.AppSecret = v
	}
	if v := os.Getenv("STACKER_LONGPORT_ACCESS_TOKEN"); v != "" {
		config.Clients.Longport.AccessToken = v
	}

	if v := os.Getenv("STACKER_SMTP_PASSWORD"); v != "" {
		config.Notify.SMTPPassword = v
	}

	if v := os.Getenv("STACKER_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// LoadLocation resolves the configured default timezone, falling back to a
// fixed KST offset when tzdata is unavailable (e.g. minimal container).
func (c *Config) LoadLocation() *time.Location {
	loc, err := time.LoadLocation(c.Execution.Timezone)
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
