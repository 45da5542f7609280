package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Cache     CacheConfig
	Pending   PendingConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// BrowserConfig holds browser engine configuration.
type BrowserConfig struct {
	// ControlURL attaches to an already-running browser; when empty a new
	// headless instance is launched via BinPath (or the launcher default).
	ControlURL        string        `envconfig:"BROWSER_CONTROL_URL" default:""`
	BinPath           string        `envconfig:"BROWSER_BIN" default:""`
	Headless          bool          `envconfig:"BROWSER_HEADLESS" default:"true"`
	ViewportWidth     int           `envconfig:"BROWSER_VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight    int           `envconfig:"BROWSER_VIEWPORT_HEIGHT" default:"720"`
	DeviceScale       float64       `envconfig:"BROWSER_DEVICE_SCALE" default:"1.0"`
	NavigationTimeout time.Duration `envconfig:"BROWSER_NAV_TIMEOUT" default:"30s"`
}

// CacheConfig holds network cache admission policy.
type CacheConfig struct {
	MaxTotalBytes     int64 `envconfig:"CACHE_MAX_TOTAL_BYTES" default:"524288000"`
	MaxEntryBytes     int64 `envconfig:"CACHE_MAX_ENTRY_BYTES" default:"10485760"`
	CompressThreshold int64 `envconfig:"CACHE_COMPRESS_THRESHOLD" default:"32768"`
}

// PendingConfig holds the grace period for cloned sessions awaiting attachment.
type PendingConfig struct {
	TTL time.Duration `envconfig:"PENDING_SESSION_TTL" default:"60s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Browser: BrowserConfig{
			Headless:          true,
			ViewportWidth:     1280,
			ViewportHeight:    720,
			DeviceScale:       1.0,
			NavigationTimeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			MaxTotalBytes:     500 * 1024 * 1024,
			MaxEntryBytes:     10 * 1024 * 1024,
			CompressThreshold: 32 * 1024,
		},
		Pending: PendingConfig{
			TTL: 60 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
