// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	AI         AIConfig
	Generation GenerationConfig
	Deploy     DeployConfig
	Screenshot ScreenshotConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// DatabaseConfig holds the SQLite database location.
type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"sitesmith.db"`
}

// AIConfig holds the generation provider configuration.
type AIConfig struct {
	APIKey       string `envconfig:"AI_API_KEY"`
	BaseURL      string `envconfig:"AI_BASE_URL"`
	Model        string `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	ProjectModel string `envconfig:"AI_PROJECT_MODEL" default:"gpt-4o"`
}

// GenerationConfig holds orchestration settings.
type GenerationConfig struct {
	OutputRoot    string        `envconfig:"CODE_OUTPUT_ROOT" default:"tmp/code_output"`
	HistoryWindow int           `envconfig:"GEN_HISTORY_WINDOW" default:"20"`
	CacheCapacity int           `envconfig:"GEN_CACHE_CAPACITY" default:"1000"`
	CacheWriteTTL time.Duration `envconfig:"GEN_CACHE_WRITE_TTL" default:"30m"`
	CacheIdleTTL  time.Duration `envconfig:"GEN_CACHE_IDLE_TTL" default:"10m"`
}

// DeployConfig holds publishing settings.
type DeployConfig struct {
	Root         string        `envconfig:"CODE_DEPLOY_ROOT" default:"tmp/code_deploy"`
	Domain       string        `envconfig:"APP_DEPLOY_DOMAIN" default:"http://localhost"`
	BuildCommand string        `envconfig:"BUILD_COMMAND" default:"npm install && npm run build"`
	BuildTimeout time.Duration `envconfig:"BUILD_TIMEOUT" default:"5m"`
}

// ScreenshotConfig holds the cover capture service settings.
type ScreenshotConfig struct {
	ServiceURL string        `envconfig:"SCREENSHOT_URL"`
	CoverRoot  string        `envconfig:"COVER_ROOT" default:"tmp/covers"`
	Timeout    time.Duration `envconfig:"SCREENSHOT_TIMEOUT" default:"30s"`
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

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8000", Host: "0.0.0.0"},
		Database: DatabaseConfig{Path: "sitesmith.db"},
		AI: AIConfig{
			Model:        "gpt-4o-mini",
			ProjectModel: "gpt-4o",
		},
		Generation: GenerationConfig{
			OutputRoot:    "tmp/code_output",
			HistoryWindow: 20,
			CacheCapacity: 1000,
			CacheWriteTTL: 30 * time.Minute,
			CacheIdleTTL:  10 * time.Minute,
		},
		Deploy: DeployConfig{
			Root:         "tmp/code_deploy",
			Domain:       "http://localhost",
			BuildCommand: "npm install && npm run build",
			BuildTimeout: 5 * time.Minute,
		},
		Screenshot: ScreenshotConfig{
			CoverRoot: "tmp/covers",
			Timeout:   30 * time.Second,
		},
		Logging:   LogConfig{Level: "info"},
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 200, Enabled: true},
	}
}
