// Package config loads CLI configuration from the environment and an optional .env file using Viper.
package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds threads-insights configuration loaded from the environment.
type Config struct {
	// ClientID is the Threads app id. CLIENT_ID is accepted as a fallback.
	ClientID string `mapstructure:"THREADS_CLIENT_ID"`
	// ClientSecret is the Threads app secret. CLIENT_SECRET is accepted as a fallback.
	ClientSecret string `mapstructure:"THREADS_CLIENT_SECRET"`
	// RedirectURI must match the app's registered redirect URI.
	RedirectURI string `mapstructure:"THREADS_REDIRECT_URI"`
	// TokenDir is where tokens are saved; empty means ~/.go-threads/tokens.
	TokenDir string `mapstructure:"THREADS_TOKEN_DIR"`
	// Proxy is an optional proxy URL for API requests.
	Proxy string `mapstructure:"THREADS_PROXY"`
	// APIVersion prefixes versioned Graph API paths (e.g. v1.0).
	APIVersion string `mapstructure:"THREADS_API_VERSION"`
	// Timeout is the per-request timeout (e.g. "30s").
	Timeout string `mapstructure:"THREADS_TIMEOUT"`
	// BrowserProfile indexes the built-in browser profiles of the default transport.
	BrowserProfile int `mapstructure:"THREADS_BROWSER_PROFILE"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore missing .env

	v.AutomaticEnv()

	v.SetDefault("THREADS_CLIENT_ID", "")
	v.SetDefault("THREADS_CLIENT_SECRET", "")
	v.SetDefault("CLIENT_ID", "")
	v.SetDefault("CLIENT_SECRET", "")
	v.SetDefault("THREADS_REDIRECT_URI", "")
	v.SetDefault("THREADS_TOKEN_DIR", "")
	v.SetDefault("THREADS_PROXY", "")
	v.SetDefault("THREADS_API_VERSION", "v1.0")
	v.SetDefault("THREADS_TIMEOUT", "30s")
	v.SetDefault("THREADS_BROWSER_PROFILE", 0)
	v.SetDefault("LOG_LEVEL", "info")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.ClientID == "" {
		cfg.ClientID = v.GetString("CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		cfg.ClientSecret = v.GetString("CLIENT_SECRET")
	}

	if d, err := time.ParseDuration(cfg.Timeout); err != nil || d <= 0 {
		return nil, errors.New("config: THREADS_TIMEOUT must be a positive duration")
	}
	return &cfg, nil
}

// RequestTimeout parses Timeout. Returns 30s if unset or invalid.
func (c *Config) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
