// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CORSConfig lists the frontend origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RatePolicy describes one sliding-window admission budget.
type RatePolicy struct {
	Requests      int `mapstructure:"requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Window returns the policy window as a duration.
func (p RatePolicy) Window() time.Duration {
	return time.Duration(p.WindowSeconds) * time.Second
}

// LimitsConfig holds the per-endpoint admission policies.
type LimitsConfig struct {
	Search   RatePolicy `mapstructure:"search"`
	Download RatePolicy `mapstructure:"download"`
}

// SourcesConfig points at the external book sources and governs how
// politely we fetch from them.
type SourcesConfig struct {
	PrimaryBaseURL      string  `mapstructure:"primary_base_url"`
	SecondaryBaseURL    string  `mapstructure:"secondary_base_url"`
	UserAgent           string  `mapstructure:"user_agent"`
	FetchTimeoutSeconds int     `mapstructure:"fetch_timeout_seconds"`
	PolitenessRPS       float64 `mapstructure:"politeness_rps"`
	PolitenessBurst     int     `mapstructure:"politeness_burst"`
}

// FetchTimeout returns the per-page fetch deadline.
func (s SourcesConfig) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSeconds) * time.Second
}

// DownloadConfig bounds the file retrieval proxy.
type DownloadConfig struct {
	TimeoutSeconds int   `mapstructure:"timeout_seconds"`
	MaxBytes       int64 `mapstructure:"max_bytes"`
}

// Timeout returns the wall-clock deadline for one download.
func (d DownloadConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOOKFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3001)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("limits.search.requests", 5)
	v.SetDefault("limits.search.window_seconds", 60)
	v.SetDefault("limits.download.requests", 3)
	v.SetDefault("limits.download.window_seconds", 60)
	v.SetDefault("sources.primary_base_url", "https://oceanofpdf.com")
	v.SetDefault("sources.secondary_base_url", "https://www.gutenberg.org")
	v.SetDefault("sources.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("sources.fetch_timeout_seconds", 15)
	v.SetDefault("sources.politeness_rps", 1.0)
	v.SetDefault("sources.politeness_burst", 2)
	v.SetDefault("download.timeout_seconds", 30)
	v.SetDefault("download.max_bytes", int64(50*1024*1024))
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Limits.Search.Requests <= 0 || c.Limits.Search.WindowSeconds <= 0 {
		return fmt.Errorf("limits.search must have positive requests and window")
	}
	if c.Limits.Download.Requests <= 0 || c.Limits.Download.WindowSeconds <= 0 {
		return fmt.Errorf("limits.download must have positive requests and window")
	}
	if c.Sources.PrimaryBaseURL == "" {
		return fmt.Errorf("sources.primary_base_url must be set")
	}
	if c.Sources.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("sources.fetch_timeout_seconds must be > 0")
	}
	if c.Download.TimeoutSeconds <= 0 {
		return fmt.Errorf("download.timeout_seconds must be > 0")
	}
	if c.Download.MaxBytes <= 0 {
		return fmt.Errorf("download.max_bytes must be > 0")
	}
	return nil
}
