// File: internal/config/config.go
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Consent   ConsentConfig   `mapstructure:"consent" yaml:"consent"`
	Collector CollectorConfig `mapstructure:"collector" yaml:"collector"`
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool   `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool   `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	RemoteURL       string `mapstructure:"remote_url" yaml:"remote_url"`
	UserAgent       string `mapstructure:"user_agent" yaml:"user_agent"`
	ViewportWidth   int    `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight  int    `mapstructure:"viewport_height" yaml:"viewport_height"`
	ExecPath        string `mapstructure:"exec_path" yaml:"exec_path"`
}

// NetworkConfig tunes page navigation behavior.
type NetworkConfig struct {
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	PostLoadWait      time.Duration `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ConsentConfig controls the cookie-banner acceptance step.
type ConsentConfig struct {
	ButtonSelector string        `mapstructure:"button_selector" yaml:"button_selector"`
	WaitTimeout    time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`
	SettleTime     time.Duration `mapstructure:"settle_time" yaml:"settle_time"`
}

// CollectorConfig tunes the analytics hit collector's scroll pacing.
type CollectorConfig struct {
	ScrollSteps    int           `mapstructure:"scroll_steps" yaml:"scroll_steps"`
	ScrollInterval time.Duration `mapstructure:"scroll_interval" yaml:"scroll_interval"`
	FinalWait      time.Duration `mapstructure:"final_wait" yaml:"final_wait"`
}

// ScanConfig holds per-scan settings, overridable from CLI flags.
type ScanConfig struct {
	TargetURL string `mapstructure:"target_url" yaml:"target_url"`
}

// ServerConfig holds the HTTP API listener settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tagprobe-cli")
	v.SetDefault("logger.log_file", "tagprobe.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)

	// -- Network --
	v.SetDefault("network.navigation_timeout", "30s")
	v.SetDefault("network.post_load_wait", "2s")

	// -- Consent --
	v.SetDefault("consent.button_selector", "#onetrust-accept-btn-handler")
	v.SetDefault("consent.wait_timeout", "5s")
	v.SetDefault("consent.settle_time", "2s")

	// -- Collector --
	v.SetDefault("collector.scroll_steps", 3)
	v.SetDefault("collector.scroll_interval", "1s")
	v.SetDefault("collector.final_wait", "2s")

	// -- Scan --
	v.SetDefault("scan.target_url", "https://www.nespresso.com/fr/fr")

	// -- Server --
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// NewDefaultConfig creates a configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Network.NavigationTimeout <= 0 {
		return fmt.Errorf("network.navigation_timeout must be a positive duration")
	}
	if c.Collector.ScrollSteps <= 0 {
		return fmt.Errorf("collector.scroll_steps must be a positive integer")
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	if c.Browser.RemoteURL != "" {
		u, err := url.Parse(c.Browser.RemoteURL)
		if err != nil || u.Scheme == "" {
			return fmt.Errorf("browser.remote_url %q is not a valid URL", c.Browser.RemoteURL)
		}
	}
	if c.Consent.ButtonSelector == "" {
		return fmt.Errorf("consent.button_selector must not be empty")
	}
	return nil
}
