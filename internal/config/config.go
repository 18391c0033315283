// Package config loads and validates preloader configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default redirect endpoints used when no override is configured.
const (
	DefaultRegistryURL = "https://api.guc.edu.kg/list.json"
	DefaultRedirectURL = "https://www.guc.edu.kg/"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Registry RegistryConfig `mapstructure:"registry"`
	Redirect RedirectConfig `mapstructure:"redirect"`
	Progress ProgressConfig `mapstructure:"progress"`
	Session  SessionConfig  `mapstructure:"session"`
	DB       DBConfig       `mapstructure:"db"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RegistryConfig points at the remote site registry.
type RegistryConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// RedirectConfig tunes the resolution chain.
type RedirectConfig struct {
	DefaultURL        string `mapstructure:"default_url"`
	OverridePrefix    string `mapstructure:"override_prefix"`
	NavigationDelayMs int    `mapstructure:"navigation_delay_ms"`
}

// ProgressConfig controls batching for the lifecycle event hub.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// SessionConfig bounds the live session registry. Zero disables a limit.
type SessionConfig struct {
	IdleTTLSeconds int `mapstructure:"idle_ttl_seconds"`
	MaxSessions    int `mapstructure:"max_sessions"`
}

// DBConfig controls access to the navigation journal database. An empty DSN
// keeps the journal in memory.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRELOADER")
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
	v.SetDefault("server.port", 8080)
	v.SetDefault("registry.url", DefaultRegistryURL)
	v.SetDefault("registry.timeout_seconds", 15)
	v.SetDefault("registry.user_agent", "guc-preloader/0.1")
	v.SetDefault("redirect.default_url", DefaultRedirectURL)
	v.SetDefault("redirect.override_prefix", "/s/")
	v.SetDefault("redirect.navigation_delay_ms", 0)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 100)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("session.idle_ttl_seconds", 1800)
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("db.table", "navigations")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if err := requireAbsoluteURL("registry.url", c.Registry.URL); err != nil {
		return err
	}
	if c.Registry.TimeoutSeconds <= 0 {
		return fmt.Errorf("registry.timeout_seconds must be > 0")
	}
	if err := requireAbsoluteURL("redirect.default_url", c.Redirect.DefaultURL); err != nil {
		return err
	}
	prefix := c.Redirect.OverridePrefix
	if len(prefix) < 2 || !strings.HasPrefix(prefix, "/") || !strings.HasSuffix(prefix, "/") {
		return fmt.Errorf("redirect.override_prefix must look like /x/, got %q", prefix)
	}
	if c.Redirect.NavigationDelayMs < 0 {
		return fmt.Errorf("redirect.navigation_delay_ms must be >= 0")
	}
	if c.Session.IdleTTLSeconds < 0 {
		return fmt.Errorf("session.idle_ttl_seconds must be >= 0")
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("session.max_sessions must be >= 0")
	}
	return nil
}

// RegistryTimeout converts the registry timeout into a duration.
func (c Config) RegistryTimeout() time.Duration {
	return time.Duration(c.Registry.TimeoutSeconds) * time.Second
}

// NavigationDelay converts the navigation delay into a duration.
func (c Config) NavigationDelay() time.Duration {
	return time.Duration(c.Redirect.NavigationDelayMs) * time.Millisecond
}

// SessionIdleTTL converts the session idle timeout into a duration.
func (c Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.Session.IdleTTLSeconds) * time.Second
}

// BatchWait converts the progress batch window into a duration.
func (c Config) BatchWait() time.Duration {
	return time.Duration(c.Progress.MaxBatchWaitMs) * time.Millisecond
}

func requireAbsoluteURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
