// Package config loads sqlitoy's configuration via viper: a config.yaml
// searched in a small set of conventional locations, falling back to
// built-in defaults when none is found.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/sqlitoy/sqlitoy/internal/ratelimit"
)

// Config is the complete application configuration.
type Config struct {
	Engine    EngineConfig     `mapstructure:"engine"`
	RestAPI   RestAPIConfig    `mapstructure:"rest_api"`
	RateLimit ratelimit.Config `mapstructure:"rate_limit"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// EngineConfig holds the on-disk snapshot paths the engine persists to.
type EngineConfig struct {
	DBPath    string `mapstructure:"db_path"`
	IndexPath string `mapstructure:"index_path"`
}

// RestAPIConfig holds REST API server configuration.
type RestAPIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	AutoPort bool   `mapstructure:"auto_port"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
	CORS     bool   `mapstructure:"cors"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// DefaultConfig returns configuration with built-in defaults: snapshots
// under ./data, the query server on localhost:3002 with CORS and rate
// limiting enabled, and info-level console logging.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			DBPath:    filepath.Join("data", "database.gob"),
			IndexPath: filepath.Join("data", "index.gob"),
		},
		RestAPI: RestAPIConfig{
			Enabled:  true,
			AutoPort: true,
			Port:     3002,
			Host:     "localhost",
			CORS:     true,
		},
		RateLimit: *ratelimit.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file, searching:
//  1. ./config.yaml (current directory)
//  2. ~/.sqlitoy/config.yaml (user home)
//  3. /etc/sqlitoy/config.yaml (system-wide)
//
// and falling back to DefaultConfig() when none is found.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".sqlitoy"))
	}
	v.AddConfigPath("/etc/sqlitoy")

	return load(v)
}

// LoadFile loads configuration from the YAML file at path, falling back
// to DefaultConfig() if it doesn't exist.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("config: read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("engine.db_path", def.Engine.DBPath)
	v.SetDefault("engine.index_path", def.Engine.IndexPath)

	v.SetDefault("rest_api.enabled", def.RestAPI.Enabled)
	v.SetDefault("rest_api.auto_port", def.RestAPI.AutoPort)
	v.SetDefault("rest_api.port", def.RestAPI.Port)
	v.SetDefault("rest_api.host", def.RestAPI.Host)
	v.SetDefault("rest_api.cors", def.RestAPI.CORS)

	v.SetDefault("rate_limit.enabled", def.RateLimit.Enabled)
	v.SetDefault("rate_limit.global.requests_per_second", def.RateLimit.Global.RequestsPerSecond)
	v.SetDefault("rate_limit.global.burst_size", def.RateLimit.Global.BurstSize)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
}

// Validate checks the configuration for internally consistent values.
func (c *Config) Validate() error {
	if c.Engine.DBPath == "" {
		return fmt.Errorf("engine.db_path is required")
	}
	if c.Engine.IndexPath == "" {
		return fmt.Errorf("engine.index_path is required")
	}
	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when REST API is enabled")
		}
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}
	return nil
}

// EnsureDataDirs creates the directories backing the engine's snapshot
// files, if they don't already exist.
func (c *Config) EnsureDataDirs() error {
	for _, p := range []string{c.Engine.DBPath, c.Engine.IndexPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("config: create data directory for %s: %w", p, err)
		}
	}
	return nil
}

// ConfigDir returns the per-user configuration directory.
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".sqlitoy")
}
