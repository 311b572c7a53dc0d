// Package config provides configuration loading for the semgate gateway
// and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	// Server configuration for the HTTP gateway.
	Server ServerConfig `mapstructure:"server"`

	// Catalog points at the dataset/source catalog file.
	Catalog CatalogConfig `mapstructure:"catalog"`

	// Cache configures the shared result cache.
	Cache CacheConfig `mapstructure:"cache"`

	// Guards bound request shape and execution.
	Guards GuardsConfig `mapstructure:"guards"`

	// Stats configures query-stat emission.
	Stats StatsConfig `mapstructure:"stats"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"readTimeout"`
	WriteTimeout string `mapstructure:"writeTimeout"`
}

// CatalogConfig holds catalog loading configuration.
type CatalogConfig struct {
	// Path is the YAML catalog file with datasets, sources, ERDs, and
	// semantic models.
	Path string `mapstructure:"path"`
}

// CacheConfig holds result-cache and single-flight configuration.
type CacheConfig struct {
	// Enabled switches the shared cache on.
	Enabled bool `mapstructure:"enabled"`

	// RedisAddr is the Redis endpoint; empty falls back to the
	// in-memory store.
	RedisAddr     string `mapstructure:"redisAddr"`
	RedisPassword string `mapstructure:"redisPassword"`
	RedisDB       int    `mapstructure:"redisDb"`

	// DefaultTTL is the result lifetime when a dataset declares none.
	DefaultTTL time.Duration `mapstructure:"defaultTtl"`

	// MaxValueBytes skips the cache write for larger results.
	MaxValueBytes int `mapstructure:"maxValueBytes"`

	// LockTTL, WaitTimeout, and PollInterval tune the single-flight
	// protocol.
	LockTTL      time.Duration `mapstructure:"lockTtl"`
	WaitTimeout  time.Duration `mapstructure:"waitTimeout"`
	PollInterval time.Duration `mapstructure:"pollInterval"`

	// Fallback is what a follower does on wait timeout: "promote" or
	// "fail".
	Fallback string `mapstructure:"fallback"`
}

// GuardsConfig bounds request shape and execution time.
type GuardsConfig struct {
	MaxDimensions  int `mapstructure:"maxDimensions"`
	MaxMetrics     int `mapstructure:"maxMetrics"`
	MaxFilterDepth int `mapstructure:"maxFilterDepth"`
	MaxRows        int `mapstructure:"maxRows"`

	// GlobalTimeout caps query execution regardless of dataset settings.
	GlobalTimeout time.Duration `mapstructure:"globalTimeout"`

	// HealthTimeout bounds one adapter health check on the readiness
	// path, retries included.
	HealthTimeout time.Duration `mapstructure:"healthTimeout"`
}

// StatsConfig holds query-stat emission configuration.
type StatsConfig struct {
	// Sink is "stdout", "none", or "postgres".
	Sink string `mapstructure:"sink"`

	// DSN is the postgres connection string when Sink is "postgres".
	DSN string `mapstructure:"dsn"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  "30s",
			WriteTimeout: "60s",
		},
		Catalog: CatalogConfig{
			Path: "catalog.yaml",
		},
		Cache: CacheConfig{
			Enabled:       true,
			DefaultTTL:    60 * time.Second,
			MaxValueBytes: 4 << 20,
			LockTTL:       30 * time.Second,
			WaitTimeout:   10 * time.Second,
			PollInterval:  50 * time.Millisecond,
			Fallback:      "promote",
		},
		Guards: GuardsConfig{
			MaxDimensions:  32,
			MaxMetrics:     32,
			MaxFilterDepth: 8,
			MaxRows:        50000,
			GlobalTimeout:  5 * time.Minute,
			HealthTimeout:  2 * time.Second,
		},
		Stats: StatsConfig{
			Sink: "stdout",
		},
	}
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".semgate"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SEMGATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "60s")
	v.SetDefault("catalog.path", "catalog.yaml")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.redisAddr", "")
	v.SetDefault("cache.defaultTtl", "60s")
	v.SetDefault("cache.maxValueBytes", 4<<20)
	v.SetDefault("cache.lockTtl", "30s")
	v.SetDefault("cache.waitTimeout", "10s")
	v.SetDefault("cache.pollInterval", "50ms")
	v.SetDefault("cache.fallback", "promote")
	v.SetDefault("guards.maxDimensions", 32)
	v.SetDefault("guards.maxMetrics", 32)
	v.SetDefault("guards.maxFilterDepth", 8)
	v.SetDefault("guards.maxRows", 50000)
	v.SetDefault("guards.globalTimeout", "5m")
	v.SetDefault("guards.healthTimeout", "2s")
	v.SetDefault("stats.sink", "stdout")
}
