// Package config loads the demo server configuration from YAML, the
// environment and defaults, in that order of precedence (environment wins).
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvAddr          = "APICACHE_ADDR"
	EnvRedisAddr     = "APICACHE_REDIS_ADDR"
	EnvRedisPassword = "APICACHE_REDIS_PASSWORD"
	EnvRedisDB       = "APICACHE_REDIS_DB"
	EnvCacheExpiry   = "APICACHE_CACHE_EXPIRY"
	EnvLogLevel      = "APICACHE_LOG_LEVEL"
)

// Config is the demo server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	Cache  CacheConfig  `yaml:"cache"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr            string   `yaml:"addr" validate:"required"`
	ReadTimeout     Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout    Duration `yaml:"write_timeout" validate:"gte=0"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"gt=0"`
}

// RedisConfig holds the external store settings. An empty Addr selects the
// in-memory backend for every endpoint.
type RedisConfig struct {
	Addr         string   `yaml:"addr" validate:"omitempty,hostname_port"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db" validate:"gte=0,lte=15"`
	Prefix       string   `yaml:"prefix"`
	QueryTimeout Duration `yaml:"query_timeout" validate:"gte=0"`
}

// CacheConfig holds defaults applied to every cached endpoint.
type CacheConfig struct {
	Expiry   Duration `yaml:"expiry" validate:"gt=0"`
	Format   string   `yaml:"format" validate:"oneof=json msgpack"`
	Coalesce bool     `yaml:"coalesce"`

	// MaxBodyBytes caps JSON request bodies read for cache keys.
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gte=0"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Redis: RedisConfig{
			Prefix:       "apicache",
			QueryTimeout: Duration(2 * time.Second),
		},
		Cache: CacheConfig{
			Expiry:       Duration(24 * time.Hour),
			Format:       "json",
			MaxBodyBytes: 1 << 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path (optional; empty skips the file), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv(EnvAddr, c.Server.Addr)
	c.Redis.Addr = getEnv(EnvRedisAddr, c.Redis.Addr)
	c.Redis.Password = getEnv(EnvRedisPassword, c.Redis.Password)
	c.Log.Level = getEnv(EnvLogLevel, c.Log.Level)

	if v := os.Getenv(EnvRedisDB); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvRedisDB)
		}
		c.Redis.DB = db
	}

	if v := os.Getenv(EnvCacheExpiry); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvCacheExpiry)
		}
		c.Cache.Expiry = d
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
