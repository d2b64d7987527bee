// Package config loads process configuration from the environment.
//
// DATABASE_URL is required and read as is. Everything else is optional and read
// from variables prefixed with TODO_, e.g. TODO_LOG_LEVEL -> log_level. A .env
// file in the working directory is loaded first when present.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Loads .env into the process environment before anything reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	// DatabaseURLEnv names the storage connection string or SQLite file path.
	DatabaseURLEnv = "DATABASE_URL"
	// EnvPrefix marks the optional tunables.
	EnvPrefix = "TODO_"
	// ListenAddr is fixed: all interfaces, port 8080.
	ListenAddr = "0.0.0.0:8080"
)

// Config is the root configuration object.
type Config struct {
	DatabaseURL string `koanf:"database_url" validate:"required"`

	LogLevel  string `koanf:"log_level" validate:"oneof=trace debug info warn error disabled"`
	LogPretty bool   `koanf:"log_pretty"`

	// MaxOpenConns of 0 lets the storage pool pick a per-dialect default.
	MaxOpenConns    int           `koanf:"db_max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"db_max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"db_conn_max_lifetime" validate:"gte=0"`
	AcquireTimeout  time.Duration `koanf:"db_acquire_timeout" validate:"gt=0"`
	BusyTimeout     time.Duration `koanf:"db_busy_timeout" validate:"gte=0"`

	// Workers of 0 sizes the worker pool to the connection pool.
	Workers int `koanf:"workers" validate:"gte=0"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Default returns a Config with every optional value populated.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		ConnMaxLifetime: 30 * time.Minute,
		AcquireTimeout:  5 * time.Second,
		BusyTimeout:     5 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load reads the environment, layers it over Default and validates the result.
// A missing DATABASE_URL is an error so the process can fail fast.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(env.Provider(DatabaseURLEnv, ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("load %s: %w", DatabaseURLEnv, err)
	}
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load %s* variables: %w", EnvPrefix, err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
