package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level" validate:"oneof=debug info warn error"`

	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	LocalStore LocalStoreConfig `koanf:"local_store"`
	Sync       SyncConfig       `koanf:"sync"`
	Security   SecurityConfig   `koanf:"security"`
	Validation ValidationConfig `koanf:"validation"`
}

type ServerConfig struct {
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// URL is the remote-store DSN. Empty disables remote sync entirely:
	// the engine then runs purely on local durable state.
	URL             string        `koanf:"url"`
	MaxConns        int           `koanf:"max_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

type LocalStoreConfig struct {
	Path string `koanf:"path" validate:"required"`
}

type SyncConfig struct {
	Timeout        time.Duration `koanf:"timeout" validate:"min=1s,max=30s"`
	Interval       time.Duration `koanf:"interval"` // 0 disables periodic sync
	PushesPerMin   int           `koanf:"pushes_per_min" validate:"min=1"`
	CallBatchLimit int           `koanf:"call_batch_limit" validate:"min=1,max=1000"`
}

type SecurityConfig struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	TokenExpiry time.Duration `koanf:"token_expiry"`
}

type ValidationConfig struct {
	CacheMaxEntries int `koanf:"cache_max_entries" validate:"min=1"`
}

func defaults() *Config {
	return &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			MaxConns:        10,
			ConnMaxLifetime: 5 * time.Minute,
		},
		LocalStore: LocalStoreConfig{
			Path: "callshield.db",
		},
		Sync: SyncConfig{
			Timeout:        8 * time.Second,
			Interval:       0,
			PushesPerMin:   6,
			CallBatchLimit: 100,
		},
		Security: SecurityConfig{
			TokenExpiry: 24 * time.Hour,
		},
		Validation: ValidationConfig{
			CacheMaxEntries: 4096,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// CSHIELD_-prefixed environment variables, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("CSHIELD_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CSHIELD_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
