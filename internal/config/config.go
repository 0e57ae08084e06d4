// Package config resolves levelup's runtime configuration from defaults,
// an optional YAML file and LEVELUP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by Config.Backend.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all runtime configuration.
type Config struct {
	// UserID selects whose progress is loaded. Default: "local".
	UserID string `yaml:"user"`

	// Backend selects the storage backend.
	// Values: "sqlite", "file", "redis", "memory"
	Backend string `yaml:"backend"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	File   FileConfig   `yaml:"file"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`

	// Autosave is the interval between unconditional saves. 0 disables.
	Autosave time.Duration `yaml:"autosave"`

	// Catalog is a YAML catalog path. Empty uses the built-in catalog.
	Catalog string `yaml:"catalog"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path          string `yaml:"path"` // Default: resolved by store.DefaultDBPath
	KeepRevisions int    `yaml:"keepRevisions"`
}

// FileConfig configures the flat file backend.
type FileConfig struct {
	Path  string `yaml:"path"` // Default: resolved by store.DefaultFilePath
	Quota int64  `yaml:"quota"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Mode  string `yaml:"mode"`  // "off", "dev", "prod"
	Level string `yaml:"level"` // empty keeps the mode default
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserID:  "local",
		Backend: BackendSQLite,
		SQLite: SQLiteConfig{
			KeepRevisions: 5,
		},
		File: FileConfig{
			Quota: 5 << 20,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "levelup:",
		},
		Log: LogConfig{
			Mode: "off",
		},
		Autosave: 5 * time.Second,
	}
}

// Load builds a Config from defaults, then the YAML file named by
// LEVELUP_CONFIG (if set), then environment variables, and validates it.
func Load() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("LEVELUP_CONFIG"); path != "" {
		if err := LoadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays LEVELUP_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv("LEVELUP_USER"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("LEVELUP_BACKEND"); v != "" {
		cfg.Backend = v
	}

	if dir := os.Getenv("LEVELUP_DATA_DIR"); dir != "" {
		cfg.SQLite.Path = filepath.Join(dir, "levelup.db")
		cfg.File.Path = filepath.Join(dir, "levelup.json")
	}
	if v := os.Getenv("LEVELUP_DB"); v != "" {
		cfg.SQLite.Path = v
	}
	if v := os.Getenv("LEVELUP_FILE"); v != "" {
		cfg.File.Path = v
	}

	if v := os.Getenv("LEVELUP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("LEVELUP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LEVELUP_REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LEVELUP_REDIS_DB: %w", err)
		}
		cfg.Redis.DB = n
	}

	if v := os.Getenv("LEVELUP_AUTOSAVE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LEVELUP_AUTOSAVE: %w", err)
		}
		cfg.Autosave = d
	}
	if v := os.Getenv("LEVELUP_CATALOG"); v != "" {
		cfg.Catalog = v
	}
	if v := os.Getenv("LEVELUP_LOG"); v != "" {
		cfg.Log.Mode = v
	}
	if v := os.Getenv("LEVELUP_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	return nil
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error
	if c.UserID == "" {
		errs = append(errs, errors.New("user id is empty"))
	}
	switch c.Backend {
	case BackendSQLite, BackendFile, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.File.Quota <= 0 {
		errs = append(errs, fmt.Errorf("file quota must be positive, got %d", c.File.Quota))
	}
	if c.SQLite.KeepRevisions < 1 {
		errs = append(errs, fmt.Errorf("keepRevisions must be at least 1, got %d", c.SQLite.KeepRevisions))
	}
	if c.Autosave < 0 {
		errs = append(errs, fmt.Errorf("autosave interval must not be negative, got %s", c.Autosave))
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis backend needs an address"))
	}
	return errors.Join(errs...)
}
