package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/uvfs/uvfs"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Locks    LocksConfig    `mapstructure:"locks"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Cluster  ClusterConfig  `mapstructure:"cluster"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LocksConfig stores lock management settings.
type LocksConfig struct {
	// Exclude lists gitignore-style patterns of content that cannot be locked.
	Exclude  []string       `mapstructure:"exclude"`
	Database DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig stores the lock store connection details.
// Type is either "memory" or "libsql".
type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Type string `mapstructure:"type"`
}

// DispatchConfig stores call dispatch settings.
type DispatchConfig struct {
	CacheAttributes bool `mapstructure:"cacheAttributes"`
	MaxConcurrency  int  `mapstructure:"maxConcurrency"`
}

// ClusterConfig toggles cluster coordination.
type ClusterConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

const (
	StoreMemory = "memory"
	StoreLibSQL = "libsql"
)

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: internal.DefaultLogLevel},
		Locks: LocksConfig{
			Database: DatabaseConfig{DSN: internal.DefaultLockStoreDSN, Type: internal.DefaultLockStoreType},
		},
		Dispatch: DispatchConfig{CacheAttributes: true, MaxConcurrency: internal.DefaultDispatchConcurrency},
	}
}

// LoadConfig reads configuration from file or environment variables.
// A missing config file is not an error; defaults are used instead.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	defaults := Default()
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("locks.exclude", []string{})
	v.SetDefault("locks.database.dsn", defaults.Locks.Database.DSN)
	v.SetDefault("locks.database.type", defaults.Locks.Database.Type)
	v.SetDefault("dispatch.cacheAttributes", defaults.Dispatch.CacheAttributes)
	v.SetDefault("dispatch.maxConcurrency", defaults.Dispatch.MaxConcurrency)
	v.SetDefault("cluster.enabled", defaults.Cluster.Enabled)

	v.SetEnvPrefix(internal.DefaultAppName)
	v.AutomaticEnv()                                   // Read in environment variables that match
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // locks.database.type becomes UVFS_LOCKS_DATABASE_TYPE

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values viper cannot check by itself.
func (c *Config) Validate() error {
	switch c.Locks.Database.Type {
	case StoreMemory:
	case StoreLibSQL:
		if c.Locks.Database.DSN == "" {
			return fmt.Errorf("locks.database.dsn is required for the %s store", StoreLibSQL)
		}
	default:
		return fmt.Errorf("unsupported locks.database.type %q", c.Locks.Database.Type)
	}
	if c.Dispatch.MaxConcurrency <= 0 {
		return fmt.Errorf("dispatch.maxConcurrency must be positive, got %d", c.Dispatch.MaxConcurrency)
	}
	return nil
}
