package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the configuration for the stepgated service.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`
	DB struct {
		// Driver selects the storage backend: "memory", "sqlite" or
		// "postgres".
		Driver string `mapstructure:"driver"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"db"`
	Sweep struct {
		Enabled         bool `mapstructure:"enabled"`
		IntervalMinutes int  `mapstructure:"interval_minutes"`
	} `mapstructure:"sweep"`
}

// Interval returns the configured sweep interval.
func (c *Config) Interval() time.Duration {
	if c.Sweep.IntervalMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(c.Sweep.IntervalMinutes) * time.Minute
}

// Load reads configuration from config.yaml (working directory or
// ./config) and the environment. Environment variables use the
// STEPGATE prefix with underscores, e.g. STEPGATE_DB_DSN. A non-empty
// path pins the config file instead of searching.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvPrefix("stepgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:stepgate.db?_journal=WAL")
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.interval_minutes", 1)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults and env cover it. An
		// explicitly named file must exist.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	switch cfg.DB.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("unsupported db driver: %q", cfg.DB.Driver)
	}

	return &cfg, nil
}
