// Package config loads process configuration from an optional veery.yaml and
// VEERY_-prefixed environment variables.
package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	// Listen is the HTTP/websocket bind address.
	Listen string `mapstructure:"listen"`
	// Store selects the persistence backend: "sqlite" or "memory".
	Store string `mapstructure:"store"`
	// DBPath is the SQLite database file, used when Store is "sqlite".
	DBPath string `mapstructure:"db_path"`
	// LogLevel is a logrus level name.
	LogLevel string `mapstructure:"log_level"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetDefault("listen", ":3000")
	v.SetDefault("store", "sqlite")
	v.SetDefault("db_path", "./veery.db")
	v.SetDefault("log_level", "info")

	v.SetConfigName("veery")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("veery")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Store != "sqlite" && cfg.Store != "memory" {
		return nil, errors.New("store must be sqlite or memory")
	}
	return &cfg, nil
}
