// Package config loads the practice CLI settings from flags, environment
// variables and an optional config file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PRACTICE"

// MemoryDSN is an in-memory SQLite database shared by every connection of
// one *sql.DB.
const MemoryDSN = "file::memory:?cache=shared"

type Config struct {
	DSN      string `mapstructure:"dsn"`
	Seed     bool   `mapstructure:"seed"`
	SQL      bool   `mapstructure:"sql"`
	JSON     bool   `mapstructure:"json"`
	LogLevel string `mapstructure:"log_level"`
	Workers  int    `mapstructure:"workers"`
}

// Defaults registers every key so environment variables are picked up by
// Unmarshal even without a config file.
func Defaults(v *viper.Viper) {
	v.SetDefault("dsn", MemoryDSN)
	v.SetDefault("seed", true)
	v.SetDefault("sql", false)
	v.SetDefault("json", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 1)
}

// Load resolves the configuration. Precedence is flags, then PRACTICE_*
// environment variables, then the config file, then defaults. An empty
// file skips the config file.
func Load(flags *pflag.FlagSet, file string) (Config, error) {
	v := viper.New()
	Defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

var keys = []string{"dsn", "seed", "sql", "json", "log_level", "workers"}

// bindFlags maps flag names such as log-level onto the log_level key.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, key := range keys {
		flag := flags.Lookup(strings.ReplaceAll(key, "_", "-"))
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}
	return nil
}

// Level parses LogLevel, falling back to info.
func (cfg Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
