// Package config loads runtime settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendFlatFile = "flatfile"
	BackendPebble   = "pebble"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config stores all configuration for the application.
type Config struct {
	Backend      string `mapstructure:"LEDGER_BACKEND"`
	DataDir      string `mapstructure:"LEDGER_DATA_DIR"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`
	LogLevel     string `mapstructure:"LOG_LEVEL"`
}

// Brokers splits the comma separated broker list; empty means publishing is off.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// SlogLevel maps LOG_LEVEL onto slog, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadConfig reads dir/.env when present, then the environment, which wins.
func LoadConfig(dir string) (*Config, error) {
	if dir == "" {
		dir = "."
	}
	if err := godotenv.Load(dir + "/.env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("LEDGER_BACKEND", BackendFlatFile)
	v.SetDefault("LEDGER_DATA_DIR", "data")
	v.SetDefault("KAFKA_TOPIC", "transaction_completed")
	v.SetDefault("LOG_LEVEL", "info")

	// Bind explicitly so Unmarshal sees keys that only exist in the environment.
	for _, key := range []string{"LEDGER_BACKEND", "LEDGER_DATA_DIR", "DATABASE_URL", "KAFKA_BROKERS", "KAFKA_TOPIC", "LOG_LEVEL"} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config failed: %w", err)
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg Config) error {
	switch cfg.Backend {
	case BackendFlatFile, BackendPebble:
		if cfg.DataDir == "" {
			return errors.New("LEDGER_DATA_DIR is not set")
		}
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set")
		}
	default:
		return fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.Backend)
	}
	if len(cfg.Brokers()) > 0 && cfg.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is not set")
	}
	return nil
}
