// Package config loads runtime settings from an optional .env file, an
// optional config.yaml and the environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppAddr          string        `mapstructure:"APP_ADDR"`
	Env              string        `mapstructure:"ENV"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	DatabasePath     string        `mapstructure:"DATABASE_PATH"`
	AdminPassword    string        `mapstructure:"ADMIN_PASSWORD"`
	SessionSecret    string        `mapstructure:"SESSION_SECRET"`
	SessionTTL       time.Duration `mapstructure:"SESSION_TTL"`
	SizeTablePath    string        `mapstructure:"SIZE_TABLE_PATH"`
	IntakeRatePerMin int           `mapstructure:"INTAKE_RATE_PER_MIN"`
	BaseURL          string        `mapstructure:"BASE_URL"`
	// BackfillInterval schedules a periodic size backfill; 0 disables it.
	BackfillInterval time.Duration `mapstructure:"BACKFILL_INTERVAL"`
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

var keys = []string{
	"APP_ADDR", "ENV", "LOG_LEVEL", "DATABASE_PATH", "ADMIN_PASSWORD",
	"SESSION_SECRET", "SESSION_TTL", "SIZE_TABLE_PATH", "INTAKE_RATE_PER_MIN", "BASE_URL",
	"BACKFILL_INTERVAL",
}

// Load reads configuration. configPaths replaces the default search
// directories for config.yaml ("." and "./config").
func Load(configPaths ...string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(configPaths) == 0 {
		configPaths = []string{".", "./config"}
	}
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	v.SetDefault("APP_ADDR", ":3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_PATH", "castingdesk.db")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SIZE_TABLE_PATH", "")
	v.SetDefault("INTAKE_RATE_PER_MIN", 30)
	v.SetDefault("BASE_URL", "http://localhost:3000")
	v.SetDefault("BACKFILL_INTERVAL", "0s")
	// Unmarshal only sees keys viper knows about; bind the rest explicitly.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.IntakeRatePerMin <= 0 {
		return fmt.Errorf("INTAKE_RATE_PER_MIN must be positive, got %d", c.IntakeRatePerMin)
	}
	if c.BackfillInterval < 0 {
		return fmt.Errorf("BACKFILL_INTERVAL must not be negative, got %s", c.BackfillInterval)
	}
	if c.IsProduction() {
		if c.AdminPassword == "" {
			return errors.New("ADMIN_PASSWORD is required in production")
		}
		if len(c.SessionSecret) < 32 {
			return errors.New("SESSION_SECRET must be at least 32 bytes in production")
		}
	}
	return nil
}
