package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ErrMissingToken is returned by Validate when no Telegram token is configured.
var ErrMissingToken = errors.New("TELEGRAM_TOKEN not set")

type Config struct {
	DB       DBConfig
	Telegram TelegramConfig
	Delivery DeliveryConfig
	HTTP     HTTPConfig
	Log      LogConfig
}

type DBConfig struct {
	// RemoteURL is the Postgres (Supabase) connection string. Empty means local-only mode.
	RemoteURL   string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"pizzaria.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`
}

type TelegramConfig struct {
	Token   string `env:"TELEGRAM_TOKEN"`
	AdminID int64  `env:"ADMIN_ID" envDefault:"0"`
}

type DeliveryConfig struct {
	Fee decimal.Decimal `env:"DELIVERY_FEE" envDefault:"5.00"`
}

type HTTPConfig struct {
	Port int `env:"PORT" envDefault:"8080"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.DB.RemoteURL = strings.TrimSpace(cfg.DB.RemoteURL)
	cfg.Telegram.Token = strings.TrimSpace(cfg.Telegram.Token)
	return &cfg, nil
}

// Validate checks settings that are fatal at startup.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return ErrMissingToken
	}
	if c.Delivery.Fee.IsNegative() {
		return fmt.Errorf("DELIVERY_FEE must be >= 0, got %s", c.Delivery.Fee)
	}
	return nil
}

// RemoteEnabled reports whether remote store credentials were supplied.
func (c *Config) RemoteEnabled() bool {
	return c.DB.RemoteURL != ""
}
