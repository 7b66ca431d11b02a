package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Database DatabaseConfig `envPrefix:"DB_"`
	Rabbit   RabbitConfig   `envPrefix:"RABBITMQ_"`
	Batch    BatchConfig    `envPrefix:"BATCH_"`
	Sync     SyncConfig     `envPrefix:"SYNC_"`
	Coins    CoinsConfig    `envPrefix:"COINS_"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Debug    bool           `env:"DEBUG"`
}

type DatabaseConfig struct {
	Driver   string `env:"DRIVER" envDefault:"sqlite"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5432"`
	User     string `env:"USER" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	DBName   string `env:"NAME" envDefault:"coins_db"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
	Path     string `env:"PATH" envDefault:"coins.db"`
}

type RabbitConfig struct {
	Enabled  bool   `env:"ENABLED"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"5672"`
	User     string `env:"USER" envDefault:"guest"`
	Password string `env:"PASSWORD" envDefault:"guest"`
	VHost    string `env:"VHOST" envDefault:"/"`
	Exchange string `env:"EXCHANGE" envDefault:"coins.changes"`
	Queue    string `env:"QUEUE" envDefault:"coins.commands"`
	Prefetch int    `env:"PREFETCH" envDefault:"50"`
}

type BatchConfig struct {
	Size     int           `env:"SIZE" envDefault:"100"`
	Interval time.Duration `env:"INTERVAL" envDefault:"1s"`
}

type SyncConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"1s"`
}

type CoinsConfig struct {
	StartingAmount int64  `env:"STARTING_AMOUNT" envDefault:"500"`
	LegacyAmount   int64  `env:"LEGACY_AMOUNT" envDefault:"100"`
	ResetHour      int    `env:"RESET_HOUR" envDefault:"12"`
	ResetMinute    int    `env:"RESET_MINUTE" envDefault:"0"`
	Timezone       string `env:"TIMEZONE" envDefault:"Local"`
	Locale         string `env:"LOCALE" envDefault:"en"`
	ReducedMotion  bool   `env:"REDUCED_MOTION"`
	KeyPrefix      string `env:"KEY_PREFIX" envDefault:"casino-coins"`
}

type HTTPConfig struct {
	Addr string `env:"ADDR" envDefault:":8080"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Rabbit.Prefetch = clamp(cfg.Rabbit.Prefetch, 1, 1000)
	if cfg.Batch.Size <= 0 {
		cfg.Batch.Size = 100
	}
	if cfg.Coins.ResetHour < 0 || cfg.Coins.ResetHour > 23 {
		return nil, fmt.Errorf("COINS_RESET_HOUR out of range: %d", cfg.Coins.ResetHour)
	}
	if cfg.Coins.ResetMinute < 0 || cfg.Coins.ResetMinute > 59 {
		return nil, fmt.Errorf("COINS_RESET_MINUTE out of range: %d", cfg.Coins.ResetMinute)
	}
	if cfg.Coins.StartingAmount < 0 {
		return nil, fmt.Errorf("COINS_STARTING_AMOUNT must not be negative: %d", cfg.Coins.StartingAmount)
	}
	if _, err := cfg.Coins.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the timezone the daily reset boundary is computed in.
func (c CoinsConfig) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
