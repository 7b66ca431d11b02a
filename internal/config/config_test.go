package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "coins.changes", cfg.Rabbit.Exchange)
	assert.Equal(t, "coins.commands", cfg.Rabbit.Queue)
	assert.False(t, cfg.Rabbit.Enabled)
	assert.Equal(t, int64(500), cfg.Coins.StartingAmount)
	assert.Equal(t, int64(100), cfg.Coins.LegacyAmount)
	assert.Equal(t, 12, cfg.Coins.ResetHour)
	assert.Equal(t, "casino-coins", cfg.Coins.KeyPrefix)
	assert.Equal(t, time.Second, cfg.Sync.Interval)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("RABBITMQ_PREFETCH", "0")
	t.Setenv("BATCH_INTERVAL", "250ms")
	t.Setenv("COINS_STARTING_AMOUNT", "1000")
	t.Setenv("COINS_TIMEZONE", "UTC")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 1, cfg.Rabbit.Prefetch)
	assert.Equal(t, 250*time.Millisecond, cfg.Batch.Interval)
	assert.Equal(t, int64(1000), cfg.Coins.StartingAmount)
	assert.True(t, cfg.Debug)

	loc, err := cfg.Coins.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"hour", "COINS_RESET_HOUR", "24"},
		{"minute", "COINS_RESET_MINUTE", "-1"},
		{"starting amount", "COINS_STARTING_AMOUNT", "-5"},
		{"timezone", "COINS_TIMEZONE", "Mars/Olympus_Mons"},
		{"port", "DB_PORT", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
