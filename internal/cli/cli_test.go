package cli

import (
	"bytes"
	"testing"

	"coin-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFrom(t *testing.T) {
	settings, err := settingsFrom(config.CoinsConfig{
		StartingAmount: 750,
		LegacyAmount:   100,
		ResetHour:      9,
		ResetMinute:    30,
		Timezone:       "Europe/Berlin",
		KeyPrefix:      "arcade",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(750), settings.StartingAmount)
	assert.Equal(t, int64(100), settings.LegacyAmount)
	assert.Equal(t, 9, settings.Policy.Hour)
	assert.Equal(t, 30, settings.Policy.Minute)
	assert.Equal(t, "Europe/Berlin", settings.Policy.Location.String())
	assert.Equal(t, "arcade", settings.Keys.Balance)
	assert.Equal(t, "arcade-next-reset", settings.Keys.NextReset)
}

func TestSettingsFrom_BadTimezone(t *testing.T) {
	_, err := settingsFrom(config.CoinsConfig{Timezone: "Mars/Olympus"})
	assert.Error(t, err)
}

func TestNextResetCommand(t *testing.T) {
	t.Setenv("COINS_TIMEZONE", "UTC")
	t.Setenv("COINS_RESET_HOUR", "12")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"next-reset"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Resets ")
	assert.Contains(t, out.String(), "12:00 UTC")
}
