// Package cli holds the coind commands.
package cli

import (
	"fmt"
	"os"

	"coin-service/internal/coins"
	"coin-service/internal/config"
	"coin-service/internal/schedule"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coind",
	Short: "Play-money coin balance with a daily reset",
	Long: `coind keeps a play-money coin balance in a shared store, resets it to the
starting amount every day at the configured local time and keeps every
running instance in step. Configuration is read from the environment.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}

// settingsFrom maps the environment configuration onto engine settings.
func settingsFrom(cfg config.CoinsConfig) (coins.Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return coins.Settings{}, err
	}
	return coins.Settings{
		StartingAmount: cfg.StartingAmount,
		LegacyAmount:   cfg.LegacyAmount,
		Policy: schedule.Policy{
			Hour:     cfg.ResetHour,
			Minute:   cfg.ResetMinute,
			Location: loc,
		},
		Keys: coins.KeysFor(cfg.KeyPrefix),
	}, nil
}
