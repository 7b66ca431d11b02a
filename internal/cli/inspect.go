package cli

import (
	"fmt"
	"time"

	"coin-service/internal/coins"
	"coin-service/internal/config"
	"coin-service/internal/database"
	"coin-service/internal/display"
	"coin-service/internal/logger"
	"coin-service/internal/repository"
	"coin-service/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(nextResetCmd)
	rootCmd.AddCommand(balanceCmd)
}

var nextResetCmd = &cobra.Command{
	Use:   "next-reset",
	Short: "Print the next reset boundary for the configured policy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		settings, err := settingsFrom(cfg.Coins)
		if err != nil {
			return err
		}

		now := time.Now()
		next := settings.Policy.NextBoundary(now)
		fmt.Fprintf(cmd.OutOrStdout(), "%s (in %s)\n",
			display.FormatResetTitle(next, settings.Policy.Location),
			display.FormatCountdown(next.Sub(now)))
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the stored balance, applying a due reset first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		log := logger.New(cfg.Debug)
		settings, err := settingsFrom(cfg.Coins)
		if err != nil {
			return err
		}

		db, err := database.New(cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()

		id := uuid.NewString()
		inst := coins.New(coins.Config{
			ID:       id,
			Settings: settings,
			Store:    store.NewRepository(repository.NewEntryRepository(db.DB, log), id),
			Display: display.NewSynchronizer(display.Options{
				Printer:       display.NewPrinter(cfg.Coins.Locale),
				Location:      settings.Policy.Location,
				ReducedMotion: true,
			}),
			Log: log,
		})
		inst.Start(nil)
		defer inst.Close()

		n := inst.Balance()
		fmt.Fprintln(cmd.OutOrStdout(), inst.Format(n))
		if next, ok := inst.NextReset(); ok {
			fmt.Fprintln(cmd.OutOrStdout(), display.FormatResetTitle(next, settings.Policy.Location))
		}
		return nil
	},
}
