package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coin-service/internal/api"
	"coin-service/internal/broadcast"
	"coin-service/internal/coins"
	"coin-service/internal/config"
	"coin-service/internal/consumer"
	"coin-service/internal/database"
	"coin-service/internal/display"
	"coin-service/internal/logger"
	"coin-service/internal/processor"
	"coin-service/internal/repository"
	"coin-service/internal/store"
	storeSync "coin-service/internal/sync"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a coin instance with its HTTP API",
	Long: `Run one coin instance against the configured store. Changes made by other
instances arrive through RabbitMQ when RABBITMQ_ENABLED is set, otherwise by
polling the store. SIGUSR1 forces a reconcile and re-render.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Debug)

	settings, err := settingsFrom(cfg.Coins)
	if err != nil {
		return err
	}

	// Initialize database
	db, err := database.New(cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	entryRepo := repository.NewEntryRepository(db.DB, log)
	id := uuid.NewString()

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		publisher   store.Publisher
		changes     <-chan store.Change
		broadcaster *broadcast.AMQP
	)
	if cfg.Rabbit.Enabled {
		broadcaster, err = broadcast.NewAMQP(cfg.Rabbit, log)
		if err != nil {
			return err
		}
		defer broadcaster.Close()
		publisher = broadcaster
		changes = broadcaster.Changes()
	} else {
		polled := make(chan store.Change, 64)
		keys := settings.Keys
		go storeSync.WatchStore(ctx, entryRepo,
			[]string{keys.Balance, keys.NextReset},
			cfg.Sync.Interval, polled, log)
		changes = polled
	}

	inst := coins.New(coins.Config{
		ID:        id,
		Settings:  settings,
		Store:     store.NewRepository(entryRepo, id),
		Publisher: publisher,
		Display:   newDisplay(cfg.Coins, settings, log),
		Log:       log,
	})
	if broadcaster != nil {
		broadcaster.OnReconnect(inst.Wake)
	}
	inst.Start(changes)
	defer inst.Close()

	go wakeOnSignal(ctx, inst, log)

	if cfg.Rabbit.Enabled {
		if err := startCommands(ctx, cfg, inst, log); err != nil {
			return err
		}
	}

	server := api.NewServer(inst).WithStoreStats(entryRepo)
	server.EnableMetrics()
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.WithError(err).Error("HTTP server stopped unexpectedly")
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	log.Info("graceful shutdown complete")
	return nil
}

// startCommands consumes balance commands from the command queue and applies
// them to inst in batches.
func startCommands(ctx context.Context, cfg *config.Config, inst *coins.Instance, log *logrus.Logger) error {
	commands := make(chan processor.IncomingCommand, cfg.Batch.Size*2)

	go processor.ProcessBatches(
		ctx,
		inst,
		commands,
		cfg.Batch.Size,
		cfg.Batch.Interval,
		log,
	)

	rmqConsumer, err := consumer.New(cfg.Rabbit, log, commands)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		rmqConsumer.Close()
	}()
	return nil
}

// newDisplay draws a status line on a terminal and logs balance changes
// otherwise. Without a terminal there is nothing to animate.
func newDisplay(cfg config.CoinsConfig, settings coins.Settings, log *logrus.Logger) *display.Synchronizer {
	interactive := term.IsTerminal(int(os.Stdout.Fd()))

	disp := display.NewSynchronizer(display.Options{
		Printer:       display.NewPrinter(cfg.Locale),
		Location:      settings.Policy.Location,
		ReducedMotion: cfg.ReducedMotion || !interactive,
	})

	if interactive {
		panel := display.NewPanel(os.Stdout)
		disp.AddBalanceElement(panel.BalanceElement())
		disp.AddCountdownElement(panel.CountdownElement())
	} else {
		disp.AddBalanceElement(display.NewLogElement(log, "balance changed"))
	}
	return disp
}

func wakeOnSignal(ctx context.Context, inst *coins.Instance, log *logrus.Logger) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGUSR1)
	defer signal.Stop(sig)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			log.Debug("SIGUSR1 received, reconciling")
			inst.Wake()
		}
	}
}
