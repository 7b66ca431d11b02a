// Package coins is the balance engine: a clamped integer balance in a shared
// store, reset to a starting amount at a daily boundary, kept in step across
// every instance that shares the store.
package coins

import (
	"context"
	"sync"
	"time"

	"coin-service/internal/display"
	"coin-service/internal/schedule"
	"coin-service/internal/store"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

type Settings struct {
	StartingAmount int64
	// LegacyAmount is the starting amount of the previous deployment; a
	// balance still at that value is bumped once. Zero disables the bump.
	LegacyAmount int64
	Policy       schedule.Policy
	Keys         Keys
}

func DefaultSettings(loc *time.Location) Settings {
	return Settings{
		StartingAmount: 500,
		LegacyAmount:   100,
		Policy:         schedule.Noon(loc),
		Keys:           KeysFor("casino-coins"),
	}
}

type Config struct {
	// ID identifies this instance in change notifications. Generated when empty.
	ID       string
	Settings Settings
	Store    store.Store
	// Publisher, when set, announces every write to other instances.
	Publisher store.Publisher
	Display   *display.Synchronizer
	Clock     clockwork.Clock
	Log       *logrus.Logger
}

// Instance is one tab's worth of coin state: it owns the reset timer, the
// countdown refresh and the cross-instance subscription, and releases all of
// them on Close. Every public method runs under one lock, so calls behave as
// if on a single thread.
type Instance struct {
	id       string
	settings Settings
	clock    clockwork.Clock
	log      *logrus.Logger
	display  *display.Synchronizer

	mu        sync.Mutex
	ledger    *Ledger
	scheduler *Scheduler
	bridge    *Bridge
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) *Instance {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Display == nil {
		cfg.Display = display.NewSynchronizer(display.Options{
			Clock:    cfg.Clock,
			Location: cfg.Settings.Policy.Location,
		})
	}

	s := cfg.Store
	if cfg.Publisher != nil {
		s = store.NewNotifying(s, cfg.ID, cfg.Publisher)
	}
	log := cfg.Log
	kv := &kv{s: s, log: log}

	ctx, cancel := context.WithCancel(context.Background())
	i := &Instance{
		id:       cfg.ID,
		settings: cfg.Settings,
		clock:    cfg.Clock,
		log:      log,
		display:  cfg.Display,
		ctx:      ctx,
		cancel:   cancel,
	}

	i.ledger = &Ledger{
		kv:       kv,
		keys:     cfg.Settings.Keys,
		starting: cfg.Settings.StartingAmount,
		legacy:   cfg.Settings.LegacyAmount,
		display:  cfg.Display,
		log:      log,
	}
	i.scheduler = &Scheduler{
		kv:       kv,
		keys:     cfg.Settings.Keys,
		policy:   cfg.Settings.Policy,
		starting: cfg.Settings.StartingAmount,
		ledger:   i.ledger,
		clock:    cfg.Clock,
		log:      log,
		fire:     i.onTimer,
	}
	i.ledger.beforeRead = func() { i.scheduler.CheckDue(i.clock.Now()) }
	i.bridge = &Bridge{
		origin:  cfg.ID,
		keys:    cfg.Settings.Keys,
		display: cfg.Display,
		clock:   cfg.Clock,
		log:     log,
	}

	return i
}

// Start initializes the store, applies a due reset, renders the current
// state and begins listening. changes may be nil when no other instance
// shares the store.
func (i *Instance) Start(changes <-chan store.Change) {
	i.mu.Lock()
	i.ledger.Init()
	i.scheduler.Reconcile(i.clock.Now())
	i.display.RenderBalance(i.ledger.peek())
	i.mu.Unlock()

	if changes != nil {
		i.wg.Add(1)
		go func() {
			defer i.wg.Done()
			i.bridge.Run(i.ctx, changes)
		}()
	}

	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.display.RunCountdown(i.ctx, i.NextReset, i.Wake)
	}()

	i.log.WithFields(logrus.Fields{
		"instance": i.id,
		"starting": i.settings.StartingAmount,
	}).Info("coin instance started")
}

// Close cancels the reset timer, the countdown and the change subscription.
func (i *Instance) Close() {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return
	}
	i.closed = true
	i.scheduler.Stop()
	i.mu.Unlock()

	i.cancel()
	i.wg.Wait()
	i.display.Close()
}

func (i *Instance) ID() string { return i.id }

func (i *Instance) Display() *display.Synchronizer { return i.display }

// Balance returns the current balance after applying any due reset.
func (i *Instance) Balance() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ledger.Read()
}

// SetBalance stores max(0, floor(n)).
func (i *Instance) SetBalance(n float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ledger.Write(FloorAmount(n))
}

func (i *Instance) Add(amount float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ledger.Add(FloorAmount(amount))
}

func (i *Instance) Subtract(amount float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.ledger.Subtract(FloorAmount(amount))
}

// Spend is an alias of Subtract.
func (i *Instance) Spend(amount float64) { i.Subtract(amount) }

func (i *Instance) CanAfford(amount float64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ledger.CanAfford(FloorAmount(amount))
}

// TrySpend deducts floor(amount) if the balance covers it and reports whether
// it did. The check and the write happen under one lock acquisition.
func (i *Instance) TrySpend(amount float64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ledger.TrySpend(FloorAmount(amount))
}

func (i *Instance) Format(n int64) string {
	return i.display.Format(n)
}

// NextReset returns the persisted instant of the next scheduled reset.
func (i *Instance) NextReset() (time.Time, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.scheduler.NextReset()
}

// Reconcile applies a due reset at now and re-arms the timer.
func (i *Instance) Reconcile(now time.Time) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.reconcileLocked(now)
}

// Wake is the visibility-regained hook: it reconciles and re-renders.
func (i *Instance) Wake() {
	i.mu.Lock()
	defer i.mu.Unlock()
	now := i.clock.Now()
	i.reconcileLocked(now)
	i.display.RenderBalance(i.ledger.peek())
	if next, ok := i.scheduler.NextReset(); ok {
		i.display.RenderCountdown(next, now)
	}
}

// Subscribe delivers every balance change, local or from another instance.
func (i *Instance) Subscribe(buffer int) (<-chan int64, func()) {
	return i.display.Subscribe(buffer)
}

// SchedulerState exposes the pending timer for diagnostics.
func (i *Instance) SchedulerState() (State, time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.scheduler.State()
}

func (i *Instance) onTimer() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return
	}
	i.reconcileLocked(i.clock.Now())
}

func (i *Instance) reconcileLocked(now time.Time) bool {
	if i.closed {
		return false
	}
	return i.scheduler.Reconcile(now)
}
