package coins

import (
	"coin-service/internal/display"
	"coin-service/internal/metrics"
	"github.com/sirupsen/logrus"
)

// Ledger owns the balance entry. It is not safe for concurrent use; the
// Instance serializes every call.
type Ledger struct {
	kv       *kv
	keys     Keys
	starting int64
	legacy   int64
	display  *display.Synchronizer
	log      *logrus.Logger

	// beforeRead runs the reset due-check so a stale balance is never
	// observed.
	beforeRead func()
}

// Init seeds the balance on first use and runs the one-time legacy bump.
func (l *Ledger) Init() {
	raw, ok, err := l.kv.getInt(l.keys.Balance)
	if err != nil {
		return
	}
	if !ok {
		if err := l.kv.setInt(l.keys.Balance, l.starting); err != nil {
			return
		}
		raw = l.starting
	}

	flag, _, err := l.kv.get(l.keys.Migrated)
	if err != nil || flag == "true" {
		return
	}
	if l.legacy > 0 && l.legacy != l.starting && raw == l.legacy {
		if err := l.kv.setInt(l.keys.Balance, l.starting); err != nil {
			return
		}
		l.log.WithFields(logrus.Fields{
			"from": l.legacy,
			"to":   l.starting,
		}).Info("migrated legacy starting balance")
	}
	_ = l.kv.set(l.keys.Migrated, "true")
}

// Read returns the stored balance, or the starting amount when the entry is
// missing, corrupt or unreadable.
func (l *Ledger) Read() int64 {
	if l.beforeRead != nil {
		l.beforeRead()
	}
	return l.peek()
}

func (l *Ledger) peek() int64 {
	n, ok, err := l.kv.getInt(l.keys.Balance)
	if err != nil || !ok {
		return l.starting
	}
	return n
}

// Write clamps n at zero, persists it and publishes it to the display.
// A failed write changes nothing.
func (l *Ledger) Write(n int64) {
	_ = l.write(n)
}

func (l *Ledger) write(n int64) error {
	if n < 0 {
		n = 0
	}
	if err := l.kv.setInt(l.keys.Balance, n); err != nil {
		return err
	}
	metrics.Balance.Set(float64(n))
	l.display.PublishBalance(n)
	return nil
}

func (l *Ledger) Add(amount int64) {
	l.Write(addSaturating(l.Read(), amount))
}

func (l *Ledger) Subtract(amount int64) {
	l.Write(subSaturating(l.Read(), amount))
}

func (l *Ledger) CanAfford(amount int64) bool {
	return l.Read() >= amount
}

// TrySpend subtracts amount only if the balance covers it.
func (l *Ledger) TrySpend(amount int64) bool {
	cur := l.Read()
	if cur < amount {
		return false
	}
	l.Write(subSaturating(cur, amount))
	return true
}
