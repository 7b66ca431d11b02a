package coins

import (
	"context"
	"strconv"
	"strings"
	"time"

	"coin-service/internal/display"
	"coin-service/internal/metrics"
	"coin-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Bridge reacts to store changes made by other instances. Handlers only
// render; they never write the store or re-arm timers, so a change cannot
// echo back and forth between instances.
type Bridge struct {
	origin  string
	keys    Keys
	display *display.Synchronizer
	clock   clockwork.Clock
	log     *logrus.Logger
}

// Run handles changes until ctx ends or the channel closes.
func (b *Bridge) Run(ctx context.Context, changes <-chan store.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			b.Handle(c)
		}
	}
}

func (b *Bridge) Handle(c store.Change) {
	if c.Origin != "" && c.Origin == b.origin {
		return
	}

	switch c.Key {
	case b.keys.Balance:
		n, err := strconv.ParseInt(strings.TrimSpace(c.Value), 10, 64)
		if err != nil {
			return
		}
		metrics.CrossTabChanges.WithLabelValues("balance").Inc()
		metrics.Balance.Set(float64(n))
		b.display.PublishBalance(n)
	case b.keys.NextReset:
		ms, err := strconv.ParseInt(strings.TrimSpace(c.Value), 10, 64)
		if err != nil {
			return
		}
		metrics.CrossTabChanges.WithLabelValues("next_reset").Inc()
		b.display.RenderCountdown(time.UnixMilli(ms), b.clock.Now())
	default:
		return
	}

	b.log.WithFields(logrus.Fields{
		"key":    c.Key,
		"value":  c.Value,
		"origin": c.Origin,
	}).Debug("applied change from another instance")
}
