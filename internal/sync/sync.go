package sync

import (
	"context"
	"sync"
	"time"

	"coin-service/internal/repository"
	"coin-service/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	pollTimeout = 5 * time.Second
)

// WatchStore polls the watched keys and emits a Change for every row whose
// version advanced since the previous poll. It is the cross-instance
// notification source when no broker is configured. Rows present at startup
// are recorded without being emitted.
func WatchStore(
	ctx context.Context,
	entryRepo *repository.EntryRepository,
	keys []string,
	interval time.Duration,
	out chan<- store.Change,
	log *logrus.Logger,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var versions sync.Map

	// Run initial poll
	poll(ctx, entryRepo, keys, &versions, nil, log)

	for {
		select {
		case <-ctx.Done():
			log.Info("stopping store watcher")
			return
		case <-ticker.C:
			poll(ctx, entryRepo, keys, &versions, out, log)
		}
	}
}

func poll(
	ctx context.Context,
	entryRepo *repository.EntryRepository,
	keys []string,
	versions *sync.Map,
	out chan<- store.Change,
	log *logrus.Logger,
) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	entries, err := entryRepo.GetEntriesByKeys(ctx, keys)
	if err != nil {
		log.WithError(err).Debug("failed to poll watched keys")
		return
	}

	changed := 0
	for _, e := range entries {
		prev, seen := versions.Load(e.Key)
		if seen && prev.(uint) == e.Version {
			continue
		}
		versions.Store(e.Key, e.Version)
		if out == nil {
			continue
		}

		select {
		case out <- store.Change{Key: e.Key, Value: e.Value, Origin: e.Origin, At: e.UpdatedAt}:
			changed++
		case <-ctx.Done():
			log.Info("store watch cancelled")
			return
		}
	}

	if changed > 0 {
		log.WithFields(logrus.Fields{
			"changed": changed,
			"watched": len(keys),
		}).Debug("store watch emitted changes")
	}
}
