package coins

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"coin-service/internal/metrics"
	"coin-service/internal/store"
	"github.com/sirupsen/logrus"
)

const storeTimeout = 2 * time.Second

// Keys names the persisted entries of one coin deployment.
type Keys struct {
	Balance   string
	NextReset string
	LastReset string
	Migrated  string
	// LegacyAnchor is where an earlier revision kept the next reset instant.
	LegacyAnchor string
}

func KeysFor(prefix string) Keys {
	return Keys{
		Balance:      prefix,
		NextReset:    prefix + "-next-reset",
		LastReset:    prefix + "-last-reset",
		Migrated:     prefix + "-migrated",
		LegacyAnchor: prefix + "-reset-at",
	}
}

// kv wraps the store with per-call timeouts, integer encoding and error
// accounting. Callers decide whether an error degrades to a default.
type kv struct {
	s   store.Store
	log *logrus.Logger
}

func (k *kv) get(key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	v, ok, err := k.s.Get(ctx, key)
	if err != nil {
		k.failed("get", key, err)
		return "", false, err
	}
	return v, ok, nil
}

// getInt reads an integer entry. A present but unparsable value reports
// ok=false, the same as an absent one.
func (k *kv) getInt(key string) (int64, bool, error) {
	v, ok, err := k.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, perr := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if perr != nil {
		k.log.WithFields(logrus.Fields{"key": key, "value": v}).Debug("ignoring corrupt store value")
		return 0, false, nil
	}
	return n, true, nil
}

func (k *kv) set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := k.s.Set(ctx, key, value); err != nil {
		k.failed("set", key, err)
		return err
	}
	return nil
}

func (k *kv) setInt(key string, n int64) error {
	return k.set(key, strconv.FormatInt(n, 10))
}

func (k *kv) failed(op, key string, err error) {
	metrics.StoreErrors.WithLabelValues(op).Inc()
	k.log.WithFields(logrus.Fields{
		"op":    op,
		"key":   key,
		"error": err,
	}).Debug("store access failed")
}

// FloorAmount converts a caller supplied amount to whole coins. NaN counts as
// zero and values beyond the int64 range saturate.
func FloorAmount(x float64) int64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x >= math.MaxInt64:
		return math.MaxInt64
	case x <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Floor(x))
}

func addSaturating(a, b int64) int64 {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	if b < 0 && a < math.MinInt64-b {
		return math.MinInt64
	}
	return a + b
}

func subSaturating(a, b int64) int64 {
	if b < 0 && a > math.MaxInt64+b {
		return math.MaxInt64
	}
	if b > 0 && a < math.MinInt64+b {
		return math.MinInt64
	}
	return a - b
}
