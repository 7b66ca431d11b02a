// Package store is the persistent key/value layer shared by every coin
// instance. All values are string-encoded scalars; any instance may read or
// write any key, and writes are last-write-wins.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the backing store cannot be reached.
var ErrUnavailable = errors.New("store unavailable")

// Store is an origin-scoped scalar key/value store.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Change is the cross-instance notification emitted after a key is written.
type Change struct {
	Key    string    `json:"key"`
	Value  string    `json:"value"`
	Origin string    `json:"origin,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher delivers changes to other instances.
type Publisher interface {
	Publish(ctx context.Context, change Change) error
}

// Notifying wraps a Store so that every successful Set is followed by a
// Change stamped with the writer's origin.
type Notifying struct {
	Store
	origin string
	pub    Publisher
}

func NewNotifying(s Store, origin string, pub Publisher) *Notifying {
	return &Notifying{Store: s, origin: origin, pub: pub}
}

func (n *Notifying) Set(ctx context.Context, key, value string) error {
	if err := n.Store.Set(ctx, key, value); err != nil {
		return err
	}
	if n.pub == nil {
		return nil
	}
	// The write already happened; a lost notification only delays other
	// instances until their next reconcile.
	_ = n.pub.Publish(ctx, Change{
		Key:    key,
		Value:  value,
		Origin: n.origin,
		At:     time.Now(),
	})
	return nil
}
