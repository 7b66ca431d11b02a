package broadcast

import (
	"context"
	"testing"
	"time"

	"coin-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_FanOut(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe(1)
	b, cancelB := h.Subscribe(1)
	defer cancelA()
	defer cancelB()

	c := store.Change{Key: "casino-coins", Value: "700", Origin: "tab-a"}
	require.NoError(t, h.Publish(context.Background(), c))

	assert.Equal(t, c, <-a)
	assert.Equal(t, c, <-b)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	require.NoError(t, h.Publish(context.Background(), store.Change{Key: "k"}))
}

func TestHub_PublishRespectsContext(t *testing.T) {
	h := NewHub()
	_, cancel := h.Subscribe(0)
	defer cancel()

	ctx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, h.Publish(ctx, store.Change{Key: "k"}), context.DeadlineExceeded)
}
