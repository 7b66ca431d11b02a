package broadcast

import (
	"testing"
	"time"

	"coin-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeCodec(t *testing.T) {
	c := store.Change{
		Key:    "casino-coins-next-reset",
		Value:  "1792065600000",
		Origin: "tab-a",
		At:     time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}

	body, err := EncodeChange(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"casino-coins-next-reset","value":"1792065600000","origin":"tab-a","at":"2026-10-15T12:00:00Z"}`, string(body))

	got, err := DecodeChange(body)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestDecodeChange_Rejects(t *testing.T) {
	_, err := DecodeChange([]byte("not json"))
	assert.Error(t, err)

	_, err = DecodeChange([]byte(`{"value":"1"}`))
	assert.ErrorContains(t, err, "missing key")
}
