package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithOutput_Levels(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, NewWithOutput(&bytes.Buffer{}, false).GetLevel())
	assert.Equal(t, logrus.DebugLevel, NewWithOutput(&bytes.Buffer{}, true).GetLevel())
}

func TestNewWithOutput_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithOutput(&buf, false)

	log.Debug("hidden")
	log.WithField("balance", 350).Info("balance changed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "balance changed", entry["msg"])
	assert.Equal(t, float64(350), entry["balance"])
	assert.NotContains(t, buf.String(), "hidden")
}
