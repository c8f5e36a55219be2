package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json", true)

	logger.Debug("hidden")
	logger.Info("agent initialized", "session", "abc")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "agent initialized", rec["msg"])
	assert.Equal(t, "abc", rec["session"])
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "text", true)

	logger.Debug("tool call", "tool", "web_search", "err", errors.New("timeout"))

	out := buf.String()
	assert.Contains(t, out, "tool call")
	assert.Contains(t, out, "tool=web_search")
	assert.Contains(t, out, "timeout")
}
