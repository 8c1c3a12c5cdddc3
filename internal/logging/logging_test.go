// ABOUTME: Tests for logger construction
// ABOUTME: Checks level filtering, JSON output and the text handler layout

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sealed-prefs/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.With("component", "tier").Warn("encryption tier unavailable", "tier", "KEYSTORE")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "encryption tier unavailable", rec["msg"])
	assert.Equal(t, "tier", rec["component"])
	assert.Equal(t, "KEYSTORE", rec["tier"])
}

func TestNew_Text(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug"}, &buf)

	logger.With("component", "secret").Debug("created store key", "store", "settings#600")
	logger.WithGroup("kv").Error("commit failed", "namespace", "settings")

	out := buf.String()
	assert.Contains(t, out, "DBG created store key component=secret store=settings#600")
	assert.Contains(t, out, "ERR commit failed kv.namespace=settings")
}

func TestNew_TextLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "error", Format: "text"}, &buf)

	logger.Warn("dropped")
	assert.Empty(t, buf.String())
}
