// ABOUTME: Tests for logger setup and the colorized handler
// ABOUTME: Covers level filtering, JSON output and grouped attribute keys

package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmio/olimp-control/internal/config"
)

func TestSetupLogger_TextLevels(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("hidden")
	logger.With("cycle", "c1").Warn("ticket already executed, skipping", "ticket_id", "42")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WRN ticket already executed, skipping")
	assert.Contains(t, out, "cycle=c1")
	assert.Contains(t, out, "ticket_id=42")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("connection failed, retrying", "attempt", 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "connection failed, retrying", rec["msg"])
	assert.EqualValues(t, 1, rec["attempt"])
}

func TestSetupLogger_UnknownLevelDefaultsToInfo(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "verbose"}, &buf)

	logger.Debug("nope")
	logger.Info("yes")

	assert.NotContains(t, buf.String(), "nope")
	assert.Contains(t, buf.String(), "INF yes")
}

func TestColorHandler_GroupQualifiesAllAttrs(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.With("cycle", "c1").WithGroup("ticket").With("id", "42").Info("executing ticket", "run_as", "svc")

	out := buf.String()
	assert.Contains(t, out, " cycle=c1")
	assert.Contains(t, out, " ticket.id=42")
	assert.Contains(t, out, " ticket.run_as=svc")
	assert.NotContains(t, out, " id=42")
}
