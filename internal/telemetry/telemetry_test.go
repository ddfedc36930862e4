package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i2y/apiportal/internal/telemetry"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := telemetry.NewLogger(&buf, slog.LevelInfo, "json")
	logger.Debug("hidden")
	logger.Info("Catalog rebuilt", slog.Int("generic_count", 2))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Catalog rebuilt", entry["msg"])
	assert.Equal(t, float64(2), entry["generic_count"])

	buf.Reset()
	telemetry.NewLogger(&buf, slog.LevelDebug, "text").Debug("visible")
	assert.Contains(t, buf.String(), "msg=visible")
}

func TestInitTracing_Disabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := telemetry.InitTracing(context.Background(), telemetry.TracingConfig{}, telemetry.NewLogger(&buf, slog.LevelInfo, "text"))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "tracing disabled")
}
