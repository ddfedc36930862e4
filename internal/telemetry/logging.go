package telemetry

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the root logger. format "json" selects the JSON handler;
// anything else uses text.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
