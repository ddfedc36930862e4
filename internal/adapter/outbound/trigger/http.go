package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/i2y/apiportal/internal/domain"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4096

// HTTP asks a remote rebuild endpoint to run a pass and waits for the response.
type HTTP struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

// NewHTTP creates a trigger posting to url.
func NewHTTP(client *http.Client, url string, logger *slog.Logger) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{
		client: client,
		url:    url,
		logger: logger.With("component", "http_trigger", "url", url),
	}
}

// Trigger posts a rebuild request. Any non-2xx response is an error.
func (t *HTTP) Trigger(ctx context.Context) error {
	payload, err := json.Marshal(domain.RebuildRequest{Action: domain.RebuildActionName})
	if err != nil {
		return fmt.Errorf("failed to encode rebuild request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create rebuild request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Error("Rebuild request failed", slog.Any("error", err))
		return fmt.Errorf("failed to call rebuild endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.logger.Error("Rebuild endpoint returned error status", slog.Int("status", resp.StatusCode))
		return fmt.Errorf("rebuild endpoint returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var summary domain.RebuildSummary
	if err := json.Unmarshal(body, &summary); err == nil {
		t.logger.Debug("Remote rebuild finished",
			slog.Int("usage_plans", summary.UsagePlans),
			slog.Int("managed_apis", summary.ManagedAPIs),
			slog.Int("generic", summary.Generic))
	}
	return nil
}
