package s3events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/usecase"
)

// Result is returned for S3 notification payloads.
type Result struct {
	Keys    int  `json:"keys"`
	Rebuilt bool `json:"rebuilt"`
}

// Handler is the Lambda entry point. It accepts S3 object notifications and
// direct rebuild invocations.
type Handler struct {
	events  *usecase.StorageEventsUseCase
	rebuild *usecase.RebuildCatalogUseCase
	logger  *slog.Logger
}

// NewHandler creates a new Handler.
func NewHandler(events *usecase.StorageEventsUseCase, rebuild *usecase.RebuildCatalogUseCase, logger *slog.Logger) *Handler {
	return &Handler{
		events:  events,
		rebuild: rebuild,
		logger:  logger.With("component", "s3events_handler"),
	}
}

// Handle dispatches on the payload shape.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (any, error) {
	var probe struct {
		Records json.RawMessage `json:"Records"`
		Action  string          `json:"action"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode invocation payload: %w", err)
	}

	switch {
	case len(probe.Records) > 0:
		var ev events.S3Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode s3 event: %w", err)
		}
		keys := make([]string, 0, len(ev.Records))
		for _, rec := range ev.Records {
			key := rec.S3.Object.URLDecodedKey
			if key == "" {
				key = rec.S3.Object.Key
			}
			keys = append(keys, key)
		}
		h.logger.Info("Received storage notification", slog.Int("record_count", len(keys)))
		rebuilt, err := h.events.Handle(ctx, keys)
		if err != nil {
			return nil, err
		}
		return Result{Keys: len(keys), Rebuilt: rebuilt}, nil

	case probe.Action == domain.RebuildActionName:
		h.logger.Info("Received direct rebuild invocation")
		catalog, err := h.rebuild.Execute(ctx)
		if err != nil {
			return nil, err
		}
		return domain.Summarize(catalog), nil

	default:
		h.logger.Warn("Rejected unsupported invocation payload", slog.String("action", probe.Action))
		return nil, fmt.Errorf("%w: unsupported invocation payload", usecase.ErrInvalidInput)
	}
}
