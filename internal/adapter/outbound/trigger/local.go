package trigger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/i2y/apiportal/internal/domain"
)

// Rebuilder runs one catalog rebuild pass.
type Rebuilder interface {
	Execute(ctx context.Context) (domain.Catalog, error)
}

// Local runs rebuilds in-process. Passes started through the same Local run
// one at a time.
type Local struct {
	mu        sync.Mutex
	rebuilder Rebuilder
	logger    *slog.Logger
}

// NewLocal creates a trigger that calls rebuilder directly.
func NewLocal(rebuilder Rebuilder, logger *slog.Logger) *Local {
	return &Local{
		rebuilder: rebuilder,
		logger:    logger.With("component", "local_trigger"),
	}
}

// Trigger runs a rebuild and waits for it.
func (t *Local) Trigger(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	catalog, err := t.rebuilder.Execute(ctx)
	if err != nil {
		return err
	}
	s := domain.Summarize(catalog)
	t.logger.Debug("Rebuild finished",
		slog.Int("usage_plans", s.UsagePlans),
		slog.Int("managed_apis", s.ManagedAPIs),
		slog.Int("generic", s.Generic))
	return nil
}
