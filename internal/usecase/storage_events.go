package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/i2y/apiportal/internal/metrics"
)

// RequiresRebuild reports whether a change to key affects the catalog.
// catalog.json itself never does, so rebuilds cannot trigger themselves.
func RequiresRebuild(key string) bool {
	return key == SDKGenerationKey || strings.HasPrefix(key, DocumentPrefix)
}

// StorageEventsUseCase turns storage change notifications into catalog rebuilds.
type StorageEventsUseCase struct {
	trigger RebuildTrigger
	logger  *slog.Logger
}

// NewStorageEventsUseCase creates a new StorageEventsUseCase.
func NewStorageEventsUseCase(trigger RebuildTrigger, logger *slog.Logger) *StorageEventsUseCase {
	return &StorageEventsUseCase{
		trigger: trigger,
		logger:  logger.With("usecase", "StorageEvents"),
	}
}

// Handle triggers at most one rebuild for a batch of changed keys and reports
// whether it did.
func (uc *StorageEventsUseCase) Handle(ctx context.Context, keys []string) (bool, error) {
	var relevant []string
	for _, key := range keys {
		if RequiresRebuild(key) {
			relevant = append(relevant, key)
		}
	}
	if len(relevant) == 0 {
		metrics.IncStorageEvent("skip")
		uc.logger.Debug("No catalog inputs changed", slog.Int("key_count", len(keys)))
		return false, nil
	}

	metrics.IncStorageEvent("rebuild")
	uc.logger.Info("Catalog inputs changed, rebuilding", slog.Any("keys", relevant))
	if err := uc.trigger.Trigger(ctx); err != nil {
		return true, err
	}
	return true, nil
}
