package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/metrics"
)

// SDKGenerationUseCase reads and updates the SDK generation flag file.
//
// Writing the flag file emits a storage event, so Set writes and triggers a
// rebuild only when the stored value actually changes.
type SDKGenerationUseCase struct {
	store   ObjectStore
	trigger RebuildTrigger
	logger  *slog.Logger
}

// NewSDKGenerationUseCase creates a new SDKGenerationUseCase.
func NewSDKGenerationUseCase(store ObjectStore, trigger RebuildTrigger, logger *slog.Logger) *SDKGenerationUseCase {
	return &SDKGenerationUseCase{
		store:   store,
		trigger: trigger,
		logger:  logger.With("usecase", "SDKGeneration"),
	}
}

// Get returns the current flags.
func (uc *SDKGenerationUseCase) Get(ctx context.Context) (domain.SDKGenerationFlags, error) {
	return LoadSDKGenerationFlags(ctx, uc.store)
}

// Set stores enabled for key ("<apiId>_<stage>" or a generic id) and reports whether
// anything changed. An absent key counts as false.
func (uc *SDKGenerationUseCase) Set(ctx context.Context, key string, enabled bool) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, fmt.Errorf("%w: api key is required", ErrInvalidInput)
	}
	log := uc.logger.With(slog.String("api_key", key), slog.Bool("enabled", enabled))

	flags, err := LoadSDKGenerationFlags(ctx, uc.store)
	if err != nil {
		return false, err
	}
	if flags[key] == enabled {
		log.Debug("SDK generation flag unchanged, skipping write")
		return false, nil
	}

	flags[key] = enabled
	if err := saveSDKGenerationFlags(ctx, uc.store, flags); err != nil {
		log.Error("Failed to write SDK generation flags", slog.Any("error", err))
		return false, err
	}
	metrics.IncFlagWrite()
	log.Info("SDK generation flag updated")

	if err := uc.trigger.Trigger(ctx); err != nil {
		log.Error("Catalog rebuild after flag update failed", slog.Any("error", err))
		return true, fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}
	return true, nil
}
