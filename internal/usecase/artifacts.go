package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/i2y/apiportal/internal/domain"
)

// LoadCatalog reads catalog.json. A missing artifact is an empty catalog.
func LoadCatalog(ctx context.Context, store ObjectStore) (domain.Catalog, error) {
	data, err := store.Get(ctx, CatalogKey)
	if errors.Is(err, ErrNotFound) {
		return domain.Catalog{APIGateway: []domain.CatalogUsagePlan{}, Generic: []domain.GenericAPI{}}, nil
	}
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("failed to read %s: %w", CatalogKey, err)
	}
	var catalog domain.Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return domain.Catalog{}, fmt.Errorf("failed to decode %s: %w", CatalogKey, err)
	}
	return catalog, nil
}

func saveCatalog(ctx context.Context, store ObjectStore, catalog domain.Catalog) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}
	if err := store.Put(ctx, CatalogKey, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", CatalogKey, err)
	}
	return nil
}

// LoadSDKGenerationFlags reads sdkGeneration.json. A missing file is an empty map.
func LoadSDKGenerationFlags(ctx context.Context, store ObjectStore) (domain.SDKGenerationFlags, error) {
	data, err := store.Get(ctx, SDKGenerationKey)
	if errors.Is(err, ErrNotFound) {
		return domain.SDKGenerationFlags{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", SDKGenerationKey, err)
	}
	flags := domain.SDKGenerationFlags{}
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", SDKGenerationKey, err)
	}
	return flags, nil
}

func saveSDKGenerationFlags(ctx context.Context, store ObjectStore, flags domain.SDKGenerationFlags) error {
	data, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("failed to encode sdk generation flags: %w", err)
	}
	if err := store.Put(ctx, SDKGenerationKey, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", SDKGenerationKey, err)
	}
	return nil
}
