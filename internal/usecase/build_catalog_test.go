package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/i2y/apiportal/internal/adapter/outbound/memstore"
	"github.com/i2y/apiportal/internal/adapter/outbound/openapi"
	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/usecase"
)

const managedPets = `{
  "swagger": "2.0",
  "info": {"title": "Pets", "version": "1"},
  "host": "abc123.execute-api.us-east-1.amazonaws.com",
  "basePath": "/prod",
  "paths": {"/pets": {"get": {"x-amazon-apigateway-integration": {"type": "mock"}}}}
}`

const genericWeather = `{
  "openapi": "3.0.0",
  "info": {"title": "Weather", "version": "1"},
  "paths": {"/forecast": {"get": {"responses": {"200": {"description": "ok"}}}}}
}`

func managedRecord(key, apiID, stage string, modified time.Time) domain.ClassifiedRecord {
	return domain.ClassifiedRecord{
		Key:          key,
		LastModified: modified,
		Identity:     domain.APIIdentity{APIID: apiID, Stage: stage},
		Body:         map[string]any{"key": key},
	}
}

func TestBuildCatalog(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	generic := domain.ClassifiedRecord{
		Key:       "catalog/weather.json",
		Generic:   true,
		GenericID: domain.GenericID("catalog/weather.json"),
		Body:      map[string]any{"key": "catalog/weather.json"},
	}
	unsub := managedRecord("catalog/unsubscribable_xyz_dev.json", "xyz", "dev", t0)
	unsub.Unsubscribable = true

	records := []domain.ClassifiedRecord{
		managedRecord("catalog/abc_prod.json", "abc", "prod", t0),
		managedRecord("catalog/def_prod.json", "def", "prod", t0),
		generic,
		unsub,
	}
	plans := []domain.UsagePlan{
		{
			ID:       "plan1",
			Name:     "Gold",
			Throttle: &domain.Throttle{RateLimit: 10, BurstLimit: 20},
			APIStages: []domain.APIStage{
				{APIID: "def", Stage: "prod"},
				{APIID: "abc", Stage: "prod"},
				{APIID: "missing", Stage: "prod"},
			},
		},
		{ID: "plan2", Name: "Empty"},
	}
	flags := domain.SDKGenerationFlags{"abc_prod": true, generic.GenericID: true}

	got := usecase.BuildCatalog(records, plans, flags)

	want := domain.Catalog{
		APIGateway: []domain.CatalogUsagePlan{
			{
				ID:       "plan1",
				Name:     "Gold",
				Throttle: &domain.Throttle{RateLimit: 10, BurstLimit: 20},
				APIs: []domain.ManagedAPI{
					{
						ID:      "def",
						Stage:   "prod",
						Swagger: map[string]any{"key": "catalog/def_prod.json"},
						Image:   "/custom-content/api-logos/def_prod.png",
					},
					{
						ID:            "abc",
						Stage:         "prod",
						Swagger:       map[string]any{"key": "catalog/abc_prod.json"},
						Image:         "/custom-content/api-logos/abc_prod.png",
						SDKGeneration: true,
					},
				},
			},
			{ID: "plan2", Name: "Empty", APIs: []domain.ManagedAPI{}},
		},
	}
	wantGeneric := []domain.GenericAPI{
		{
			ID:            generic.GenericID,
			Swagger:       generic.Body,
			Image:         domain.GenericImage(generic.GenericID),
			SDKGeneration: true,
		},
		{
			ID:       domain.GenericID(unsub.Key),
			Swagger:  unsub.Body,
			Image:    "/custom-content/api-logos/xyz_dev.png",
			APIID:    "xyz",
			APIStage: "dev",
		},
	}
	if wantGeneric[0].ID > wantGeneric[1].ID {
		wantGeneric[0], wantGeneric[1] = wantGeneric[1], wantGeneric[0]
	}
	want.Generic = wantGeneric

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("BuildCatalog() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCatalog_EmptyInputs(t *testing.T) {
	got := usecase.BuildCatalog(nil, nil, nil)
	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"apiGateway":[],"generic":[]}`, string(data))
}

func TestBuildCatalog_GenericWithoutUsagePlans(t *testing.T) {
	generic := domain.ClassifiedRecord{
		Key:       "catalog/weather.json",
		Generic:   true,
		GenericID: domain.GenericID("catalog/weather.json"),
		Body:      map[string]any{"info": map[string]any{"title": "Weather"}},
	}

	got := usecase.BuildCatalog([]domain.ClassifiedRecord{generic}, nil, nil)

	assert.NotNil(t, got.APIGateway)
	assert.Empty(t, got.APIGateway)
	require.Len(t, got.Generic, 1)
	assert.Equal(t, generic.GenericID, got.Generic[0].ID)
	assert.Equal(t, "Weather", got.Generic[0].Title())

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"apiGateway":[]`)
}

func TestBuildCatalog_DuplicateIdentity(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plans := []domain.UsagePlan{{ID: "plan1", APIStages: []domain.APIStage{{APIID: "abc", Stage: "prod"}}}}

	got := usecase.BuildCatalog([]domain.ClassifiedRecord{
		managedRecord("catalog/old.json", "abc", "prod", t0),
		managedRecord("catalog/new.json", "abc", "prod", t0.Add(time.Second)),
	}, plans, nil)

	require.Len(t, got.APIGateway[0].APIs, 1)
	assert.Equal(t, map[string]any{"key": "catalog/new.json"}, got.APIGateway[0].APIs[0].Swagger)
}

func TestResolveDuplicates(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	tests := []struct {
		name        string
		records     []domain.ClassifiedRecord
		wantKept    []string
		wantDropped []string
	}{
		{
			name: "newest wins",
			records: []domain.ClassifiedRecord{
				managedRecord("catalog/a.json", "abc", "prod", t1),
				managedRecord("catalog/b.json", "abc", "prod", t0),
			},
			wantKept:    []string{"catalog/a.json"},
			wantDropped: []string{"catalog/b.json"},
		},
		{
			name: "tie goes to greatest key",
			records: []domain.ClassifiedRecord{
				managedRecord("catalog/b.json", "abc", "prod", t0),
				managedRecord("catalog/a.json", "abc", "prod", t0),
			},
			wantKept:    []string{"catalog/b.json"},
			wantDropped: []string{"catalog/a.json"},
		},
		{
			name: "unsubscribable does not collide with subscribable",
			records: func() []domain.ClassifiedRecord {
				u := managedRecord("catalog/unsubscribable_abc_prod.json", "abc", "prod", t0)
				u.Unsubscribable = true
				return []domain.ClassifiedRecord{managedRecord("catalog/abc_prod.json", "abc", "prod", t0), u}
			}(),
			wantKept: []string{"catalog/abc_prod.json", "catalog/unsubscribable_abc_prod.json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, dropped := usecase.ResolveDuplicates(tt.records)
			assert.Equal(t, tt.wantKept, keysOf(kept))
			assert.Equal(t, tt.wantDropped, keysOf(dropped))
		})
	}
}

func keysOf(records []domain.ClassifiedRecord) []string {
	var keys []string
	for _, r := range records {
		keys = append(keys, r.Key)
	}
	return keys
}

func TestRebuildCatalogUseCase_Execute(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	store := memstore.NewObjectStore(logger)
	require.NoError(t, store.Put(ctx, "catalog/pets.json", []byte(managedPets)))
	require.NoError(t, store.Put(ctx, "catalog/weather.json", []byte(genericWeather)))
	require.NoError(t, store.Put(ctx, "catalog/broken.json", []byte(`{"info":{}}`)))
	require.NoError(t, store.Put(ctx, "catalog/readme.txt", []byte("not a document")))

	gateway := new(MockGateway)
	gateway.On("ListUsagePlans", mock.Anything).Return([]domain.UsagePlan{
		{ID: "plan1", Name: "Gold", APIStages: []domain.APIStage{{APIID: "abc123", Stage: "prod"}}},
	}, nil).Once()

	uc := usecase.NewRebuildCatalogUseCase(store, gateway, openapi.NewClassifier(logger), 2, logger)
	catalog, err := uc.Execute(ctx)
	require.NoError(t, err)

	require.Len(t, catalog.APIGateway, 1)
	require.Len(t, catalog.APIGateway[0].APIs, 1)
	assert.Equal(t, "abc123", catalog.APIGateway[0].APIs[0].ID)
	assert.Equal(t, "prod", catalog.APIGateway[0].APIs[0].Stage)
	require.Len(t, catalog.Generic, 1)
	assert.Equal(t, domain.GenericID("catalog/weather.json"), catalog.Generic[0].ID)
	assert.Equal(t, "Weather", catalog.Generic[0].Title())

	stored, err := usecase.LoadCatalog(ctx, store)
	require.NoError(t, err)
	if diff := cmp.Diff(catalog, stored); diff != "" {
		t.Errorf("stored catalog mismatch (-want +got):\n%s", diff)
	}
	gateway.AssertExpectations(t)
}

func TestRebuildCatalogUseCase_ExecuteFailureKeepsPreviousCatalog(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	store := memstore.NewObjectStore(logger)
	require.NoError(t, store.Put(ctx, usecase.CatalogKey, []byte(`{"apiGateway":[],"generic":[]}`)))
	require.NoError(t, store.Put(ctx, "catalog/pets.json", []byte(managedPets)))

	gateway := new(MockGateway)
	gateway.On("ListUsagePlans", mock.Anything).Return(nil, errors.New("throttled")).Once()

	uc := usecase.NewRebuildCatalogUseCase(store, gateway, openapi.NewClassifier(logger), 0, logger)
	_, err := uc.Execute(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	data, err := store.Get(ctx, usecase.CatalogKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"apiGateway":[],"generic":[]}`, string(data))
}

func TestRebuildCatalogUseCase_ExecuteListFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockObjectStore)
	store.On("List", mock.Anything, usecase.DocumentPrefix).Return(nil, errors.New("access denied")).Once()

	uc := usecase.NewRebuildCatalogUseCase(store, new(MockGateway), openapi.NewClassifier(newTestLogger()), 1, newTestLogger())
	_, err := uc.Execute(ctx)
	require.Error(t, err)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestRebuildCatalogUseCase_ExecuteDuplicateIdentity(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	store := memstore.NewObjectStore(logger)
	// Both resolve to abc123/prod through host and basePath.
	store.PutAt("catalog/pets-new.json", []byte(managedPets), t0.Add(time.Minute))
	store.PutAt("catalog/pets-old.json", []byte(managedPets), t0)

	gateway := new(MockGateway)
	gateway.On("ListUsagePlans", mock.Anything).Return([]domain.UsagePlan{
		{ID: "plan1", APIStages: []domain.APIStage{{APIID: "abc123", Stage: "prod"}}},
	}, nil)

	uc := usecase.NewRebuildCatalogUseCase(store, gateway, openapi.NewClassifier(logger), 4, logger)
	catalog, err := uc.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.RebuildSummary{UsagePlans: 1, ManagedAPIs: 1}, domain.Summarize(catalog))
}
