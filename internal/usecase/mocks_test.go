package usecase_test

import (
	"context"
	"log/slog"
	"os"

	"github.com/stretchr/testify/mock"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/usecase"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// MockObjectStore is a mock implementation of the ObjectStore interface.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockObjectStore) Put(ctx context.Context, key string, body []byte) error {
	args := m.Called(ctx, key, body)
	return args.Error(0)
}

func (m *MockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStore) List(ctx context.Context, prefix string) ([]usecase.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	objects, _ := args.Get(0).([]usecase.ObjectInfo)
	return objects, args.Error(1)
}

// MockGateway is a mock implementation of the Gateway interface.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) ListRestAPIs(ctx context.Context) ([]domain.RestAPI, error) {
	args := m.Called(ctx)
	apis, _ := args.Get(0).([]domain.RestAPI)
	return apis, args.Error(1)
}

func (m *MockGateway) ListStages(ctx context.Context, apiID string) ([]string, error) {
	args := m.Called(ctx, apiID)
	stages, _ := args.Get(0).([]string)
	return stages, args.Error(1)
}

func (m *MockGateway) ListUsagePlans(ctx context.Context) ([]domain.UsagePlan, error) {
	args := m.Called(ctx)
	plans, _ := args.Get(0).([]domain.UsagePlan)
	return plans, args.Error(1)
}

func (m *MockGateway) ExportDocument(ctx context.Context, apiID, stage string) ([]byte, error) {
	args := m.Called(ctx, apiID, stage)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockRebuildTrigger is a mock implementation of the RebuildTrigger interface.
type MockRebuildTrigger struct {
	mock.Mock
}

func (m *MockRebuildTrigger) Trigger(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDocumentSource is a mock implementation of the DocumentSource interface.
type MockDocumentSource struct {
	mock.Mock
}

func (m *MockDocumentSource) Fetch(ctx context.Context, src usecase.SourceConfig) ([]byte, error) {
	args := m.Called(ctx, src)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}
