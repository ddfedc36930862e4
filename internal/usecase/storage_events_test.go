package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/i2y/apiportal/internal/usecase"
)

func TestRequiresRebuild(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{key: "catalog/abc_prod.json", want: true},
		{key: "catalog/nested/doc.yaml", want: true},
		{key: "sdkGeneration.json", want: true},
		{key: "catalog.json", want: false},
		{key: "custom-content/logo.png", want: false},
		{key: "catalogue/doc.json", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, usecase.RequiresRebuild(tt.key))
		})
	}
}

func TestStorageEventsUseCase_Handle(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		keys        []string
		triggerErr  error
		wantRebuilt bool
		wantErr     bool
	}{
		{name: "catalog write is ignored", keys: []string{usecase.CatalogKey}},
		{name: "empty batch", keys: nil},
		{name: "batch rebuilds once", keys: []string{"catalog/a.json", "catalog/b.json", usecase.SDKGenerationKey}, wantRebuilt: true},
		{name: "trigger failure", keys: []string{"catalog/a.json"}, triggerErr: errors.New("boom"), wantRebuilt: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := new(MockRebuildTrigger)
			if tt.wantRebuilt {
				trigger.On("Trigger", ctx).Return(tt.triggerErr).Once()
			}

			rebuilt, err := usecase.NewStorageEventsUseCase(trigger, newTestLogger()).Handle(ctx, tt.keys)
			assert.Equal(t, tt.wantRebuilt, rebuilt)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			trigger.AssertExpectations(t)
		})
	}
}
