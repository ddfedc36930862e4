package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ImportGenericUseCase fetches a description document from an external source
// and stores it as a generic API.
type ImportGenericUseCase struct {
	source    DocumentSource
	documents *ManageDocumentsUseCase
	logger    *slog.Logger
}

// NewImportGenericUseCase creates a new ImportGenericUseCase.
func NewImportGenericUseCase(source DocumentSource, documents *ManageDocumentsUseCase, logger *slog.Logger) *ImportGenericUseCase {
	return &ImportGenericUseCase{
		source:    source,
		documents: documents,
		logger:    logger.With("usecase", "ImportGeneric"),
	}
}

// Execute imports one source and returns the generic id it was stored under.
func (uc *ImportGenericUseCase) Execute(ctx context.Context, src SourceConfig, actor string) (string, error) {
	if strings.TrimSpace(src.URL) == "" {
		return "", fmt.Errorf("%w: source url is required", ErrInvalidInput)
	}
	log := uc.logger.With(slog.String("source", src.URL), slog.String("actor", actor))
	log.Info("Importing generic api description")

	body, err := uc.source.Fetch(ctx, src)
	if err != nil {
		log.Error("Failed to fetch description document", slog.Any("error", err))
		return "", fmt.Errorf("failed to fetch %s: %w", src.URL, err)
	}
	id, err := uc.documents.AddGeneric(ctx, GenericDocumentRequest{Body: body, Actor: actor})
	if err != nil {
		return id, err
	}
	log.Info("Imported generic api description", slog.String("generic_id", id))
	return id, nil
}

// ExecuteAll imports every source, continuing past failures, and returns the
// ids imported so far with the joined errors.
func (uc *ImportGenericUseCase) ExecuteAll(ctx context.Context, sources []SourceConfig, actor string) ([]string, error) {
	var ids []string
	var errs []error
	for _, src := range sources {
		id, err := uc.Execute(ctx, src, actor)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, errors.Join(errs...)
}
