package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/i2y/apiportal/internal/domain"
)

// ManagedDocumentRequest adds or removes a gateway-managed API stage from the catalog.
type ManagedDocumentRequest struct {
	APIID string `json:"apiId"`
	Stage string `json:"stage"`

	// Subscribable selects the plain key; false stores the document under the
	// unsubscribable_ prefix so it is shown without a usage plan.
	Subscribable bool   `json:"subscribable"`
	Actor        string `json:"-"`
}

func (r ManagedDocumentRequest) validate() error {
	if strings.TrimSpace(r.APIID) == "" || strings.TrimSpace(r.Stage) == "" {
		return fmt.Errorf("%w: apiId and stage are required", ErrInvalidInput)
	}
	if strings.ContainsAny(r.APIID, "_/") || strings.Contains(r.Stage, "/") {
		return fmt.Errorf("%w: apiId must not contain '_' or '/', stage must not contain '/'", ErrInvalidInput)
	}
	return nil
}

// StorageKey returns the document key the request reads or writes.
func (r ManagedDocumentRequest) StorageKey() string {
	name := domain.APIIdentity{APIID: r.APIID, Stage: r.Stage}.Key() + ".json"
	if !r.Subscribable {
		name = UnsubscribablePrefix + name
	}
	return DocumentPrefix + name
}

// GenericDocumentRequest uploads an unmanaged API description.
type GenericDocumentRequest struct {
	Body  []byte
	Actor string
}

// ManageDocumentsUseCase applies admin edits to stored description documents.
// Every successful edit is followed by a catalog rebuild whose failure is reported.
type ManageDocumentsUseCase struct {
	store      ObjectStore
	gateway    Gateway
	classifier DocumentClassifier
	trigger    RebuildTrigger
	logger     *slog.Logger
}

// NewManageDocumentsUseCase creates a new ManageDocumentsUseCase.
func NewManageDocumentsUseCase(
	store ObjectStore,
	gateway Gateway,
	classifier DocumentClassifier,
	trigger RebuildTrigger,
	logger *slog.Logger,
) *ManageDocumentsUseCase {
	return &ManageDocumentsUseCase{
		store:      store,
		gateway:    gateway,
		classifier: classifier,
		trigger:    trigger,
		logger:     logger.With("usecase", "ManageDocuments"),
	}
}

// AddManaged exports the live description of an API stage and stores it for the catalog.
func (uc *ManageDocumentsUseCase) AddManaged(ctx context.Context, req ManagedDocumentRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	key := req.StorageKey()
	log := uc.logger.With(slog.String("actor", req.Actor), slog.String("key", key))

	body, err := uc.gateway.ExportDocument(ctx, req.APIID, req.Stage)
	if err != nil {
		log.Error("Failed to export api description", slog.Any("error", err))
		return fmt.Errorf("failed to export %s stage %s: %w", req.APIID, req.Stage, err)
	}
	if err := uc.store.Put(ctx, key, body); err != nil {
		log.Error("Failed to store api description", slog.Any("error", err))
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	log.Info("Stored managed api description", slog.Int("bytes", len(body)))
	return uc.rebuild(ctx, log)
}

// RemoveManaged deletes the stored description of an API stage.
func (uc *ManageDocumentsUseCase) RemoveManaged(ctx context.Context, req ManagedDocumentRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	key := req.StorageKey()
	log := uc.logger.With(slog.String("actor", req.Actor), slog.String("key", key))

	if err := uc.store.Delete(ctx, key); err != nil {
		log.Error("Failed to delete api description", slog.Any("error", err))
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	log.Info("Deleted managed api description")
	return uc.rebuild(ctx, log)
}

// AddGeneric validates and stores an unmanaged description under a content-derived
// key, returning the generic id it will have in the catalog.
func (uc *ManageDocumentsUseCase) AddGeneric(ctx context.Context, req GenericDocumentRequest) (string, error) {
	if len(req.Body) == 0 {
		return "", fmt.Errorf("%w: document body is required", ErrInvalidInput)
	}
	log := uc.logger.With(slog.String("actor", req.Actor))

	doc, err := uc.classifier.Parse(DocumentPrefix+"upload.json", req.Body)
	if err != nil {
		log.Warn("Rejected unparsable generic document", slog.Any("error", err))
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if strings.TrimSpace(doc.Title()) == "" {
		return "", fmt.Errorf("%w: document must declare info.title", ErrInvalidInput)
	}

	normalized, err := json.Marshal(doc.Body)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	sum := sha256.Sum256(normalized)
	key := DocumentPrefix + hex.EncodeToString(sum[:]) + ".json"
	id := domain.GenericID(key)
	log = log.With(slog.String("key", key), slog.String("generic_id", id))

	// The next rebuild classifies the stored file the same way, so anything it
	// would not list as generic is refused here.
	record, err := uc.classifier.Classify(key, normalized, time.Time{})
	if err != nil || !record.Generic {
		log.Warn("Rejected generic document carrying gateway integrations")
		return "", fmt.Errorf("%w: document carries gateway integrations; add it as a managed API", ErrInvalidInput)
	}

	if err := uc.store.Put(ctx, key, normalized); err != nil {
		log.Error("Failed to store generic document", slog.Any("error", err))
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}
	log.Info("Stored generic api description", slog.String("title", doc.Title()))
	return id, uc.rebuild(ctx, log)
}

// RemoveGeneric deletes the stored document whose generic id is id.
func (uc *ManageDocumentsUseCase) RemoveGeneric(ctx context.Context, id, actor string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: generic id is required", ErrInvalidInput)
	}
	log := uc.logger.With(slog.String("actor", actor), slog.String("generic_id", id))

	objects, err := uc.store.List(ctx, DocumentPrefix)
	if err != nil {
		return fmt.Errorf("failed to list description documents: %w", err)
	}
	key := ""
	for _, obj := range objects {
		if domain.GenericID(obj.Key) == id {
			key = obj.Key
			break
		}
	}
	if key == "" {
		return fmt.Errorf("generic api %s: %w", id, ErrNotFound)
	}

	if err := uc.store.Delete(ctx, key); err != nil {
		log.Error("Failed to delete generic document", slog.String("key", key), slog.Any("error", err))
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	log.Info("Deleted generic api description", slog.String("key", key))
	return uc.rebuild(ctx, log)
}

func (uc *ManageDocumentsUseCase) rebuild(ctx context.Context, log *slog.Logger) error {
	if err := uc.trigger.Trigger(ctx); err != nil {
		log.Error("Catalog rebuild after edit failed", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrRebuildFailed, err)
	}
	return nil
}
