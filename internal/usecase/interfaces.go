package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/i2y/apiportal/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	// ErrNotFound reports a missing storage object or an unknown catalog id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput reports a malformed admin request; nothing was written.
	ErrInvalidInput = errors.New("invalid input")
	// ErrParse reports a description document that could not be parsed or keyed.
	ErrParse = errors.New("unparsable description document")
	// ErrIgnoredKey reports a storage key outside the description document namespace.
	ErrIgnoredKey = errors.New("key is not a description document")
	// ErrRebuildFailed reports a change that was stored but whose catalog rebuild failed.
	ErrRebuildFailed = errors.New("catalog rebuild failed")
)

// Storage layout shared by every component that reads or writes portal artifacts.
const (
	DocumentPrefix       = "catalog/"
	UnsubscribablePrefix = "unsubscribable_"
	CatalogKey           = "catalog.json"
	SDKGenerationKey     = "sdkGeneration.json"
)

// --- Object Storage ---

// ObjectInfo describes one listed storage object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// ObjectStore is the flat key/value object storage holding documents and artifacts.
type ObjectStore interface {
	// Get returns the object body, or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Put replaces the object in a single write.
	Put(ctx context.Context, key string, body []byte) error
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every object under prefix, following pagination until exhausted.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// --- Live Gateway State ---

// Gateway enumerates live API gateway state.
type Gateway interface {
	// ListRestAPIs returns every REST API, following pagination until exhausted.
	ListRestAPIs(ctx context.Context) ([]domain.RestAPI, error)
	// ListStages returns the stage names deployed for a REST API.
	ListStages(ctx context.Context, apiID string) ([]string, error)
	// ListUsagePlans returns every usage plan, following pagination until exhausted.
	ListUsagePlans(ctx context.Context) ([]domain.UsagePlan, error)
	// ExportDocument returns the live description of a deployed stage,
	// including gateway integration extensions.
	ExportDocument(ctx context.Context, apiID, stage string) ([]byte, error)
}

// --- Documents ---

// DocumentClassifier parses description documents and keys them for the catalog.
type DocumentClassifier interface {
	// Accepts reports whether key names a description document worth fetching.
	Accepts(key string) bool
	// Parse detects the format of raw and returns the parsed document.
	Parse(key string, raw []byte) (domain.DescriptionDocument, error)
	// Classify parses raw and derives its catalog identity.
	// Keys outside the document namespace yield ErrIgnoredKey.
	Classify(key string, raw []byte, lastModified time.Time) (domain.ClassifiedRecord, error)
}

// --- Document Sources ---

// SourceConfig locates a description document outside the portal storage.
type SourceConfig struct {
	URL     string
	Headers map[string]string
}

// DocumentSource fetches raw description documents from URLs, github:// paths
// or local files.
type DocumentSource interface {
	Fetch(ctx context.Context, src SourceConfig) ([]byte, error)
}

// --- Rebuild ---

// RebuildTrigger runs a catalog rebuild and waits for its outcome.
type RebuildTrigger interface {
	Trigger(ctx context.Context) error
}
