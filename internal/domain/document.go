package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
)

// DocumentFormat identifies which description language a stored document is written in.
type DocumentFormat string

const (
	FormatSwagger2 DocumentFormat = "swagger2"
	FormatOpenAPI3 DocumentFormat = "openapi3"
)

// DescriptionDocument is a parsed API description read from object storage.
// Exactly one of V2 and V3 is set, matching Format.
type DescriptionDocument struct {
	// Key is the storage key the document was read from.
	Key    string
	Format DocumentFormat
	// Body is the document normalized to JSON-compatible values.
	// It is the form written into the catalog.
	Body map[string]any

	V2 *openapi2.T
	V3 *openapi3.T
}

// Title returns the document's declared info.title, or "" if it has none.
func (d DescriptionDocument) Title() string {
	switch d.Format {
	case FormatSwagger2:
		if d.V2 != nil {
			return d.V2.Info.Title
		}
	case FormatOpenAPI3:
		if d.V3 != nil && d.V3.Info != nil {
			return d.V3.Info.Title
		}
	}
	return ""
}

// APIIdentity names a gateway-managed API deployment.
type APIIdentity struct {
	APIID string
	Stage string
}

// Key returns the "<apiId>_<stage>" form used in storage keys and flag maps.
func (id APIIdentity) Key() string {
	return id.APIID + "_" + id.Stage
}

// ClassifiedRecord is a description document keyed for the catalog.
// Managed records carry Identity; generic records carry GenericID.
type ClassifiedRecord struct {
	Key          string
	LastModified time.Time
	Generic      bool
	Identity     APIIdentity
	GenericID    string
	// Unsubscribable marks a managed document stored under the unsubscribable_ prefix:
	// visible in the catalog but not offered through a usage plan.
	Unsubscribable bool
	Title          string
	Body           map[string]any
}

// CatalogKey returns the identity the record is indexed by during a build.
func (r ClassifiedRecord) CatalogKey() string {
	if r.Generic {
		return r.GenericID
	}
	return r.Identity.Key()
}

// GenericID derives the stable id of an unmanaged document from its storage key.
// Editing a document keeps its id; renaming it does not.
func GenericID(storageKey string) string {
	sum := sha256.Sum256([]byte(storageKey))
	return hex.EncodeToString(sum[:16])
}
