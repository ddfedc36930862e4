package openapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi3"
	"sigs.k8s.io/yaml"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/usecase"
)

// IntegrationMarker appears in the paths of every document exported from the gateway
// with its extensions; documents without it are unmanaged.
const IntegrationMarker = "x-amazon-apigateway-integration"

var documentExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// ParseError reports a single description document that cannot enter the catalog.
// It unwraps to usecase.ErrParse.
type ParseError struct {
	Key    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("document %s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("document %s: %s", e.Key, e.Reason)
}

func (e *ParseError) Unwrap() error { return usecase.ErrParse }

// Classifier implements usecase.DocumentClassifier for Swagger 2 and OpenAPI 3 documents.
type Classifier struct {
	logger *slog.Logger
}

// NewClassifier creates a new Classifier.
func NewClassifier(logger *slog.Logger) *Classifier {
	return &Classifier{
		logger: logger.With("component", "openapi_classifier"),
	}
}

// IsDocumentKey reports whether key names a description document: it must sit under
// the catalog/ prefix and end in .json, .yaml or .yml.
func IsDocumentKey(key string) bool {
	if !strings.HasPrefix(key, usecase.DocumentPrefix) {
		return false
	}
	name := strings.TrimPrefix(key, usecase.DocumentPrefix)
	ext := strings.ToLower(path.Ext(name))
	return documentExtensions[ext] && strings.TrimSuffix(name, path.Ext(name)) != ""
}

// Accepts implements usecase.DocumentClassifier.
func (c *Classifier) Accepts(key string) bool { return IsDocumentKey(key) }

// Parse decodes raw as JSON, falling back to YAML, and detects its description format.
func (c *Classifier) Parse(key string, raw []byte) (domain.DescriptionDocument, error) {
	data, err := toJSON(raw)
	if err != nil {
		return domain.DescriptionDocument{}, &ParseError{Key: key, Reason: "neither JSON nor YAML", Err: err}
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return domain.DescriptionDocument{}, &ParseError{Key: key, Reason: "top level is not an object", Err: err}
	}

	format, ok := detectFormat(body)
	if !ok {
		return domain.DescriptionDocument{}, &ParseError{Key: key, Reason: "missing swagger 2.0 or openapi 3.x version field"}
	}

	doc := domain.DescriptionDocument{Key: key, Format: format, Body: body}
	switch format {
	case domain.FormatSwagger2:
		var v2 openapi2.T
		if err := json.Unmarshal(data, &v2); err != nil {
			return domain.DescriptionDocument{}, &ParseError{Key: key, Reason: "invalid swagger 2.0 document", Err: err}
		}
		doc.V2 = &v2
	case domain.FormatOpenAPI3:
		var v3 openapi3.T
		if err := json.Unmarshal(data, &v3); err != nil {
			return domain.DescriptionDocument{}, &ParseError{Key: key, Reason: "invalid openapi 3 document", Err: err}
		}
		doc.V3 = &v3
	}
	return doc, nil
}

// Classify parses raw and keys it either by gateway identity or, for unmanaged
// documents, by a hash of its storage key.
func (c *Classifier) Classify(key string, raw []byte, lastModified time.Time) (domain.ClassifiedRecord, error) {
	if !IsDocumentKey(key) {
		return domain.ClassifiedRecord{}, fmt.Errorf("%s: %w", key, usecase.ErrIgnoredKey)
	}
	log := c.logger.With(slog.String("key", key))

	doc, err := c.Parse(key, raw)
	if err != nil {
		return domain.ClassifiedRecord{}, err
	}

	record := domain.ClassifiedRecord{
		Key:          key,
		LastModified: lastModified,
		Title:        doc.Title(),
		Body:         ExpandAnyMethods(doc.Body),
	}

	if !IsManaged(doc.Body) {
		record.Generic = true
		record.GenericID = domain.GenericID(key)
		log.Debug("Classified generic document", slog.String("generic_id", record.GenericID))
		return record, nil
	}

	identity, ok := ExtractIdentity(doc)
	if !ok {
		return domain.ClassifiedRecord{}, &ParseError{Key: key, Reason: "no api identity in file name, host/basePath or servers"}
	}
	record.Identity = identity
	record.Unsubscribable = strings.HasPrefix(path.Base(key), usecase.UnsubscribablePrefix)
	log.Debug("Classified managed document",
		slog.String("api_id", identity.APIID),
		slog.String("stage", identity.Stage),
		slog.Bool("unsubscribable", record.Unsubscribable))
	return record, nil
}

// IsManaged reports whether the serialized paths section carries the gateway integration marker.
func IsManaged(body map[string]any) bool {
	paths, ok := body["paths"]
	if !ok {
		return false
	}
	data, err := json.Marshal(paths)
	if err != nil {
		return false
	}
	return bytes.Contains(data, []byte(IntegrationMarker))
}

func toJSON(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))
	if json.Valid(trimmed) {
		return trimmed, nil
	}
	return yaml.YAMLToJSON(trimmed)
}

func detectFormat(body map[string]any) (domain.DocumentFormat, bool) {
	if v, ok := body["swagger"].(string); ok && strings.HasPrefix(v, "2.") {
		return domain.FormatSwagger2, true
	}
	if v, ok := body["openapi"].(string); ok && strings.HasPrefix(v, "3.") {
		return domain.FormatOpenAPI3, true
	}
	return "", false
}
