package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/metrics"
)

const defaultFetchConcurrency = 8

var tracer = otel.Tracer("github.com/i2y/apiportal/internal/usecase")

// BuildCatalog cross-references classified documents with live usage plans.
//
// Managed documents appear under every plan that references their (apiId, stage),
// in the plan's own order; pairs without a document are omitted. Generic documents,
// and managed documents stored as unsubscribable, appear in Generic sorted by id.
// Records claiming the same identity are resolved with ResolveDuplicates first.
func BuildCatalog(records []domain.ClassifiedRecord, plans []domain.UsagePlan, flags domain.SDKGenerationFlags) domain.Catalog {
	kept, _ := ResolveDuplicates(records)
	return buildResolved(kept, plans, flags)
}

// buildResolved assumes every record holds a distinct identity.
func buildResolved(records []domain.ClassifiedRecord, plans []domain.UsagePlan, flags domain.SDKGenerationFlags) domain.Catalog {
	catalog := domain.Catalog{
		APIGateway: make([]domain.CatalogUsagePlan, 0, len(plans)),
		Generic:    []domain.GenericAPI{},
	}
	managed := make(map[string]domain.ClassifiedRecord)

	for _, r := range records {
		switch {
		case r.Generic:
			catalog.Generic = append(catalog.Generic, domain.GenericAPI{
				ID:            r.GenericID,
				Swagger:       r.Body,
				Image:         domain.GenericImage(r.GenericID),
				SDKGeneration: flags[r.GenericID],
			})
		case r.Unsubscribable:
			id := domain.GenericID(r.Key)
			catalog.Generic = append(catalog.Generic, domain.GenericAPI{
				ID:            id,
				Swagger:       r.Body,
				Image:         domain.ManagedImage(r.Identity),
				SDKGeneration: flags[r.Identity.Key()],
				APIID:         r.Identity.APIID,
				APIStage:      r.Identity.Stage,
			})
		default:
			managed[r.Identity.Key()] = r
		}
	}
	sort.Slice(catalog.Generic, func(i, j int) bool { return catalog.Generic[i].ID < catalog.Generic[j].ID })

	for _, plan := range plans {
		entry := domain.CatalogUsagePlan{
			ID:       plan.ID,
			Name:     plan.Name,
			Throttle: plan.Throttle,
			Quota:    plan.Quota,
			APIs:     []domain.ManagedAPI{},
		}
		for _, stage := range plan.APIStages {
			id := domain.APIIdentity{APIID: stage.APIID, Stage: stage.Stage}
			r, ok := managed[id.Key()]
			if !ok {
				continue
			}
			entry.APIs = append(entry.APIs, domain.ManagedAPI{
				ID:            id.APIID,
				Stage:         id.Stage,
				Swagger:       r.Body,
				Image:         domain.ManagedImage(id),
				SDKGeneration: flags[id.Key()],
			})
		}
		catalog.APIGateway = append(catalog.APIGateway, entry)
	}
	return catalog
}

// ResolveDuplicates keeps one record per identity: the most recently modified,
// ties going to the lexically greatest storage key. Kept records are ordered by key.
func ResolveDuplicates(records []domain.ClassifiedRecord) (kept, dropped []domain.ClassifiedRecord) {
	winners := make(map[string]domain.ClassifiedRecord, len(records))
	for _, r := range records {
		slot := duplicateSlot(r)
		current, ok := winners[slot]
		if !ok {
			winners[slot] = r
			continue
		}
		if newer(r, current) {
			winners[slot] = r
			dropped = append(dropped, current)
		} else {
			dropped = append(dropped, r)
		}
	}

	kept = make([]domain.ClassifiedRecord, 0, len(winners))
	for _, r := range winners {
		kept = append(kept, r)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Key < kept[j].Key })
	sort.Slice(dropped, func(i, j int) bool { return dropped[i].Key < dropped[j].Key })
	return kept, dropped
}

func duplicateSlot(r domain.ClassifiedRecord) string {
	switch {
	case r.Generic:
		return "generic:" + r.GenericID
	case r.Unsubscribable:
		return "unsubscribable:" + r.Identity.Key()
	default:
		return "managed:" + r.Identity.Key()
	}
}

func newer(a, b domain.ClassifiedRecord) bool {
	if !a.LastModified.Equal(b.LastModified) {
		return a.LastModified.After(b.LastModified)
	}
	return a.Key > b.Key
}

// RebuildCatalogUseCase regenerates catalog.json from stored documents and live usage plans.
type RebuildCatalogUseCase struct {
	store       ObjectStore
	gateway     Gateway
	classifier  DocumentClassifier
	concurrency int
	logger      *slog.Logger
}

// NewRebuildCatalogUseCase creates a new RebuildCatalogUseCase.
// concurrency bounds parallel document fetches; values below 1 use a default.
func NewRebuildCatalogUseCase(
	store ObjectStore,
	gateway Gateway,
	classifier DocumentClassifier,
	concurrency int,
	logger *slog.Logger,
) *RebuildCatalogUseCase {
	if concurrency < 1 {
		concurrency = defaultFetchConcurrency
	}
	return &RebuildCatalogUseCase{
		store:       store,
		gateway:     gateway,
		classifier:  classifier,
		concurrency: concurrency,
		logger:      logger.With("usecase", "RebuildCatalog"),
	}
}

type classifyResult struct {
	key    string
	record domain.ClassifiedRecord
	err    error
}

// Execute runs one rebuild pass and uploads the new catalog.
// Individual documents that fail to load are skipped; any other failure aborts
// the pass before catalog.json is written.
func (uc *RebuildCatalogUseCase) Execute(ctx context.Context) (domain.Catalog, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "RebuildCatalog")
	defer span.End()

	catalog, err := uc.rebuild(ctx)
	metrics.ObservePass("rebuild", time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.IncRebuild("failure")
		uc.logger.Error("Catalog rebuild failed", slog.Any("error", err))
		return domain.Catalog{}, err
	}
	metrics.IncRebuild("success")
	span.SetAttributes(
		attribute.Int("catalog.usage_plans", len(catalog.APIGateway)),
		attribute.Int("catalog.generic", len(catalog.Generic)),
	)
	return catalog, nil
}

func (uc *RebuildCatalogUseCase) rebuild(ctx context.Context) (domain.Catalog, error) {
	log := uc.logger
	log.Info("Starting catalog rebuild")

	objects, err := uc.store.List(ctx, DocumentPrefix)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("failed to list description documents: %w", err)
	}

	var records []domain.ClassifiedRecord
	excluded := 0
	for _, res := range uc.classifyAll(ctx, objects) {
		switch {
		case res.err == nil:
			records = append(records, res.record)
			if res.record.Generic {
				metrics.IncDocument("generic")
			} else {
				metrics.IncDocument("managed")
			}
		case errors.Is(res.err, ErrIgnoredKey):
			metrics.IncDocument("ignored")
			log.Debug("Ignoring non-document key", slog.String("key", res.key))
		default:
			excluded++
			metrics.IncDocument("excluded")
			log.Warn("Excluding document from catalog", slog.String("key", res.key), slog.Any("error", res.err))
		}
	}

	plans, err := uc.gateway.ListUsagePlans(ctx)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("failed to list usage plans: %w", err)
	}

	flags, err := LoadSDKGenerationFlags(ctx, uc.store)
	if err != nil {
		return domain.Catalog{}, err
	}

	kept, dropped := ResolveDuplicates(records)
	for _, r := range dropped {
		metrics.IncDuplicateIdentity()
		log.Warn("Document identity already claimed by a newer document, dropping",
			slog.String("key", r.Key),
			slog.String("identity", r.CatalogKey()))
	}

	catalog := buildResolved(kept, plans, flags)
	if err := saveCatalog(ctx, uc.store, catalog); err != nil {
		return domain.Catalog{}, err
	}

	managedCount := 0
	for _, p := range catalog.APIGateway {
		managedCount += len(p.APIs)
	}
	log.Info("Catalog rebuilt",
		slog.Int("document_count", len(objects)),
		slog.Int("excluded_count", excluded),
		slog.Int("usage_plan_count", len(catalog.APIGateway)),
		slog.Int("managed_count", managedCount),
		slog.Int("generic_count", len(catalog.Generic)))
	return catalog, nil
}

// classifyAll fetches and classifies every listed object with bounded concurrency.
// Failures are recorded per object and never cancel the others.
func (uc *RebuildCatalogUseCase) classifyAll(ctx context.Context, objects []ObjectInfo) []classifyResult {
	results := make([]classifyResult, len(objects))
	var g errgroup.Group
	g.SetLimit(uc.concurrency)
	for i, obj := range objects {
		g.Go(func() error {
			results[i] = uc.classifyOne(ctx, obj)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (uc *RebuildCatalogUseCase) classifyOne(ctx context.Context, obj ObjectInfo) classifyResult {
	res := classifyResult{key: obj.Key}
	if !uc.classifier.Accepts(obj.Key) {
		res.err = fmt.Errorf("%s: %w", obj.Key, ErrIgnoredKey)
		return res
	}
	raw, err := uc.store.Get(ctx, obj.Key)
	if err != nil {
		res.err = fmt.Errorf("failed to read document: %w", err)
		return res
	}
	res.record, res.err = uc.classifier.Classify(obj.Key, raw, obj.LastModified)
	return res
}
