package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/metrics"
)

const untitled = "Untitled"

// ReconcileVisibilityUseCase builds the admin visibility report from live gateway
// state and the persisted catalog.
type ReconcileVisibilityUseCase struct {
	store       ObjectStore
	gateway     Gateway
	concurrency int
	logger      *slog.Logger
}

// NewReconcileVisibilityUseCase creates a new ReconcileVisibilityUseCase.
func NewReconcileVisibilityUseCase(store ObjectStore, gateway Gateway, concurrency int, logger *slog.Logger) *ReconcileVisibilityUseCase {
	if concurrency < 1 {
		concurrency = defaultFetchConcurrency
	}
	return &ReconcileVisibilityUseCase{
		store:       store,
		gateway:     gateway,
		concurrency: concurrency,
		logger:      logger.With("usecase", "ReconcileVisibility"),
	}
}

// Execute enumerates every live (apiId, stage) pair and reports whether it is
// visible in the catalog, attached to a usage plan and eligible for SDK generation.
func (uc *ReconcileVisibilityUseCase) Execute(ctx context.Context) (domain.VisibilityReport, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ReconcileVisibility")
	defer span.End()
	defer func() { metrics.ObservePass("visibility", time.Since(start)) }()

	report, err := uc.reconcile(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		uc.logger.Error("Visibility reconciliation failed", slog.Any("error", err))
		return domain.VisibilityReport{}, err
	}
	span.SetAttributes(attribute.Int("visibility.api_stages", len(report.APIGateway)))
	return report, nil
}

func (uc *ReconcileVisibilityUseCase) reconcile(ctx context.Context) (domain.VisibilityReport, error) {
	apis, err := uc.gateway.ListRestAPIs(ctx)
	if err != nil {
		return domain.VisibilityReport{}, fmt.Errorf("failed to list rest apis: %w", err)
	}

	stages := make([][]string, len(apis))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.concurrency)
	for i, api := range apis {
		g.Go(func() error {
			s, err := uc.gateway.ListStages(gctx, api.ID)
			if err != nil {
				return fmt.Errorf("failed to list stages of %s: %w", api.ID, err)
			}
			stages[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.VisibilityReport{}, err
	}
	stagesByAPI := make(map[string][]string, len(apis))
	for i, api := range apis {
		stagesByAPI[api.ID] = stages[i]
	}

	plans, err := uc.gateway.ListUsagePlans(ctx)
	if err != nil {
		return domain.VisibilityReport{}, fmt.Errorf("failed to list usage plans: %w", err)
	}

	catalog, err := LoadCatalog(ctx, uc.store)
	if err != nil {
		return domain.VisibilityReport{}, err
	}

	report := ReconcileVisibility(apis, stagesByAPI, plans, catalog)
	uc.logger.Info("Visibility reconciled",
		slog.Int("api_count", len(apis)),
		slog.Int("api_stage_count", len(report.APIGateway)),
		slog.Int("generic_count", len(report.Generic)))
	return report, nil
}

// ReconcileVisibility is the pure part of the reconciliation. Every live pair
// starts invisible and unsubscribable; the catalog marks visibility and the
// usage plans mark subscribability independently. When a pair is in several
// plans the first plan listed is reported. Generic entries whose stage is no
// longer live are reported under Generic.
func ReconcileVisibility(
	apis []domain.RestAPI,
	stages map[string][]string,
	plans []domain.UsagePlan,
	catalog domain.Catalog,
) domain.VisibilityReport {
	records := make(map[string]*domain.VisibilityRecord)
	for _, api := range apis {
		for _, stage := range stages[api.ID] {
			id := domain.APIIdentity{APIID: api.ID, Stage: stage}
			records[id.Key()] = &domain.VisibilityRecord{ID: api.ID, Name: api.Name, Stage: stage}
		}
	}

	for _, plan := range catalog.APIGateway {
		for _, api := range plan.APIs {
			if rec, ok := records[domain.APIIdentity{APIID: api.ID, Stage: api.Stage}.Key()]; ok {
				rec.Visibility = true
				rec.SDKGeneration = api.SDKGeneration
			}
		}
	}

	generic := make(map[string]domain.GenericVisibility)
	for _, entry := range catalog.Generic {
		if entry.APIID != "" {
			if rec, ok := records[domain.APIIdentity{APIID: entry.APIID, Stage: entry.APIStage}.Key()]; ok {
				rec.Visibility = true
				rec.SDKGeneration = entry.SDKGeneration
				continue
			}
			// The stage is gone but the storefront still lists it.
		}
		name := entry.Title()
		if name == "" {
			name = untitled
		}
		generic[entry.ID] = domain.GenericVisibility{Visibility: true, Name: name}
	}

	for _, plan := range plans {
		for _, s := range plan.APIStages {
			rec, ok := records[domain.APIIdentity{APIID: s.APIID, Stage: s.Stage}.Key()]
			if !ok || rec.Subscribable {
				continue
			}
			rec.Subscribable = true
			rec.UsagePlanID = plan.ID
			rec.UsagePlanName = plan.Name
		}
	}

	report := domain.VisibilityReport{
		APIGateway: make([]domain.VisibilityRecord, 0, len(records)),
		Generic:    generic,
	}
	for _, rec := range records {
		report.APIGateway = append(report.APIGateway, *rec)
	}
	sort.Slice(report.APIGateway, func(i, j int) bool {
		a, b := report.APIGateway[i], report.APIGateway[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		return a.Stage < b.Stage
	})
	return report
}
