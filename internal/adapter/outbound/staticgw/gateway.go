package staticgw

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
	k8syaml "sigs.k8s.io/yaml"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/usecase"
)

// Fixture describes gateway state for local runs and tests.
type Fixture struct {
	APIs       []API  `yaml:"apis"`
	UsagePlans []Plan `yaml:"usagePlans"`
}

// API is one REST API with its stages. Exports maps a stage name to the
// description document (JSON or YAML text) returned when it is exported.
type API struct {
	ID      string            `yaml:"id"`
	Name    string            `yaml:"name"`
	Stages  []string          `yaml:"stages"`
	Exports map[string]string `yaml:"exports"`
}

// Plan is one usage plan.
type Plan struct {
	ID        string    `yaml:"id"`
	Name      string    `yaml:"name"`
	Throttle  *Throttle `yaml:"throttle"`
	Quota     *Quota    `yaml:"quota"`
	APIStages []Stage   `yaml:"apiStages"`
}

// Throttle holds plan rate limits.
type Throttle struct {
	RateLimit  float64 `yaml:"rateLimit"`
	BurstLimit int32   `yaml:"burstLimit"`
}

// Quota holds a plan request quota.
type Quota struct {
	Limit  int32  `yaml:"limit"`
	Offset int32  `yaml:"offset"`
	Period string `yaml:"period"`
}

// Stage references an API stage from a usage plan.
type Stage struct {
	APIID string `yaml:"apiId"`
	Stage string `yaml:"stage"`
}

// Gateway implements usecase.Gateway from a Fixture.
type Gateway struct {
	mu      sync.RWMutex
	fixture Fixture
	logger  *slog.Logger
}

// New creates a Gateway serving fixture.
func New(fixture Fixture, logger *slog.Logger) *Gateway {
	return &Gateway{
		fixture: fixture,
		logger:  logger.With("component", "static_gateway"),
	}
}

// Load reads a YAML fixture file.
func Load(path string, logger *slog.Logger) (*Gateway, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway fixture %s: %w", path, err)
	}
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("failed to parse gateway fixture %s: %w", path, err)
	}
	logger.Info("Loaded gateway fixture",
		slog.String("path", path),
		slog.Int("api_count", len(fixture.APIs)),
		slog.Int("usage_plan_count", len(fixture.UsagePlans)))
	return New(fixture, logger), nil
}

// Replace swaps the served fixture.
func (g *Gateway) Replace(fixture Fixture) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fixture = fixture
}

func (g *Gateway) ListRestAPIs(ctx context.Context) ([]domain.RestAPI, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	apis := make([]domain.RestAPI, 0, len(g.fixture.APIs))
	for _, a := range g.fixture.APIs {
		apis = append(apis, domain.RestAPI{ID: a.ID, Name: a.Name})
	}
	return apis, nil
}

func (g *Gateway) ListStages(ctx context.Context, apiID string) ([]string, error) {
	a, ok := g.api(apiID)
	if !ok {
		return nil, fmt.Errorf("rest api %s: %w", apiID, usecase.ErrNotFound)
	}
	return append([]string(nil), a.Stages...), nil
}

func (g *Gateway) ListUsagePlans(ctx context.Context) ([]domain.UsagePlan, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	plans := make([]domain.UsagePlan, 0, len(g.fixture.UsagePlans))
	for _, p := range g.fixture.UsagePlans {
		plan := domain.UsagePlan{ID: p.ID, Name: p.Name}
		if p.Throttle != nil {
			plan.Throttle = &domain.Throttle{RateLimit: p.Throttle.RateLimit, BurstLimit: p.Throttle.BurstLimit}
		}
		if p.Quota != nil {
			plan.Quota = &domain.Quota{Limit: p.Quota.Limit, Offset: p.Quota.Offset, Period: p.Quota.Period}
		}
		for _, s := range p.APIStages {
			plan.APIStages = append(plan.APIStages, domain.APIStage{APIID: s.APIID, Stage: s.Stage})
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

// ExportDocument returns the fixture export for the stage as JSON.
func (g *Gateway) ExportDocument(ctx context.Context, apiID, stage string) ([]byte, error) {
	a, ok := g.api(apiID)
	if !ok {
		return nil, fmt.Errorf("rest api %s: %w", apiID, usecase.ErrNotFound)
	}
	doc, ok := a.Exports[stage]
	if !ok {
		return nil, fmt.Errorf("export of %s stage %s: %w", apiID, stage, usecase.ErrNotFound)
	}
	body, err := k8syaml.YAMLToJSON([]byte(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to convert export of %s stage %s: %w", apiID, stage, err)
	}
	g.logger.Debug("Exported fixture document", slog.String("api_id", apiID), slog.String("stage", stage))
	return body, nil
}

func (g *Gateway) api(id string) (API, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, a := range g.fixture.APIs {
		if a.ID == id {
			return a, true
		}
	}
	return API{}, false
}
