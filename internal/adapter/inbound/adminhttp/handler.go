package adminhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i2y/apiportal/internal/domain"
	"github.com/i2y/apiportal/internal/metrics"
	"github.com/i2y/apiportal/internal/usecase"
)

const (
	// ActorHeader names the admin making a change. It is only logged.
	ActorHeader  = "X-Actor-Id"
	defaultActor = "anonymous"

	maxDocumentBytes = 10 << 20
)

// Deps are the use cases served over HTTP.
type Deps struct {
	Store         usecase.ObjectStore
	Rebuild       *usecase.RebuildCatalogUseCase
	Visibility    *usecase.ReconcileVisibilityUseCase
	Documents     *usecase.ManageDocumentsUseCase
	SDKGeneration *usecase.SDKGenerationUseCase
	StorageEvents *usecase.StorageEventsUseCase
	Import        *usecase.ImportGenericUseCase
}

// Handlers holds dependencies for the HTTP handlers.
type Handlers struct {
	deps   Deps
	logger *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(deps Deps, logger *slog.Logger) *Handlers {
	return &Handlers{
		deps:   deps,
		logger: logger.With("component", "admin_http"),
	}
}

// Router returns the portal HTTP surface.
func (h *Handlers) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(h.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/catalog", h.handleGetCatalog)
	r.Post("/events/storage", h.handleStorageEvents)

	r.Route("/admin/catalog", func(r chi.Router) {
		r.Get("/visibility", h.handleGetVisibility)
		r.Post("/visibility", h.handleAddManaged)
		r.Delete("/visibility/{apiId}/{stage}", h.handleRemoveManaged)
		r.Post("/generic", h.handleAddGeneric)
		r.Post("/generic/import", h.handleImportGeneric)
		r.Delete("/generic/{id}", h.handleRemoveGeneric)
		r.Get("/sdkGeneration", h.handleGetSDKGeneration)
		r.Put("/sdkGeneration", h.handleSetSDKGeneration)
		r.Post("/rebuild", h.handleRebuild)
	})
	return r
}

// instrument logs and counts every request by its route pattern.
func (h *Handlers) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		d := time.Since(start)
		metrics.ObserveRequest(r.Method, route, status, d)
		h.logger.Info("http",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Duration("duration", d))
	})
}

// GET /catalog
func (h *Handlers) handleGetCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := usecase.LoadCatalog(r.Context(), h.deps.Store)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog)
}

// StorageEventsRequest lists object keys that changed.
type StorageEventsRequest struct {
	Keys []string `json:"keys"`
}

// POST /events/storage
func (h *Handlers) handleStorageEvents(w http.ResponseWriter, r *http.Request) {
	var req StorageEventsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	rebuilt, err := h.deps.StorageEvents.Handle(r.Context(), req.Keys)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %w", usecase.ErrRebuildFailed, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"rebuilt": rebuilt})
}

// GET /admin/catalog/visibility
func (h *Handlers) handleGetVisibility(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Visibility.Execute(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /admin/catalog/visibility
func (h *Handlers) handleAddManaged(w http.ResponseWriter, r *http.Request) {
	var req usecase.ManagedDocumentRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.Actor = actor(r)
	if err := h.deps.Documents.AddManaged(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": req.StorageKey()})
}

// DELETE /admin/catalog/visibility/{apiId}/{stage}?subscribable=true|false
func (h *Handlers) handleRemoveManaged(w http.ResponseWriter, r *http.Request) {
	req := usecase.ManagedDocumentRequest{
		APIID: chi.URLParam(r, "apiId"),
		Stage: chi.URLParam(r, "stage"),
		Actor: actor(r),
	}
	subscribable, err := strconv.ParseBool(r.URL.Query().Get("subscribable"))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: subscribable must be true or false", usecase.ErrInvalidInput))
		return
	}
	req.Subscribable = subscribable
	if err := h.deps.Documents.RemoveManaged(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /admin/catalog/generic
func (h *Handlers) handleAddGeneric(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}
	id, err := h.deps.Documents.AddGeneric(r.Context(), usecase.GenericDocumentRequest{Body: body, Actor: actor(r)})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ImportRequest names an external description document to import.
type ImportRequest struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// POST /admin/catalog/generic/import
func (h *Handlers) handleImportGeneric(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := h.deps.Import.Execute(r.Context(), usecase.SourceConfig{URL: req.URL, Headers: req.Headers}, actor(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// DELETE /admin/catalog/generic/{id}
func (h *Handlers) handleRemoveGeneric(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Documents.RemoveGeneric(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /admin/catalog/sdkGeneration
func (h *Handlers) handleGetSDKGeneration(w http.ResponseWriter, r *http.Request) {
	flags, err := h.deps.SDKGeneration.Get(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, flags)
}

// SetSDKGenerationRequest toggles SDK generation for one catalog key.
type SetSDKGenerationRequest struct {
	Key     string `json:"key"`
	Enabled *bool  `json:"enabled"`
}

// PUT /admin/catalog/sdkGeneration
func (h *Handlers) handleSetSDKGeneration(w http.ResponseWriter, r *http.Request) {
	var req SetSDKGenerationRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Enabled == nil {
		h.writeError(w, r, fmt.Errorf("%w: enabled is required", usecase.ErrInvalidInput))
		return
	}
	h.logger.Info("SDK generation change requested", slog.String("actor", actor(r)), slog.String("api_key", req.Key))
	changed, err := h.deps.SDKGeneration.Set(r.Context(), req.Key, *req.Enabled)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"changed": changed})
}

// POST /admin/catalog/rebuild
func (h *Handlers) handleRebuild(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.deps.Rebuild.Execute(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.Summarize(catalog))
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := h.logger.With(slog.String("path", r.URL.Path), slog.Int("status", status), slog.Any("error", err))
	if status >= http.StatusInternalServerError {
		log.Error("Request failed")
	} else {
		log.Warn("Request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, usecase.ErrInvalidInput), errors.Is(err, usecase.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrRebuildFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(ActorHeader)); a != "" {
		return a
	}
	return defaultActor
}
