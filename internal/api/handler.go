package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/openwelfare/ubk/internal/domain"
	"github.com/openwelfare/ubk/internal/engine"
	"github.com/openwelfare/ubk/internal/repository"
	"github.com/openwelfare/ubk/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	orchestrator *engine.Orchestrator
	rulesEngine  *rules.Engine
	version      string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, orchestrator *engine.Orchestrator, rulesEngine *rules.Engine, version string) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		orchestrator: orchestrator,
		rulesEngine:  rulesEngine,
		version:      version,
	}
}

// ProcessResponse is the response for POST /process.
type ProcessResponse struct {
	Result   *domain.ProcessingResult `json:"result"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Process handles POST /process requests: evaluate a single application
// synchronously and persist both the record and the verdict.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	traceID := GetTraceID(ctx)

	var req domain.ApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.RegionID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "regionId is required",
		})
		return
	}
	if len(req.FamilyMembers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "familyMembers is required",
		})
		return
	}

	app := req.ToApplication()
	if app.ID == "" {
		app.ID = uuid.New().String()
	}

	result, err := h.orchestrator.Process(ctx, app)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveApplication(ctx, app); err != nil {
			slog.Error("failed to save application", "id", app.ID, "error", err)
		}
		if err := h.repo.SaveResult(ctx, result); err != nil {
			slog.Error("failed to save result", "id", result.ID, "error", err)
		}
	}

	h.publishResult(r, result)

	resp := ProcessResponse{Result: result}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// BatchResponse is the response for POST /batch.
type BatchResponse struct {
	Results map[string]*domain.ProcessingResult `json:"results"`
	Stats   domain.ProcessingStats              `json:"stats"`
}

// Batch handles POST /batch requests: evaluate a set of applications with
// cross-matching for duplicates inside the batch.
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqs []domain.ApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if len(reqs) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "batch is empty",
		})
		return
	}

	apps := make([]*domain.Application, 0, len(reqs))
	for i := range reqs {
		app := reqs[i].ToApplication()
		if app.ID == "" {
			app.ID = uuid.New().String()
		}
		apps = append(apps, app)
	}

	results, err := h.orchestrator.Batch(ctx, apps)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	if h.repo != nil {
		for _, app := range apps {
			if err := h.repo.SaveApplication(ctx, app); err != nil {
				slog.Error("failed to save application", "id", app.ID, "error", err)
			}
		}
		for _, result := range results {
			if err := h.repo.SaveResult(ctx, result); err != nil {
				slog.Error("failed to save result", "id", result.ID, "error", err)
			}
		}
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		Results: results,
		Stats:   engine.Summarize(results),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetApplication retrieves a stored application by ID.
func (h *Handler) GetApplication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	appID := chi.URLParam(r, "id")

	if appID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "application id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	app, err := h.repo.GetApplication(ctx, appID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get application", "id", appID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "application not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, app)
}

// GetResult retrieves a processing result by ID.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resultID := chi.URLParam(r, "id")

	if resultID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "result id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	result, err := h.repo.GetResult(ctx, resultID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get result", "id", resultID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "result not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ListRegions returns the regional reference table.
func (h *Handler) ListRegions(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	regions, err := h.repo.ListRegions(r.Context())
	if err != nil {
		slog.Error("failed to list regions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list regions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"regions": regions,
		"count":   len(regions),
	})
}

// SaveRegion creates or updates a region.
func (h *Handler) SaveRegion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var region domain.Region
	if err := json.NewDecoder(r.Body).Decode(&region); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if region.ID == "" || region.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id and name are required",
		})
		return
	}
	if region.Coefficient < 1.0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "coefficient must be at least 1.0",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.SaveRegion(ctx, &region); err != nil {
		slog.Error("failed to save region", "id", region.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save region",
		})
		return
	}

	// Drop any cached copy so the next lookup sees the update.
	if h.cache != nil {
		_ = h.cache.Delete(ctx, "region:"+region.ID)
	}

	slog.Info("region saved", "id", region.ID, "coefficient", region.Coefficient)
	writeJSON(w, http.StatusCreated, region)
}

// ListRules returns all screening rules loaded in the engine.
// Rules are loaded from the database at startup and can be reloaded via POST /rules/reload.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	loadedRules := h.rulesEngine.LoadedRules()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":  loadedRules,
		"count":  len(loadedRules),
		"source": "database",
	})
}

// GetRule retrieves a screening rule by ID from the loaded engine rules.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	for _, rule := range h.rulesEngine.LoadedRules() {
		if rule.ID == ruleID {
			writeJSON(w, http.StatusOK, rule)
			return
		}
	}

	writeJSON(w, http.StatusNotFound, map[string]string{
		"error": "rule not found",
	})
}

// CreateRule validates, persists, and hot-loads a screening rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.ScreeningRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if rule.Weight <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "weight must be positive",
		})
		return
	}

	// Compile-check the CEL expression before persisting.
	if err := h.rulesEngine.ValidateRule(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CEL expression: " + err.Error(),
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveScreeningRule(ctx, &rule); err != nil {
			slog.Error("failed to save screening rule", "id", rule.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save rule",
			})
			return
		}
	}

	// Hot-load enabled rules immediately; disabled rules wait for a reload.
	if rule.Enabled {
		if err := h.rulesEngine.LoadRule(&rule); err != nil {
			slog.Error("failed to load screening rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("screening rule created", "id", rule.ID, "name", rule.Name, "enabled", rule.Enabled)
	writeJSON(w, http.StatusCreated, rule)
}

// DeleteRule disables a screening rule and removes it from the engine.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteScreeningRule(ctx, ruleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "rule not found",
			})
			return
		}
		slog.Error("failed to delete screening rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rule",
		})
		return
	}

	h.rulesEngine.RemoveRule(ruleID)

	slog.Info("screening rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ReloadRules reloads all screening rules from the database into the engine.
// This enables hot-reloading without server restart.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	dbRules, err := h.repo.ListScreeningRules(ctx)
	if err != nil {
		slog.Error("failed to list rules from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := h.rulesEngine.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rules into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("screening rules reloaded from database", "count", len(dbRules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// ReloadReference rebuilds the duplicate-detection reference snapshot from
// every stored application.
func (h *Handler) ReloadReference(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	apps, err := h.repo.ListApplications(ctx)
	if err != nil {
		slog.Error("failed to list applications", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load applications",
		})
		return
	}

	h.orchestrator.References().Replace(apps)

	slog.Info("reference snapshot reloaded", "count", len(apps))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "reference snapshot reloaded",
		"count":   len(apps),
	})
}

// Stats aggregates processing results. The optional "since" query parameter
// (YYYY-MM-DD) limits the window; default is all stored results.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	var since time.Time
	if s := r.URL.Query().Get("since"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "since must be YYYY-MM-DD",
			})
			return
		}
		since = d
	}

	results, err := h.repo.ListResults(ctx, since)
	if err != nil {
		slog.Error("failed to list results", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list results",
		})
		return
	}

	// ListResults is newest-first: the first verdict seen per application
	// is the current one.
	byApp := make(map[string]*domain.ProcessingResult, len(results))
	for _, result := range results {
		if _, ok := byApp[result.ApplicationID]; !ok {
			byApp[result.ApplicationID] = result
		}
	}

	writeJSON(w, http.StatusOK, engine.Summarize(byApp))
}

// publishResult emits the decision event, plus an inspection event when the
// verdict requires a field visit.
func (h *Handler) publishResult(r *http.Request, result *domain.ProcessingResult) {
	if h.bus == nil {
		return
	}
	ctx := r.Context()

	payload, err := json.Marshal(result)
	if err != nil {
		slog.Error("failed to marshal result", "id", result.ID, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, domain.TopicDecision, payload); err != nil {
		slog.Error("failed to publish decision", "id", result.ID, "error", err)
	}
	if result.Action == domain.ActionFieldInspection {
		if err := h.bus.Publish(ctx, domain.TopicInspection, payload); err != nil {
			slog.Error("failed to publish inspection", "id", result.ID, "error", err)
		}
	}
}

// writeEngineError maps engine errors onto HTTP status codes.
func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	case errors.Is(err, domain.ErrUnknownRegion):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("processing failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "processing failed",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
