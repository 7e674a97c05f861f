package api

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/opensource-marketing/kite/internal/domain"
	"github.com/opensource-marketing/kite/internal/engine"
	"github.com/opensource-marketing/kite/internal/filter"
	"github.com/opensource-marketing/kite/internal/history"
	"github.com/opensource-marketing/kite/internal/ingest"
	"github.com/opensource-marketing/kite/internal/metrics"
	"github.com/opensource-marketing/kite/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo      domain.Repository
	cache     domain.Cache
	bus       domain.EventBus
	filters   *filter.Engine
	history   *history.Service
	simulator *engine.Simulator
	validate  *validator.Validate
	version   string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, filters *filter.Engine, hist *history.Service, simulator *engine.Simulator, version string) *Handler {
	return &Handler{
		repo:      repo,
		cache:     cache,
		bus:       bus,
		filters:   filters,
		history:   hist,
		simulator: simulator,
		validate:  validator.New(),
		version:   version,
	}
}

// simulationCacheTTL bounds how long an identical request can reuse a result.
const simulationCacheTTL = 15 * time.Minute

// SimulateRequest is the request body for POST /simulate.
type SimulateRequest struct {
	Scope       string                `json:"scope"`
	Scenario    domain.ScenarioConfig `json:"scenario"`
	DailyBudget float64               `json:"dailyBudget"`

	// Rows carries inline rows for planned campaigns with no stored
	// history. When empty the scope's stored rows are used.
	Rows []domain.DailyRow `json:"rows,omitempty"`

	// FilterID names a stored scope filter applied to the loaded rows.
	FilterID string `json:"filterId,omitempty"`
	FromDate string `json:"fromDate,omitempty"`
	ToDate   string `json:"toDate,omitempty"`

	BootstrapSeed *int64 `json:"bootstrapSeed,omitempty"`
}

// Simulate handles POST /simulate requests.
// With ?async=true the request is queued on the event bus and a request ID
// is returned; otherwise the simulation runs inline.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.DailyBudget <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "dailyBudget must be positive",
		})
		return
	}
	if err := h.validate.Struct(&req.Scenario); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid scenario: " + err.Error(),
		})
		return
	}
	if req.Scenario.ScenarioType == domain.ScenarioExisting && len(req.Rows) == 0 && req.Scope == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scope or inline rows are required for existing campaigns",
		})
		return
	}

	// Async path: queue on the bus and return immediately
	if r.URL.Query().Get("async") == "true" {
		h.simulateAsync(w, r, tenantID, &req)
		return
	}

	// Resolve rows: inline rows win, otherwise load the scope's history
	rows := req.Rows
	if len(rows) == 0 && h.history != nil {
		loaded, err := h.history.RowsForScope(ctx, tenantID, req.Scope, req.FilterID, req.FromDate, req.ToDate)
		if err != nil {
			slog.Error("failed to load rows", "scope", req.Scope, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load rows",
			})
			return
		}
		rows = loaded
	}

	var referenceRows []domain.DailyRow
	if len(req.Scenario.ReferenceCampaigns) > 0 && h.history != nil {
		referenceRows = h.history.ReferenceRows(ctx, tenantID, req.Scenario.ReferenceCampaigns)
	}

	// Per-tenant simulate-rate metering
	if h.cache != nil {
		if count, err := h.cache.IncrementCounter(ctx, tenantID, "simulate-rate", time.Hour); err == nil {
			slog.Debug("simulate rate", "tenant_id", tenantID, "count_1h", count)
		}
	}

	// Identical inputs reuse the cached result
	fingerprint := requestFingerprint(tenantID, &req, rows)
	if h.cache != nil {
		if cached, err := h.cache.GetSimulation(ctx, tenantID, fingerprint); err == nil && cached != nil {
			metrics.CacheHitsTotal.WithLabelValues("hit").Inc()
			writeJSON(w, http.StatusOK, cached)
			return
		}
		metrics.CacheHitsTotal.WithLabelValues("miss").Inc()
	}

	input := &engine.Input{
		TenantID:      tenantID,
		Scope:         req.Scope,
		Rows:          rows,
		ReferenceRows: referenceRows,
		Scenario:      req.Scenario,
		DailyBudget:   req.DailyBudget,
		BootstrapSeed: req.BootstrapSeed,
		StartTime:     start,
	}

	result, err := h.simulator.Simulate(ctx, input)
	if err != nil {
		slog.Error("simulation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "simulation failed",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.SaveSimulation(ctx, tenantID, result); err != nil {
			slog.Error("failed to save simulation", "id", result.ID, "error", err)
		}
	}
	if h.cache != nil {
		_ = h.cache.SetSimulation(ctx, tenantID, fingerprint, result, simulationCacheTTL)
	}
	if h.bus != nil {
		payload, _ := json.Marshal(result)
		if err := h.bus.Publish(ctx, tenantID, domain.TopicSimulationCompleted, payload); err != nil {
			slog.Error("failed to publish simulation result", "id", result.ID, "error", err)
		}
	}

	metrics.ObserveSimulation(string(result.ModeChosen), string(result.DataHealth.Confidence), start)

	slog.Info("simulation completed",
		"id", result.ID,
		"tenant_id", tenantID,
		"mode", result.ModeChosen,
		"confidence", result.DataHealth.Confidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, result)
}

// simulateAsync queues the request for the worker pool.
func (h *Handler) simulateAsync(w http.ResponseWriter, r *http.Request, tenantID string, req *SimulateRequest) {
	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	msg := worker.SimulateMessage{
		RequestID:     uuid.New().String(),
		TenantID:      tenantID,
		TraceID:       GetTraceID(r.Context()),
		Scope:         req.Scope,
		FilterID:      req.FilterID,
		FromDate:      req.FromDate,
		ToDate:        req.ToDate,
		Scenario:      req.Scenario,
		DailyBudget:   req.DailyBudget,
		Rows:          req.Rows,
		BootstrapSeed: req.BootstrapSeed,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode request",
		})
		return
	}

	if err := h.bus.Publish(r.Context(), tenantID, domain.TopicSimulateRequest, payload); err != nil {
		slog.Error("failed to queue simulation", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to queue simulation",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"requestId": msg.RequestID,
		"status":    "queued",
	})
}

// GetSimulation retrieves a stored simulation result by ID.
func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	simID := chi.URLParam(r, "id")

	if simID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "simulation id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	sim, err := h.repo.GetSimulation(ctx, tenantID, simID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "simulation not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, sim)
}

// ImportRows handles POST /rows/import. The body is CSV; query parameters
// select the scope and merge mode (override or complement).
func (h *Handler) ImportRows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scope query parameter is required",
		})
		return
	}

	mode := ingest.MergeMode(r.URL.Query().Get("mode"))
	switch mode {
	case "":
		mode = ingest.MergeOverride
	case ingest.MergeOverride, ingest.MergeComplement:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "mode must be override or complement",
		})
		return
	}

	parsed, err := ingest.Parse(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid CSV: " + err.Error(),
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	existing, err := h.repo.ListRows(ctx, tenantID, scope, "", "")
	if err != nil {
		slog.Error("failed to list existing rows", "scope", scope, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load existing rows",
		})
		return
	}

	merged := ingest.Merge(existing, parsed.Rows, mode)

	// SaveRows upserts by row identity. An override import must clear the
	// stored scope first, or rows absent from the new upload would survive.
	if mode == ingest.MergeOverride && len(parsed.Rows) > 0 {
		if err := h.repo.DeleteRows(ctx, tenantID, scope); err != nil {
			slog.Error("failed to clear rows before override import", "scope", scope, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to replace rows",
			})
			return
		}
	}

	if err := h.repo.SaveRows(ctx, tenantID, scope, merged); err != nil {
		slog.Error("failed to save rows", "scope", scope, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rows",
		})
		return
	}

	if h.bus != nil {
		event, _ := json.Marshal(map[string]any{
			"scope":    scope,
			"imported": len(parsed.Rows),
			"skipped":  parsed.Skipped,
			"mode":     mode,
		})
		_ = h.bus.Publish(ctx, tenantID, domain.TopicRowsImported, event)
	}

	metrics.ObserveImport(string(mode), len(parsed.Rows), parsed.Skipped)

	slog.Info("rows imported",
		"tenant_id", tenantID,
		"scope", scope,
		"imported", len(parsed.Rows),
		"skipped", parsed.Skipped,
		"mode", mode,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"imported": len(parsed.Rows),
		"skipped":  parsed.Skipped,
		"total":    len(merged),
		"mode":     mode,
	})
}

// ListRows handles GET /rows.
func (h *Handler) ListRows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scope query parameter is required",
		})
		return
	}

	if h.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "history service not available",
		})
		return
	}

	rows, err := h.history.RowsForScope(ctx, tenantID, scope,
		r.URL.Query().Get("filter"),
		r.URL.Query().Get("from"),
		r.URL.Query().Get("to"),
	)
	if err != nil {
		slog.Error("failed to list rows", "scope", scope, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rows",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rows":  rows,
		"count": len(rows),
	})
}

// DeleteRows handles DELETE /rows.
func (h *Handler) DeleteRows(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	scope := r.URL.Query().Get("scope")
	if scope == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "scope query parameter is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	if err := h.repo.DeleteRows(ctx, tenantID, scope); err != nil {
		slog.Error("failed to delete rows", "scope", scope, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete rows",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rows deleted",
		"scope":   scope,
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

// ListFilters returns all loaded scope filters.
func (h *Handler) ListFilters(w http.ResponseWriter, r *http.Request) {
	if h.filters == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "filter engine not available",
		})
		return
	}

	loaded := h.filters.GetLoadedFilters()

	writeJSON(w, http.StatusOK, map[string]any{
		"filters": loaded,
		"count":   len(loaded),
		"source":  "database",
	})
}

// GetFilter retrieves a scope filter by ID.
func (h *Handler) GetFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	filterID := chi.URLParam(r, "id")

	if filterID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "filter id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	f, err := h.repo.GetScopeFilter(ctx, tenantID, filterID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "filter not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, f)
}

// CreateFilterRequest is the request body for creating a scope filter.
type CreateFilterRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Enabled     bool   `json:"enabled"`
}

// CreateFilter creates a new scope filter and saves it to the database.
// After saving, call POST /filters/reload to hot-reload into the engine.
func (h *Handler) CreateFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateFilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" || req.Name == "" || req.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	cfg := &domain.ScopeFilter{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Enabled:     req.Enabled,
	}

	// Validate CEL expression by attempting to load
	if h.filters != nil {
		if err := h.filters.LoadFilter(cfg); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.repo != nil {
		if err := h.repo.SaveScopeFilter(ctx, tenantID, cfg); err != nil {
			slog.Error("failed to save scope filter", "id", cfg.ID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save filter",
			})
			return
		}
	}

	slog.Info("scope filter created", "id", cfg.ID, "name", cfg.Name)
	writeJSON(w, http.StatusCreated, map[string]any{
		"filter":  cfg,
		"message": "Filter created. Call POST /filters/reload to apply changes.",
	})
}

// DeleteFilter soft-deletes a scope filter and auto-reloads the engine.
func (h *Handler) DeleteFilter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	filterID := chi.URLParam(r, "id")

	if filterID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "filter id is required",
		})
		return
	}

	if h.repo != nil {
		if err := h.repo.DeleteScopeFilter(ctx, tenantID, filterID); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "filter not found",
			})
			return
		}

		if h.filters != nil {
			remaining, err := h.repo.ListScopeFilters(ctx, tenantID)
			if err != nil {
				slog.Error("failed to reload filters after delete", "error", err)
			} else {
				_ = h.filters.ReloadFilters(remaining)
			}
		}
	}

	slog.Info("scope filter deleted", "id", filterID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Filter deleted and engine reloaded.",
	})
}

// ReloadFilters reloads all scope filters from the database into the engine.
func (h *Handler) ReloadFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}
	if h.filters == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "filter engine not available",
		})
		return
	}

	dbFilters, err := h.repo.ListScopeFilters(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list filters from database", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load filters from database",
		})
		return
	}

	if err := h.filters.ReloadFilters(dbFilters); err != nil {
		slog.Error("failed to reload filters into engine", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload filters: " + err.Error(),
		})
		return
	}

	slog.Info("filters reloaded from database", "count", len(dbFilters))
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "filters reloaded successfully",
		"count":   len(dbFilters),
	})
}

// requestFingerprint keys the simulation cache over the request body and the
// resolved row content, so a re-import invalidates cached results even when
// it leaves the row count unchanged.
func requestFingerprint(tenantID string, req *SimulateRequest, rows []domain.DailyRow) string {
	h := fnv.New64a()
	body, _ := json.Marshal(req)
	h.Write([]byte(tenantID))
	h.Write([]byte{0})
	h.Write(body)
	h.Write([]byte{0})
	for i := range rows {
		r := &rows[i]
		fmt.Fprintf(h, "%s|%s|%s|%s|%.4f|%.4f|%.4f\n",
			r.Date, r.CampaignID, r.AdsetID, r.Geo, r.Spend, r.PurchaseValue, r.Purchases)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
