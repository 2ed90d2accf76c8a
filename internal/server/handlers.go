// File: internal/server/handlers.go
package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// apiResponse is the wire envelope every endpoint uses.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Handlers manages the HTTP request handling for the API.
type Handlers struct {
	runner           ScanRunner
	repo             Repository
	defaultTargetURL string
	log              *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(runner ScanRunner, repo Repository, defaultTargetURL string, logger *zap.Logger) *Handlers {
	return &Handlers{
		runner:           runner,
		repo:             repo,
		defaultTargetURL: defaultTargetURL,
		log:              logger.Named("handlers"),
	}
}

// RegisterRoutes sets up the routing for the API server.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealthCheck)

	r.Post("/scan/{kind}", h.HandleRunScan)

	r.Get("/scans", h.HandleListScans)
	r.Get("/scans/latest/{kind}", h.HandleLatestScan)
	r.Delete("/scans/{kind}", h.HandleClearScans)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.HandleListTasks)
		r.Post("/", h.HandleCreateTask)
		r.Get("/due", h.HandleTasksDue)
		r.Get("/calendar", h.HandleTaskCalendar)
		r.Get("/upcoming", h.HandleUpcomingTasks)
		r.Get("/stats", h.HandleTaskStats)
		r.Get("/{taskID}", h.HandleGetTask)
		r.Put("/{taskID}", h.HandleUpdateTask)
		r.Patch("/{taskID}/status", h.HandleUpdateTaskStatus)
		r.Delete("/{taskID}", h.HandleDeleteTask)
	})
}

// HandleHealthCheck confirms the server is responsive.
func (h *Handlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleRunScan runs a scan of the requested kind right now, persists the
// result, and returns its payload.
func (h *Handlers) HandleRunScan(w http.ResponseWriter, r *http.Request) {
	kind, err := schemas.ParseScanKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
			return
		}
	}
	targetURL := req.URL
	if targetURL == "" {
		targetURL = h.defaultTargetURL
	}

	h.log.Info("Scan requested.", zap.String("kind", string(kind)), zap.String("target", targetURL))

	result, err := h.runner.Run(r.Context(), kind, targetURL)
	if err != nil {
		h.log.Error("Scan failed.", zap.String("kind", string(kind)), zap.Error(err))
		h.respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Scan failed: %v", err))
		return
	}

	if err := h.repo.SaveScan(r.Context(), result); err != nil {
		h.log.Error("Scan succeeded but could not be persisted.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Scan completed but could not be stored.")
		return
	}

	h.respondWithSuccess(w, http.StatusOK, result)
}

// HandleLatestScan returns the most recent result for a kind.
func (h *Handlers) HandleLatestScan(w http.ResponseWriter, r *http.Request) {
	kind, err := schemas.ParseScanKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.repo.LatestScan(r.Context(), kind)
	if errors.Is(err, store.ErrNotFound) {
		h.respondWithError(w, http.StatusNotFound, fmt.Sprintf("No %s scan recorded yet.", kind))
		return
	}
	if err != nil {
		h.log.Error("Latest scan lookup failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not read scan results.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, result)
}

// HandleListScans returns history, optionally bounded by from/to RFC3339 stamps.
func (h *Handlers) HandleListScans(w http.ResponseWriter, r *http.Request) {
	from := time.Time{}
	to := time.Now().UTC().Add(time.Hour)

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'from' timestamp: %v", err))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'to' timestamp: %v", err))
			return
		}
		to = parsed
	}

	results, err := h.repo.ScansInRange(r.Context(), from, to)
	if err != nil {
		h.log.Error("Scan history query failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not read scan history.")
		return
	}
	if results == nil {
		results = []schemas.ScanResult{}
	}
	h.respondWithSuccess(w, http.StatusOK, results)
}

// HandleClearScans drops the latest slot and history for a kind.
func (h *Handlers) HandleClearScans(w http.ResponseWriter, r *http.Request) {
	kind, err := schemas.ParseScanKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.repo.ClearScans(r.Context(), kind); err != nil {
		h.log.Error("Clearing scans failed.", zap.Error(err))
		h.respondWithError(w, http.StatusInternalServerError, "Could not clear scan results.")
		return
	}
	h.respondWithSuccess(w, http.StatusOK, map[string]string{"cleared": string(kind)})
}

// respondWithError sends a standardized JSON error response.
func (h *Handlers) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respond(w, statusCode, apiResponse{Success: false, Error: message})
}

// respondWithSuccess sends a standardized JSON success response.
func (h *Handlers) respondWithSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	h.respond(w, statusCode, apiResponse{Success: true, Data: data})
}

func (h *Handlers) respond(w http.ResponseWriter, statusCode int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error("Failed to encode response", zap.Error(err))
	}
}
