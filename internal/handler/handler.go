// Package handler provides HTTP request handlers for the catalog API.
package handler

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/catalog-api/internal/model"
)

// Version is the application version.
const Version = "1.0.0"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// ReadinessChecker reports whether a dependency is able to serve requests.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// ProbeHandler serves liveness and readiness probes.
type ProbeHandler struct {
	checkers map[string]ReadinessChecker
	logger   *zap.Logger
}

// NewProbeHandler creates a ProbeHandler. Readiness fails while any checker fails.
func NewProbeHandler(checkers map[string]ReadinessChecker, logger *zap.Logger) *ProbeHandler {
	return &ProbeHandler{
		checkers: checkers,
		logger:   logger,
	}
}

// RegisterRoutes registers the probe routes with the router.
func (h *ProbeHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
}

// HealthCheck handles GET /health requests.
func (h *ProbeHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// ReadyCheck handles GET /ready requests.
func (h *ProbeHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := ReadyResponse{
		Status: "ready",
		Checks: make(map[string]string, len(h.checkers)),
	}

	for name, checker := range h.checkers {
		if err := checker.Ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			response.Checks[name] = err.Error()
			response.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		response.Checks[name] = "ok"
	}

	writeJSON(w, h.logger, status, response)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	writeJSON(w, logger, status, model.NewErrorResponse(message))
}

// WriteError writes the catalog's JSON error envelope. It is shared with the
// middleware so every error body has the same shape.
func WriteError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	writeError(w, logger, status, message)
}

// NotFound is a JSON replacement for the router's default 404 handler.
func NotFound(logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, logger, http.StatusNotFound, "not found")
	})
}

// MethodNotAllowed is a JSON replacement for the router's default 405 handler.
func MethodNotAllowed(logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, logger, http.StatusMethodNotAllowed, "method not allowed")
	})
}
