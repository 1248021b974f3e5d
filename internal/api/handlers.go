package api

import (
	"database/sql"
	"net/http"
	"time"

	"log/slog"

	"github.com/cleancity/cleancity/internal/classify"
	"github.com/cleancity/cleancity/internal/database"
)

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	db        *sql.DB
	checker   classify.HealthChecker
	logger    *slog.Logger
	startTime time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(db *sql.DB, checker classify.HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		checker:   checker,
		logger:    logger,
		startTime: time.Now(),
	}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int(time.Since(h.startTime).Seconds()),
	}

	if h.db != nil {
		if err := database.HealthCheck(r.Context(), h.db); err != nil {
			h.logger.Error("database health check failed", "error", err)
			response["status"] = "degraded"
			response["database"] = "unreachable"
		} else {
			response["database"] = "ok"
			response["database_pool"] = database.Stats(h.db)
		}
	}

	status := http.StatusOK
	if response["status"] != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, h.logger, status, response)
}

// ClassifierHealth handles GET /api/classifier/health. It probes the
// upstream model with a test image.
func (h *HealthHandler) ClassifierHealth(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil {
		writeJSON(w, h.logger, http.StatusOK, classify.HealthStatus{
			Reachable: false,
			Message:   "no classifier configured",
		})
		return
	}

	status, err := h.checker.Health(r.Context())
	if err != nil {
		h.logger.Warn("classifier health probe failed", "error", err)
		writeJSON(w, h.logger, http.StatusServiceUnavailable, status)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, status)
}
