package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"log/slog"

	"github.com/cleancity/cleancity/internal/reports"
)

// AdminHandler handles admin analytics and supervisor management.
type AdminHandler struct {
	manager *reports.Manager
	logger  *slog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(manager *reports.Manager, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		manager: manager,
		logger:  logger,
	}
}

// Dashboard handles GET /api/admin/dashboard.
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.manager.Dashboard(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, stats)
}

// WeeklyOverview handles GET /api/admin/overview/weekly.
func (h *AdminHandler) WeeklyOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.manager.WeeklyOverview(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"days": overview})
}

// HourlyActivity handles GET /api/admin/overview/hourly.
func (h *AdminHandler) HourlyActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.manager.HourlyActivity(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"buckets": activity})
}

// StatusCounts handles GET /api/admin/status-counts.
func (h *AdminHandler) StatusCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.manager.StatusCounts(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, counts)
}

// ListSupervisors handles GET /api/admin/supervisors.
func (h *AdminHandler) ListSupervisors(w http.ResponseWriter, r *http.Request) {
	supervisors, err := h.manager.ListSupervisors(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"supervisors": supervisors})
}

// CreateSupervisor handles POST /api/admin/supervisors.
func (h *AdminHandler) CreateSupervisor(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	supervisor, err := h.manager.CreateSupervisor(r.Context(), reports.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, supervisor)
}

// DeleteSupervisor handles DELETE /api/admin/supervisors/:id.
func (h *AdminHandler) DeleteSupervisor(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/supervisors/")
	if id == "" {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_FIELDS", "supervisor id is required")
		return
	}

	if err := h.manager.DeleteSupervisor(r.Context(), id); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
