package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cleancity/cleancity/internal/auth"
	"github.com/cleancity/cleancity/internal/metrics"
	"github.com/cleancity/cleancity/internal/models"
	"github.com/cleancity/cleancity/internal/reports"
)

// ReportHandler handles report lifecycle requests.
type ReportHandler struct {
	manager   *reports.Manager
	collector *metrics.HTTPCollector
	logger    *slog.Logger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(manager *reports.Manager, collector *metrics.HTTPCollector, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		manager:   manager,
		collector: collector,
		logger:    logger,
	}
}

// SubmitRequest is the POST /api/reports body.
type SubmitRequest struct {
	Title        string            `json:"title"`
	Details      string            `json:"details"`
	Address      string            `json:"address"`
	Latitude     float64           `json:"latitude"`
	Longitude    float64           `json:"longitude"`
	ImageBase64  string            `json:"image"`
	Type         models.ReportType `json:"type"`
	PhotoTakenAt time.Time         `json:"photo_taken_at"`
	ForceSubmit  bool              `json:"force_submit"`
}

// Submit handles POST /api/reports.
func (h *ReportHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication")
		return
	}

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	report, err := h.manager.Submit(r.Context(), reports.SubmitInput{
		ReporterID:   userID,
		Title:        req.Title,
		Details:      req.Details,
		Address:      req.Address,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		ImageBase64:  req.ImageBase64,
		Type:         req.Type,
		PhotoTakenAt: req.PhotoTakenAt,
		ForceSubmit:  req.ForceSubmit,
	})
	if err != nil {
		h.recordVerdict(err)
		writeDomainError(w, h.logger, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordVerdict("accepted")
	}

	writeJSON(w, h.logger, http.StatusCreated, report)
}

func (h *ReportHandler) recordVerdict(err error) {
	if h.collector == nil {
		return
	}
	if gateErr, ok := err.(*reports.GateRejectionError); ok {
		h.collector.RecordVerdict(string(gateErr.Outcome))
	}
}

// List handles GET /api/reports.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := parseReportQuery(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	page, err := h.manager.List(r.Context(), query)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, page)
}

// ListMine handles GET /api/reports/mine.
func (h *ReportHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication")
		return
	}

	query, err := parseReportQuery(r)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	query.ReporterID = userID

	page, err := h.manager.List(r.Context(), query)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, page)
}

// Get handles GET /api/reports/:id.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.manager.Get(r.Context(), reportIDFromPath(r))
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, report)
}

// Delete handles DELETE /api/reports/:id.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "UNAUTHORIZED", "missing authentication")
		return
	}

	if err := h.manager.Delete(r.Context(), reportIDFromPath(r), userID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// StatusRequest is the PATCH /api/reports/:id/status body.
type StatusRequest struct {
	Status models.ReportStatus `json:"status"`
}

// UpdateStatus handles PATCH /api/reports/:id/status.
func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if !req.Status.IsValid() {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_STATUS", "unknown report status")
		return
	}

	report, err := h.manager.UpdateStatus(r.Context(), reportIDFromPath(r), userID, req.Status)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordTransition(string(report.Status))
	}

	writeJSON(w, h.logger, http.StatusOK, report)
}

// ResolveRequest is the POST /api/reports/:id/resolve body.
type ResolveRequest struct {
	ImageBase64 string   `json:"image"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Address     string   `json:"address"`
}

// Resolve handles POST /api/reports/:id/resolve.
func (h *ReportHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	report, err := h.manager.Resolve(r.Context(), reportIDFromPath(r), userID, reports.ResolveInput{
		ImageBase64: req.ImageBase64,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Address:     req.Address,
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordTransition(string(report.Status))
	}

	writeJSON(w, h.logger, http.StatusOK, report)
}

// PermanentResolve handles POST /api/reports/:id/permanent-resolved.
func (h *ReportHandler) PermanentResolve(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	report, err := h.manager.PermanentResolve(r.Context(), reportIDFromPath(r), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordTransition(string(report.Status))
	}

	writeJSON(w, h.logger, http.StatusOK, report)
}

// RejectRequest is the POST /api/reports/:id/reject body.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// Reject handles POST /api/reports/:id/reject.
func (h *ReportHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.GetUserIDFromContext(r.Context())

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}

	report, err := h.manager.Reject(r.Context(), reportIDFromPath(r), userID, req.Reason)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.collector != nil {
		h.collector.RecordTransition(string(report.Status))
	}

	writeJSON(w, h.logger, http.StatusOK, report)
}

// AssignRequest is the POST /api/reports/assign body.
type AssignRequest struct {
	SupervisorID string   `json:"supervisor_id"`
	ReportIDs    []string `json:"report_ids"`
}

// Assign handles POST /api/reports/assign.
func (h *ReportHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
		return
	}
	if req.SupervisorID == "" || len(req.ReportIDs) == 0 {
		writeError(w, h.logger, http.StatusBadRequest, "MISSING_FIELDS", "supervisor_id and report_ids are required")
		return
	}

	result, err := h.manager.AssignToSupervisor(r.Context(), req.SupervisorID, req.ReportIDs)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	if h.collector != nil {
		for range result.Assigned {
			h.collector.RecordTransition(string(models.StatusInProgress))
		}
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}

// Leaderboard handles GET /api/leaderboard.
func (h *ReportHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	top, err := h.manager.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{"leaderboard": top})
}

// reportIDFromPath extracts the report ID from /api/reports/:id[/suffix].
func reportIDFromPath(r *http.Request) string {
	path := strings.TrimPrefix(r.URL.Path, "/api/reports/")
	if idx := strings.IndexByte(path, '/'); idx >= 0 {
		path = path[:idx]
	}
	return path
}
