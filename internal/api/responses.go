package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cleancity/cleancity/internal/classify"
	"github.com/cleancity/cleancity/internal/reports"
	"github.com/cleancity/cleancity/internal/storage"
)

// errorBody is the wire format for all API errors.
type errorBody struct {
	Code           string               `json:"code"`
	Message        string               `json:"message"`
	Fields         []reports.FieldError `json:"fields,omitempty"`
	Classification *classify.Result     `json:"classification,omitempty"`
	DistanceMeters *float64             `json:"distance_meters,omitempty"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, code, message string) {
	writeJSON(w, logger, status, errorEnvelope{Error: errorBody{Code: code, Message: message}})
}

// writeDomainError maps manager and classifier errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *reports.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, logger, http.StatusBadRequest, errorEnvelope{Error: errorBody{
			Code:    "MISSING_FIELDS",
			Message: "request validation failed",
			Fields:  verr.Fields,
		}})
		return
	}

	var gateErr *reports.GateRejectionError
	if errors.As(err, &gateErr) {
		code := "LOW_CONFIDENCE"
		if gateErr.Outcome == classify.OutcomeNotWaste {
			code = "NOT_WASTE"
		}
		result := gateErr.Result
		writeJSON(w, logger, http.StatusUnprocessableEntity, errorEnvelope{Error: errorBody{
			Code:           code,
			Message:        "submission rejected by the waste classifier",
			Classification: &result,
		}})
		return
	}

	var farErr *reports.TooFarApartError
	if errors.As(err, &farErr) {
		distance := farErr.DistanceMeters
		writeJSON(w, logger, http.StatusConflict, errorEnvelope{Error: errorBody{
			Code:           "TOO_FAR_APART",
			Message:        "resolution photo was taken outside the verification radius",
			DistanceMeters: &distance,
		}})
		return
	}

	var transitionErr *reports.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		writeError(w, logger, http.StatusConflict, "INVALID_TRANSITION", transitionErr.Error())
		return
	}

	switch {
	case errors.Is(err, classify.ErrInvalidImageEncoding):
		writeError(w, logger, http.StatusBadRequest, "INVALID_IMAGE_ENCODING", "image is not valid base64")
	case errors.Is(err, classify.ErrPayloadTooLarge):
		writeError(w, logger, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "image exceeds the 5 MiB limit")
	case errors.Is(err, classify.ErrTimeout):
		writeError(w, logger, http.StatusGatewayTimeout, "CLASSIFIER_TIMEOUT", "waste classifier timed out")
	case errors.Is(err, classify.ErrServiceUnavailable):
		writeError(w, logger, http.StatusServiceUnavailable, "CLASSIFIER_UNAVAILABLE", "waste classifier is unavailable")
	case errors.Is(err, classify.ErrUnauthorized):
		writeError(w, logger, http.StatusBadGateway, "CLASSIFIER_UNAUTHORIZED", "waste classifier rejected the service credentials")
	case errors.Is(err, classify.ErrInvalidUpstreamResponse):
		writeError(w, logger, http.StatusBadGateway, "INVALID_UPSTREAM_RESPONSE", "waste classifier returned an unreadable response")
	case errors.Is(err, storage.ErrUploadTimeout):
		writeError(w, logger, http.StatusGatewayTimeout, "UPLOAD_TIMEOUT", "image upload timed out")
	case errors.Is(err, storage.ErrUploadFailed):
		writeError(w, logger, http.StatusBadGateway, "UPLOAD_FAILED", "image upload failed")
	case errors.Is(err, reports.ErrReportNotFound), errors.Is(err, reports.ErrUserNotFound):
		writeError(w, logger, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, reports.ErrNotOwner):
		writeError(w, logger, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, reports.ErrNotAssignee):
		writeError(w, logger, http.StatusForbidden, "FORBIDDEN", err.Error())
	case errors.Is(err, reports.ErrNotSupervisor):
		writeError(w, logger, http.StatusBadRequest, "NOT_SUPERVISOR", err.Error())
	case errors.Is(err, reports.ErrSupervisorHasReports):
		writeError(w, logger, http.StatusBadRequest, "SUPERVISOR_HAS_REPORTS", err.Error())
	case errors.Is(err, reports.ErrMissingLocation):
		writeError(w, logger, http.StatusBadRequest, "MISSING_LOCATION", err.Error())
	case errors.Is(err, reports.ErrReasonRequired):
		writeError(w, logger, http.StatusBadRequest, "REASON_REQUIRED", err.Error())
	case errors.Is(err, reports.ErrEmailTaken):
		writeError(w, logger, http.StatusConflict, "EMAIL_TAKEN", err.Error())
	case errors.Is(err, reports.ErrInvalidCredentials):
		writeError(w, logger, http.StatusUnauthorized, "INVALID_CREDENTIALS", err.Error())
	default:
		logger.Error("unhandled request error", "error", err)
		writeError(w, logger, http.StatusInternalServerError, "INTERNAL", "internal server error")
	}
}
