package reports

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleancity/cleancity/internal/classify"
	"github.com/cleancity/cleancity/internal/models"
)

var (
	// ErrReportNotFound indicates the requested report does not exist.
	ErrReportNotFound = errors.New("report not found")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotOwner indicates the actor does not own the report.
	ErrNotOwner = errors.New("report belongs to another user")

	// ErrNotSupervisor indicates the assignment target is not a supervisor.
	ErrNotSupervisor = errors.New("user is not a supervisor")

	// ErrNotAssignee indicates the actor is not the supervisor the report
	// is assigned to.
	ErrNotAssignee = errors.New("report is assigned to another supervisor")

	// ErrSupervisorHasReports blocks deleting a supervisor still referenced
	// as the resolver of existing reports.
	ErrSupervisorHasReports = errors.New("supervisor has resolved reports; reassign them first")

	// ErrMissingLocation indicates a resolution has no recorded coordinates.
	ErrMissingLocation = errors.New("resolved location is missing")

	// ErrReasonRequired indicates a rejection was submitted without a reason.
	ErrReasonRequired = errors.New("rejection reason is required")

	// ErrEmailTaken indicates the email address is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// InvalidTransitionError reports a lifecycle move the state machine forbids.
type InvalidTransitionError struct {
	From models.ReportStatus
	To   models.ReportStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition report from %s to %s", e.From, e.To)
}

// TooFarApartError reports a permanent-resolution attempt outside the
// verification geofence. DistanceMeters is rounded to two decimals for
// presentation.
type TooFarApartError struct {
	DistanceMeters float64
}

func (e *TooFarApartError) Error() string {
	return fmt.Sprintf("resolved location is %.2f m from the reported location", e.DistanceMeters)
}

// GateRejectionError reports a submission turned away by the classification
// gate, carrying the verdict so callers can surface it.
type GateRejectionError struct {
	Outcome classify.Outcome
	Result  classify.Result
}

func (e *GateRejectionError) Error() string {
	return fmt.Sprintf("submission rejected by classifier: %s (label=%q confidence=%.2f)",
		e.Outcome, e.Result.Label, e.Result.Confidence)
}

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects all invalid fields of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
