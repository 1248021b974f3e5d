package reports

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/cleancity/cleancity/internal/auth"
	"github.com/cleancity/cleancity/internal/classify"
	"github.com/cleancity/cleancity/internal/geo"
	"github.com/cleancity/cleancity/internal/models"
	"github.com/cleancity/cleancity/internal/storage"
)

// VerificationRadiusMeters is how far a resolution photo may be taken from
// the reported location and still count as on-site. The boundary is
// inclusive.
const VerificationRadiusMeters = 10.0

// Manager orchestrates the report lifecycle:
// Submit → Assign → Resolve → Verify (permanent-resolve) or Reject
type Manager struct {
	reports    ReportRepository
	users      UserRepository
	classifier classify.Classifier
	store      storage.Storage
	config     ManagerConfig
	validate   *validator.Validate
	logger     *slog.Logger
}

// ManagerConfig holds configuration for report lifecycle management.
type ManagerConfig struct {
	UploadTimeout time.Duration // Deadline for a single image upload
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		UploadTimeout: 15 * time.Second,
	}
}

// NewManager creates a new report lifecycle manager.
func NewManager(
	reportRepo ReportRepository,
	userRepo UserRepository,
	classifier classify.Classifier,
	store storage.Storage,
	config ManagerConfig,
	logger *slog.Logger,
) *Manager {
	if config.UploadTimeout <= 0 {
		config.UploadTimeout = DefaultManagerConfig().UploadTimeout
	}

	return &Manager{
		reports:    reportRepo,
		users:      userRepo,
		classifier: classifier,
		store:      store,
		config:     config,
		validate:   validator.New(),
		logger:     logger,
	}
}

// SubmitInput is a citizen's report submission.
type SubmitInput struct {
	ReporterID   string            `validate:"required"`
	Title        string            `validate:"required,max=255"`
	Details      string            `validate:"required,max=2000"`
	Address      string            `validate:"required,max=500"`
	Latitude     float64           `validate:"latitude"`
	Longitude    float64           `validate:"longitude"`
	ImageBase64  string            `validate:"required"`
	Type         models.ReportType `validate:"omitempty,oneof=standard hazardous large"`
	PhotoTakenAt time.Time
	ForceSubmit  bool
}

// Submit validates a submission, runs it through the classification gate,
// uploads the photo, and persists the report as pending.
//
// Force-submitted reports skip the gate entirely and are stored unverified.
func (m *Manager) Submit(ctx context.Context, input SubmitInput) (*models.Report, error) {
	if err := m.validateInput(input); err != nil {
		return nil, err
	}

	normalized, err := classify.NormalizeImage(input.ImageBase64)
	if err != nil {
		return nil, err
	}

	tier := models.TierUnverified
	var result classify.Result

	if !input.ForceSubmit {
		result, err = m.classifier.Classify(ctx, normalized)
		if err != nil {
			return nil, err
		}

		if outcome := classify.Decide(result); outcome != classify.OutcomeAccepted {
			m.logger.Info("submission rejected by classification gate",
				"reporter_id", input.ReporterID,
				"outcome", outcome,
				"label", result.Label,
				"confidence", result.Confidence)
			return nil, &GateRejectionError{Outcome: outcome, Result: result}
		}

		tier = models.DeriveTier(result.Confidence)
	}

	data, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, classify.ErrInvalidImageEncoding
	}

	key := "reports/" + uuid.New().String() + ".jpg"
	imageURL, err := m.upload(ctx, key, data)
	if err != nil {
		return nil, err
	}

	reportType := input.Type
	if reportType == "" {
		reportType = models.TypeStandard
	}

	now := time.Now()
	report := models.Report{
		ID:              uuid.New().String(),
		ReporterID:      input.ReporterID,
		Title:           input.Title,
		Details:         input.Details,
		Address:         input.Address,
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		ImageURL:        imageURL,
		ImageKey:        key,
		PhotoTakenAt:    input.PhotoTakenAt,
		Type:            reportType,
		Status:          models.StatusPending,
		Verification:    tier,
		ClassifiedLabel: result.Label,
		Confidence:      result.Confidence,
		ForceSubmitted:  input.ForceSubmit,
		PointsAwarded:   reportType.Points(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	// Reward bookkeeping is best-effort: a failed tally update never
	// fails the submission.
	if err := m.users.AdjustTally(ctx, input.ReporterID, 1, report.PointsAwarded); err != nil {
		m.logger.Error("failed to update reporter tally",
			"user_id", input.ReporterID,
			"report_id", report.ID,
			"error", err)
	}

	m.logger.Info("report submitted",
		"report_id", report.ID,
		"reporter_id", report.ReporterID,
		"type", report.Type,
		"verification", report.Verification)

	return &report, nil
}

// Get retrieves a single report.
func (m *Manager) Get(ctx context.Context, id string) (*models.Report, error) {
	report, err := m.reports.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// List retrieves reports matching the query.
func (m *Manager) List(ctx context.Context, query models.ReportQuery) (*models.ReportPage, error) {
	return m.reports.Query(ctx, query)
}

// UpdateStatus moves a report to in-progress or out-of-scope. The remaining
// lifecycle moves need evidence and go through Resolve, PermanentResolve,
// and Reject instead.
func (m *Manager) UpdateStatus(ctx context.Context, id, actorID string, next models.ReportStatus) (*models.Report, error) {
	report, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if next != models.StatusInProgress && next != models.StatusOutOfScope {
		return nil, &InvalidTransitionError{From: report.Status, To: next}
	}
	if !report.Status.CanTransition(next) {
		return nil, &InvalidTransitionError{From: report.Status, To: next}
	}

	now := time.Now()
	switch next {
	case models.StatusInProgress:
		report.AssignedTo = &actorID
		report.AssignedAt = &now
	case models.StatusOutOfScope:
		report.OutOfScopeBy = &actorID
		report.OutOfScopeAt = &now
	}
	report.Status = next

	if err := m.reports.Update(ctx, *report); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	m.logger.Info("report status updated",
		"report_id", report.ID,
		"status", next,
		"actor_id", actorID)

	return report, nil
}

// ResolveInput is a supervisor's cleanup proof.
type ResolveInput struct {
	ImageBase64 string   `validate:"required"`
	Latitude    *float64 `validate:"required"`
	Longitude   *float64 `validate:"required"`
	Address     string   `validate:"required,max=500"`
}

// Resolve records cleanup proof for an in-progress report.
func (m *Manager) Resolve(ctx context.Context, id, supervisorID string, input ResolveInput) (*models.Report, error) {
	if err := m.validateInput(input); err != nil {
		return nil, err
	}
	if err := validProofLocation(input.Latitude, input.Longitude); err != nil {
		return nil, err
	}

	report, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.Status.CanTransition(models.StatusResolved) {
		return nil, &InvalidTransitionError{From: report.Status, To: models.StatusResolved}
	}
	if report.AssignedTo == nil || *report.AssignedTo != supervisorID {
		return nil, ErrNotAssignee
	}

	normalized, err := classify.NormalizeImage(input.ImageBase64)
	if err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return nil, classify.ErrInvalidImageEncoding
	}

	key := "resolved-reports/" + uuid.New().String() + ".jpg"
	imageURL, err := m.upload(ctx, key, data)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	report.Status = models.StatusResolved
	report.ResolvedBy = &supervisorID
	report.ResolvedAt = &now
	report.ResolvedImageURL = imageURL
	report.ResolvedImageKey = key
	report.ResolvedLatitude = input.Latitude
	report.ResolvedLongitude = input.Longitude
	report.ResolvedAddress = input.Address

	if err := m.reports.Update(ctx, *report); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	m.logger.Info("report resolved",
		"report_id", report.ID,
		"supervisor_id", supervisorID)

	return report, nil
}

// PermanentResolve verifies a resolution on-site. The resolution photo must
// have been taken within the verification geofence of the reported location.
func (m *Manager) PermanentResolve(ctx context.Context, id, adminID string) (*models.Report, error) {
	report, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.Status.CanTransition(models.StatusPermanentResolved) {
		return nil, &InvalidTransitionError{From: report.Status, To: models.StatusPermanentResolved}
	}

	if report.ResolvedLatitude == nil || report.ResolvedLongitude == nil {
		return nil, ErrMissingLocation
	}

	reported := geo.Point{Latitude: report.Latitude, Longitude: report.Longitude}
	resolved := geo.Point{Latitude: *report.ResolvedLatitude, Longitude: *report.ResolvedLongitude}

	distance := geo.Distance(reported, resolved)
	if !geo.WithinRadius(reported, resolved, VerificationRadiusMeters) {
		return nil, &TooFarApartError{DistanceMeters: math.Round(distance*100) / 100}
	}

	now := time.Now()
	report.Status = models.StatusPermanentResolved
	report.PermanentResolvedBy = &adminID
	report.PermanentResolvedAt = &now
	report.DistanceToReported = &distance

	if err := m.reports.Update(ctx, *report); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	m.logger.Info("report permanently resolved",
		"report_id", report.ID,
		"admin_id", adminID,
		"distance_m", distance)

	return report, nil
}

// Reject turns down a resolution. Only resolved reports can be rejected,
// and a reason is mandatory.
func (m *Manager) Reject(ctx context.Context, id, adminID, reason string) (*models.Report, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	report, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !report.Status.CanTransition(models.StatusRejected) {
		return nil, &InvalidTransitionError{From: report.Status, To: models.StatusRejected}
	}

	now := time.Now()
	report.Status = models.StatusRejected
	report.RejectedBy = &adminID
	report.RejectedAt = &now
	report.RejectionReason = reason

	if err := m.reports.Update(ctx, *report); err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	m.logger.Info("report rejected",
		"report_id", report.ID,
		"admin_id", adminID)

	return report, nil
}

// AssignmentFailure records a single report that could not be assigned.
type AssignmentFailure struct {
	ReportID string `json:"report_id"`
	Reason   string `json:"reason"`
}

// AssignmentResult summarizes a batch assignment. Already-assigned items
// stay assigned when later items fail.
type AssignmentResult struct {
	SupervisorID string              `json:"supervisor_id"`
	Assigned     []string            `json:"assigned"`
	Failures     []AssignmentFailure `json:"failures"`
}

// AssignToSupervisor assigns a batch of pending reports to a supervisor.
// The supervisor check gates the whole batch; individual reports fail
// independently without rolling back earlier assignments.
func (m *Manager) AssignToSupervisor(ctx context.Context, supervisorID string, reportIDs []string) (*AssignmentResult, error) {
	supervisor, err := m.users.GetByID(ctx, supervisorID)
	if err != nil {
		return nil, err
	}
	if supervisor == nil {
		return nil, ErrUserNotFound
	}
	if supervisor.Role != string(auth.RoleSupervisor) {
		return nil, ErrNotSupervisor
	}

	result := &AssignmentResult{
		SupervisorID: supervisorID,
		Assigned:     []string{},
		Failures:     []AssignmentFailure{},
	}

	now := time.Now()
	for _, id := range reportIDs {
		report, err := m.reports.GetByID(ctx, id)
		if err != nil {
			return result, fmt.Errorf("failed to load report %s: %w", id, err)
		}
		if report == nil {
			result.Failures = append(result.Failures, AssignmentFailure{ReportID: id, Reason: "not_found"})
			continue
		}
		if report.Status != models.StatusPending {
			result.Failures = append(result.Failures, AssignmentFailure{ReportID: id, Reason: "not_pending"})
			continue
		}

		report.Status = models.StatusInProgress
		report.AssignedTo = &supervisorID
		report.AssignedAt = &now

		if err := m.reports.Update(ctx, *report); err != nil {
			return result, fmt.Errorf("failed to assign report %s: %w", id, err)
		}
		result.Assigned = append(result.Assigned, id)
	}

	m.logger.Info("batch assignment completed",
		"supervisor_id", supervisorID,
		"assigned", len(result.Assigned),
		"failed", len(result.Failures))

	return result, nil
}

// Delete removes a report. Only the reporter may delete their own report;
// the reward bookkeeping is reversed and stored images are cleaned up
// best-effort.
func (m *Manager) Delete(ctx context.Context, id, actorID string) error {
	report, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if report.ReporterID != actorID {
		return ErrNotOwner
	}

	if err := m.reports.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	if err := m.users.AdjustTally(ctx, report.ReporterID, -1, -report.PointsAwarded); err != nil {
		m.logger.Error("failed to reverse reporter tally",
			"user_id", report.ReporterID,
			"report_id", id,
			"error", err)
	}

	for _, key := range []string{report.ImageKey, report.ResolvedImageKey} {
		if key == "" {
			continue
		}
		if err := m.store.Delete(ctx, key); err != nil {
			m.logger.Warn("failed to delete stored image", "key", key, "error", err)
		}
	}

	m.logger.Info("report deleted", "report_id", id, "actor_id", actorID)

	return nil
}

// upload stores image bytes under its own deadline.
func (m *Manager) upload(ctx context.Context, key string, data []byte) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, m.config.UploadTimeout)
	defer cancel()

	url, err := m.store.Upload(uploadCtx, key, data, "image/jpeg")
	if err != nil {
		if uploadCtx.Err() != nil {
			return "", storage.ErrUploadTimeout
		}
		return "", err
	}
	return url, nil
}

// validateInput runs struct validation and collects every failing field.
func (m *Manager) validateInput(input interface{}) error {
	err := m.validate.Struct(input)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: fmt.Sprintf("failed %q validation", fe.Tag()),
		})
	}
	return &ValidationError{Fields: fields}
}

// validProofLocation range-checks cleanup proof coordinates.
func validProofLocation(lat, lon *float64) error {
	var fields []FieldError
	if lat != nil && !geo.ValidLatitude(*lat) {
		fields = append(fields, FieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}
	if lon != nil && !geo.ValidLongitude(*lon) {
		fields = append(fields, FieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
