package reports

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/cleancity/cleancity/internal/classify"
	"github.com/cleancity/cleancity/internal/models"
	"github.com/cleancity/cleancity/internal/storage"
)

type testEnv struct {
	manager    *Manager
	reports    *MemoryReportRepository
	users      *MemoryUserRepository
	classifier *classify.MockClassifier
	store      *storage.MemoryStorage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		reports:    NewMemoryReportRepository(),
		users:      NewMemoryUserRepository(),
		classifier: classify.NewMockClassifier(),
		store:      storage.NewMemoryStorage(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.manager = NewManager(env.reports, env.users, env.classifier, env.store, DefaultManagerConfig(), logger)
	return env
}

func (env *testEnv) addUser(t *testing.T, id, role string) models.User {
	t.Helper()

	user := models.User{
		ID:        id,
		Username:  id,
		Email:     id + "@example.com",
		Role:      role,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

func testImage() string {
	return base64.StdEncoding.EncodeToString([]byte("fake-image-bytes"))
}

func validSubmission(reporterID string) SubmitInput {
	return SubmitInput{
		ReporterID:  reporterID,
		Title:       "Overflowing bin",
		Details:     "Trash pile next to the bus stop",
		Address:     "Main St 4",
		Latitude:    52.52,
		Longitude:   13.405,
		ImageBase64: testImage(),
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted submission", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")

		report, err := env.manager.Submit(ctx, validSubmission("citizen-1"))
		if err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}

		if report.Status != models.StatusPending {
			t.Errorf("expected status pending, got %s", report.Status)
		}
		if report.Type != models.TypeStandard {
			t.Errorf("expected standard type, got %s", report.Type)
		}
		if report.PointsAwarded != 10 {
			t.Errorf("expected 10 points, got %d", report.PointsAwarded)
		}
		if report.Verification != models.TierHighConfidence {
			t.Errorf("expected high_confidence tier, got %s", report.Verification)
		}
		if !strings.HasPrefix(report.ImageKey, "reports/") {
			t.Errorf("unexpected image key %q", report.ImageKey)
		}
		if env.store.Size() != 1 {
			t.Errorf("expected 1 stored image, got %d", env.store.Size())
		}

		user, _ := env.users.GetByID(ctx, "citizen-1")
		if user.ReportCount != 1 || user.Points != 10 {
			t.Errorf("expected tally 1/10, got %d/%d", user.ReportCount, user.Points)
		}
	})

	t.Run("hazardous reports earn more points", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")

		input := validSubmission("citizen-1")
		input.Type = models.TypeHazardous

		report, err := env.manager.Submit(ctx, input)
		if err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
		if report.PointsAwarded != 20 {
			t.Errorf("expected 20 points, got %d", report.PointsAwarded)
		}
	})

	t.Run("force submit skips classifier", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")

		input := validSubmission("citizen-1")
		input.ForceSubmit = true

		report, err := env.manager.Submit(ctx, input)
		if err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
		if len(env.classifier.Calls) != 0 {
			t.Errorf("expected no classifier calls, got %d", len(env.classifier.Calls))
		}
		if report.Verification != models.TierUnverified {
			t.Errorf("expected unverified tier, got %s", report.Verification)
		}
		if !report.ForceSubmitted {
			t.Error("expected ForceSubmitted to be set")
		}
	})

	t.Run("non-waste verdict is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		env.classifier.Result = classify.Result{Label: "Plastic Bottle", Confidence: 0.9}

		_, err := env.manager.Submit(ctx, validSubmission("citizen-1"))

		var gateErr *GateRejectionError
		if !errors.As(err, &gateErr) {
			t.Fatalf("expected GateRejectionError, got %v", err)
		}
		if gateErr.Outcome != classify.OutcomeNotWaste {
			t.Errorf("expected not_waste outcome, got %s", gateErr.Outcome)
		}
		if env.reports.Size() != 0 {
			t.Errorf("expected no stored report, got %d", env.reports.Size())
		}
	})

	t.Run("low confidence is rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		env.classifier.Result = classify.Result{Label: "Waste", Confidence: 0.5}

		_, err := env.manager.Submit(ctx, validSubmission("citizen-1"))

		var gateErr *GateRejectionError
		if !errors.As(err, &gateErr) {
			t.Fatalf("expected GateRejectionError, got %v", err)
		}
		if gateErr.Outcome != classify.OutcomeLowConfidence {
			t.Errorf("expected low_confidence outcome, got %s", gateErr.Outcome)
		}
	})

	t.Run("classifier outage propagates", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		env.classifier.Err = classify.ErrServiceUnavailable

		_, err := env.manager.Submit(ctx, validSubmission("citizen-1"))
		if !errors.Is(err, classify.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("invalid image encoding", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")

		input := validSubmission("citizen-1")
		input.ImageBase64 = "not!!valid!!base64"

		_, err := env.manager.Submit(ctx, input)
		if !errors.Is(err, classify.ErrInvalidImageEncoding) {
			t.Errorf("expected ErrInvalidImageEncoding, got %v", err)
		}
	})

	t.Run("missing fields are collected", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.Submit(ctx, SubmitInput{Latitude: 200})

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(verr.Fields) < 3 {
			t.Errorf("expected at least 3 field errors, got %d: %v", len(verr.Fields), verr.Fields)
		}
	})
}

func (env *testEnv) submitReport(t *testing.T, reporterID string) *models.Report {
	t.Helper()

	report, err := env.manager.Submit(context.Background(), validSubmission(reporterID))
	if err != nil {
		t.Fatalf("failed to submit report: %v", err)
	}
	return report
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("pending to in-progress stamps assignment", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		updated, err := env.manager.UpdateStatus(ctx, report.ID, "supervisor-1", models.StatusInProgress)
		if err != nil {
			t.Fatalf("UpdateStatus returned error: %v", err)
		}
		if updated.Status != models.StatusInProgress {
			t.Errorf("expected in-progress, got %s", updated.Status)
		}
		if updated.AssignedTo == nil || *updated.AssignedTo != "supervisor-1" {
			t.Error("expected assignment to be stamped")
		}
		if updated.AssignedAt == nil {
			t.Error("expected assignment time to be stamped")
		}
	})

	t.Run("pending to out-of-scope stamps actor", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		updated, err := env.manager.UpdateStatus(ctx, report.ID, "admin-1", models.StatusOutOfScope)
		if err != nil {
			t.Fatalf("UpdateStatus returned error: %v", err)
		}
		if updated.OutOfScopeBy == nil || *updated.OutOfScopeBy != "admin-1" {
			t.Error("expected out-of-scope actor to be stamped")
		}
	})

	t.Run("resolved needs proof and is refused here", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		_, err := env.manager.UpdateStatus(ctx, report.ID, "supervisor-1", models.StatusResolved)

		var terr *InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("terminal states do not move", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		if _, err := env.manager.UpdateStatus(ctx, report.ID, "admin-1", models.StatusOutOfScope); err != nil {
			t.Fatalf("setup transition failed: %v", err)
		}

		_, err := env.manager.UpdateStatus(ctx, report.ID, "supervisor-1", models.StatusInProgress)

		var terr *InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("unknown report", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.UpdateStatus(ctx, "missing", "x", models.StatusInProgress)
		if !errors.Is(err, ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound, got %v", err)
		}
	})
}

func (env *testEnv) resolveReport(t *testing.T, reportID string, lat, lon float64) *models.Report {
	t.Helper()

	ctx := context.Background()
	if _, err := env.manager.UpdateStatus(ctx, reportID, "supervisor-1", models.StatusInProgress); err != nil {
		t.Fatalf("failed to move report to in-progress: %v", err)
	}

	report, err := env.manager.Resolve(ctx, reportID, "supervisor-1", ResolveInput{
		ImageBase64: testImage(),
		Latitude:    &lat,
		Longitude:   &lon,
		Address:     "Main St 4",
	})
	if err != nil {
		t.Fatalf("failed to resolve report: %v", err)
	}
	return report
}

func TestResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("records proof", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		resolved := env.resolveReport(t, report.ID, 52.52, 13.405)

		if resolved.Status != models.StatusResolved {
			t.Errorf("expected resolved, got %s", resolved.Status)
		}
		if resolved.ResolvedBy == nil || *resolved.ResolvedBy != "supervisor-1" {
			t.Error("expected resolver to be stamped")
		}
		if !strings.HasPrefix(resolved.ResolvedImageKey, "resolved-reports/") {
			t.Errorf("unexpected proof key %q", resolved.ResolvedImageKey)
		}
		if env.store.Size() != 2 {
			t.Errorf("expected 2 stored images, got %d", env.store.Size())
		}
	})

	t.Run("pending report cannot be resolved", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		lat, lon := 52.52, 13.405
		_, err := env.manager.Resolve(ctx, report.ID, "supervisor-1", ResolveInput{
			ImageBase64: testImage(),
			Latitude:    &lat,
			Longitude:   &lon,
			Address:     "Main St 4",
		})

		var terr *InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("out-of-range proof coordinates", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		lat, lon := 200.0, 13.405
		_, err := env.manager.Resolve(ctx, report.ID, "supervisor-1", ResolveInput{
			ImageBase64: testImage(),
			Latitude:    &lat,
			Longitude:   &lon,
			Address:     "Main St 4",
		})

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if len(verr.Fields) != 1 || verr.Fields[0].Field != "latitude" {
			t.Errorf("expected a latitude field error, got %+v", verr.Fields)
		}
	})

	t.Run("only the assignee can resolve", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		if _, err := env.manager.UpdateStatus(ctx, report.ID, "supervisor-1", models.StatusInProgress); err != nil {
			t.Fatalf("failed to move report to in-progress: %v", err)
		}

		lat, lon := 52.52, 13.405
		_, err := env.manager.Resolve(ctx, report.ID, "supervisor-2", ResolveInput{
			ImageBase64: testImage(),
			Latitude:    &lat,
			Longitude:   &lon,
			Address:     "Main St 4",
		})
		if !errors.Is(err, ErrNotAssignee) {
			t.Fatalf("expected ErrNotAssignee, got %v", err)
		}

		current, _ := env.manager.Get(ctx, report.ID)
		if current.ResolvedBy != nil {
			t.Error("expected no resolver to be stamped")
		}
	})

	t.Run("missing proof image", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		_, err := env.manager.Resolve(ctx, report.ID, "supervisor-1", ResolveInput{})

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestPermanentResolve(t *testing.T) {
	ctx := context.Background()

	t.Run("within geofence", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		// ~5.6 m north of the reported location.
		env.resolveReport(t, report.ID, 52.52005, 13.405)

		verified, err := env.manager.PermanentResolve(ctx, report.ID, "admin-1")
		if err != nil {
			t.Fatalf("PermanentResolve returned error: %v", err)
		}
		if verified.Status != models.StatusPermanentResolved {
			t.Errorf("expected permanent-resolved, got %s", verified.Status)
		}
		if verified.DistanceToReported == nil || *verified.DistanceToReported <= 0 {
			t.Error("expected recorded distance")
		}
		if verified.PermanentResolvedBy == nil || *verified.PermanentResolvedBy != "admin-1" {
			t.Error("expected verifying admin to be stamped")
		}
	})

	t.Run("outside geofence", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		// ~22 m north of the reported location.
		env.resolveReport(t, report.ID, 52.5202, 13.405)

		_, err := env.manager.PermanentResolve(ctx, report.ID, "admin-1")

		var farErr *TooFarApartError
		if !errors.As(err, &farErr) {
			t.Fatalf("expected TooFarApartError, got %v", err)
		}
		if farErr.DistanceMeters < 20 || farErr.DistanceMeters > 25 {
			t.Errorf("unexpected distance %.2f", farErr.DistanceMeters)
		}

		// Failed verification leaves the report resolved.
		current, _ := env.manager.Get(ctx, report.ID)
		if current.Status != models.StatusResolved {
			t.Errorf("expected report to stay resolved, got %s", current.Status)
		}
	})

	t.Run("missing resolved location", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		env.resolveReport(t, report.ID, 52.52, 13.405)

		// Simulate a legacy row resolved without coordinates.
		stored, _ := env.reports.GetByID(ctx, report.ID)
		stored.ResolvedLatitude = nil
		stored.ResolvedLongitude = nil
		if err := env.reports.Update(ctx, *stored); err != nil {
			t.Fatalf("setup update failed: %v", err)
		}

		_, err := env.manager.PermanentResolve(ctx, report.ID, "admin-1")
		if !errors.Is(err, ErrMissingLocation) {
			t.Errorf("expected ErrMissingLocation, got %v", err)
		}
	})

	t.Run("pending report cannot be verified", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		_, err := env.manager.PermanentResolve(ctx, report.ID, "admin-1")

		var terr *InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})
}

func TestReject(t *testing.T) {
	ctx := context.Background()

	t.Run("resolved report with reason", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")
		env.resolveReport(t, report.ID, 52.52, 13.405)

		rejected, err := env.manager.Reject(ctx, report.ID, "admin-1", "photo shows a different site")
		if err != nil {
			t.Fatalf("Reject returned error: %v", err)
		}
		if rejected.Status != models.StatusRejected {
			t.Errorf("expected rejected, got %s", rejected.Status)
		}
		if rejected.RejectionReason != "photo shows a different site" {
			t.Errorf("unexpected reason %q", rejected.RejectionReason)
		}
	})

	t.Run("reason is mandatory", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")
		env.resolveReport(t, report.ID, 52.52, 13.405)

		_, err := env.manager.Reject(ctx, report.ID, "admin-1", "")
		if !errors.Is(err, ErrReasonRequired) {
			t.Errorf("expected ErrReasonRequired, got %v", err)
		}
	})

	t.Run("only resolved reports can be rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		_, err := env.manager.Reject(ctx, report.ID, "admin-1", "reason")

		var terr *InvalidTransitionError
		if !errors.As(err, &terr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})
}

func TestAssignToSupervisor(t *testing.T) {
	ctx := context.Background()

	t.Run("batch with mixed results", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		env.addUser(t, "supervisor-1", "supervisor")

		pending := env.submitReport(t, "citizen-1")
		taken := env.submitReport(t, "citizen-1")
		if _, err := env.manager.UpdateStatus(ctx, taken.ID, "supervisor-2", models.StatusInProgress); err != nil {
			t.Fatalf("setup transition failed: %v", err)
		}

		result, err := env.manager.AssignToSupervisor(ctx, "supervisor-1", []string{pending.ID, taken.ID, "missing"})
		if err != nil {
			t.Fatalf("AssignToSupervisor returned error: %v", err)
		}

		if len(result.Assigned) != 1 || result.Assigned[0] != pending.ID {
			t.Errorf("expected only %s assigned, got %v", pending.ID, result.Assigned)
		}
		if len(result.Failures) != 2 {
			t.Fatalf("expected 2 failures, got %v", result.Failures)
		}

		reasons := map[string]string{}
		for _, f := range result.Failures {
			reasons[f.ReportID] = f.Reason
		}
		if reasons[taken.ID] != "not_pending" {
			t.Errorf("expected not_pending for %s, got %q", taken.ID, reasons[taken.ID])
		}
		if reasons["missing"] != "not_found" {
			t.Errorf("expected not_found, got %q", reasons["missing"])
		}

		// The successful item sticks despite the later failures.
		assigned, _ := env.manager.Get(ctx, pending.ID)
		if assigned.Status != models.StatusInProgress {
			t.Errorf("expected in-progress, got %s", assigned.Status)
		}
	})

	t.Run("target must be a supervisor", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")

		_, err := env.manager.AssignToSupervisor(ctx, "citizen-1", []string{"r1"})
		if !errors.Is(err, ErrNotSupervisor) {
			t.Errorf("expected ErrNotSupervisor, got %v", err)
		}
	})

	t.Run("unknown supervisor", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.manager.AssignToSupervisor(ctx, "missing", []string{"r1"})
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("owner delete reverses tally and cleans storage", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		if err := env.manager.Delete(ctx, report.ID, "citizen-1"); err != nil {
			t.Fatalf("Delete returned error: %v", err)
		}

		if env.reports.Size() != 0 {
			t.Errorf("expected no reports, got %d", env.reports.Size())
		}
		if env.store.Size() != 0 {
			t.Errorf("expected no stored images, got %d", env.store.Size())
		}

		user, _ := env.users.GetByID(ctx, "citizen-1")
		if user.ReportCount != 0 || user.Points != 0 {
			t.Errorf("expected tally 0/0, got %d/%d", user.ReportCount, user.Points)
		}
	})

	t.Run("only the reporter can delete", func(t *testing.T) {
		env := newTestEnv(t)
		env.addUser(t, "citizen-1", "citizen")
		report := env.submitReport(t, "citizen-1")

		err := env.manager.Delete(ctx, report.ID, "citizen-2")
		if !errors.Is(err, ErrNotOwner) {
			t.Errorf("expected ErrNotOwner, got %v", err)
		}
		if env.reports.Size() != 1 {
			t.Error("expected report to survive")
		}
	})

	t.Run("unknown report", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.manager.Delete(ctx, "missing", "citizen-1")
		if !errors.Is(err, ErrReportNotFound) {
			t.Errorf("expected ErrReportNotFound, got %v", err)
		}
	})
}

func TestUploadTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "citizen-1", "citizen")
	env.manager.config.UploadTimeout = time.Nanosecond

	time.Sleep(time.Millisecond)

	_, err := env.manager.Submit(context.Background(), validSubmission("citizen-1"))
	if !errors.Is(err, storage.ErrUploadTimeout) {
		t.Errorf("expected ErrUploadTimeout, got %v", err)
	}
}
