package reports

import (
	"context"
	"testing"
	"time"

	"github.com/cleancity/cleancity/internal/models"
	"github.com/google/uuid"
)

func (env *testEnv) seedReport(t *testing.T, status models.ReportStatus, createdAt time.Time) models.Report {
	t.Helper()

	report := models.Report{
		ID:         uuid.New().String(),
		ReporterID: "citizen-1",
		Title:      "seeded",
		Status:     status,
		Type:       models.TypeStandard,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
	if err := env.reports.Create(context.Background(), report); err != nil {
		t.Fatalf("failed to seed report: %v", err)
	}
	return report
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.addUser(t, "citizen-1", "citizen")
	env.addUser(t, "supervisor-1", "supervisor")

	now := time.Now()
	env.seedReport(t, models.StatusPending, now)
	env.seedReport(t, models.StatusInProgress, now)
	env.seedReport(t, models.StatusResolved, now)
	env.seedReport(t, models.StatusPermanentResolved, now)

	stats, err := env.manager.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard returned error: %v", err)
	}

	if stats.TotalReports != 4 {
		t.Errorf("expected 4 reports, got %d", stats.TotalReports)
	}
	if stats.TotalUsers != 2 {
		t.Errorf("expected 2 users, got %d", stats.TotalUsers)
	}
	if stats.Pending != 1 || stats.InProgress != 1 || stats.Resolved != 1 || stats.PermanentResolved != 1 {
		t.Errorf("unexpected status breakdown: %+v", stats)
	}
	if stats.ResolutionRate != 50.0 {
		t.Errorf("expected 50.0 resolution rate, got %.1f", stats.ResolutionRate)
	}
}

func TestDashboardEmpty(t *testing.T) {
	env := newTestEnv(t)

	stats, err := env.manager.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard returned error: %v", err)
	}
	if stats.TotalReports != 0 || stats.ResolutionRate != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestWeeklyOverview(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now()
	env.seedReport(t, models.StatusPending, now)
	env.seedReport(t, models.StatusInProgress, now)
	env.seedReport(t, models.StatusResolved, now)
	env.seedReport(t, models.StatusPending, now.AddDate(0, 0, -3))
	env.seedReport(t, models.StatusPending, now.AddDate(0, 0, -10)) // outside the window

	overview, err := env.manager.WeeklyOverview(context.Background())
	if err != nil {
		t.Fatalf("WeeklyOverview returned error: %v", err)
	}

	if len(overview) != 7 {
		t.Fatalf("expected 7 days, got %d", len(overview))
	}

	total := 0
	for _, day := range overview {
		total += day.New + day.InProgress + day.Resolved
	}
	if total != 4 {
		t.Errorf("expected 4 reports within the window, got %d", total)
	}

	today := overview[6]
	if today.Date != now.Format("2006-01-02") {
		t.Fatalf("expected today last, got %+v", today)
	}
	if today.New != 1 || today.InProgress != 1 || today.Resolved != 1 {
		t.Errorf("unexpected status breakdown for today: %+v", today)
	}
}

func TestHourlyActivity(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now()
	env.seedReport(t, models.StatusPending, now)
	env.seedReport(t, models.StatusPending, now)
	env.seedReport(t, models.StatusPending, now.Add(-30*time.Hour)) // outside the window

	activity, err := env.manager.HourlyActivity(context.Background())
	if err != nil {
		t.Fatalf("HourlyActivity returned error: %v", err)
	}

	if len(activity) != 12 {
		t.Fatalf("expected 12 buckets, got %d", len(activity))
	}

	total := 0
	for _, bucket := range activity {
		total += bucket.ReportsSubmitted
	}
	if total != 2 {
		t.Errorf("expected 2 reports within the window, got %d", total)
	}

	current := activity[len(activity)-1]
	if want := now.Truncate(time.Hour).Format("15:04"); current.Hour != want {
		t.Fatalf("expected last bucket %q, got %q", want, current.Hour)
	}
	if current.ReportsSubmitted != 2 {
		t.Errorf("expected 2 reports in the current hour, got %d", current.ReportsSubmitted)
	}
	// Both reports come from the same citizen.
	if current.ActiveUsers != 1 {
		t.Errorf("expected 1 active user in the current hour, got %d", current.ActiveUsers)
	}
}
