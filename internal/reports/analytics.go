package reports

import (
	"context"
	"math"
	"time"

	"github.com/cleancity/cleancity/internal/models"
)

// DashboardStats is the admin overview of platform activity.
type DashboardStats struct {
	TotalReports      int     `json:"total_reports"`
	TotalUsers        int     `json:"total_users"`
	Pending           int     `json:"pending"`
	InProgress        int     `json:"in_progress"`
	Resolved          int     `json:"resolved"`
	PermanentResolved int     `json:"permanent_resolved"`
	Rejected          int     `json:"rejected"`
	OutOfScope        int     `json:"out_of_scope"`
	ResolutionRate    float64 `json:"resolution_rate"` // percentage, one decimal
}

// DailyOverview is one day of newly created reports broken down by their
// current status.
type DailyOverview struct {
	Date       string `json:"date"` // YYYY-MM-DD
	New        int    `json:"new"`
	InProgress int    `json:"in_progress"`
	Resolved   int    `json:"resolved"`
}

// HourlyActivityBucket is one hour of submission activity.
type HourlyActivityBucket struct {
	Hour             string `json:"hour"` // "15:00"
	ReportsSubmitted int    `json:"reports_submitted"`
	ActiveUsers      int    `json:"active_users"`
}

// Dashboard computes the admin overview.
func (m *Manager) Dashboard(ctx context.Context) (*DashboardStats, error) {
	counts, err := m.reports.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	userCount, err := m.users.Count(ctx)
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalUsers:        userCount,
		Pending:           counts[models.StatusPending],
		InProgress:        counts[models.StatusInProgress],
		Resolved:          counts[models.StatusResolved],
		PermanentResolved: counts[models.StatusPermanentResolved],
		Rejected:          counts[models.StatusRejected],
		OutOfScope:        counts[models.StatusOutOfScope],
	}
	for _, count := range counts {
		stats.TotalReports += count
	}

	if stats.TotalReports > 0 {
		resolved := stats.Resolved + stats.PermanentResolved
		rate := float64(resolved) / float64(stats.TotalReports) * 100
		stats.ResolutionRate = math.Round(rate*10) / 10
	}

	return stats, nil
}

// WeeklyOverview returns, for each of the last seven days oldest first, how
// many reports created that day are currently pending, in progress, or
// resolved.
func (m *Manager) WeeklyOverview(ctx context.Context) ([]DailyOverview, error) {
	now := time.Now()
	start := now.AddDate(0, 0, -6)
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	reports, err := m.reports.ListBetween(ctx, start, now.Add(time.Second))
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]*DailyOverview)
	overview := make([]DailyOverview, 7)
	for day := 0; day < 7; day++ {
		date := start.AddDate(0, 0, day).Format("2006-01-02")
		overview[day] = DailyOverview{Date: date}
		byDay[date] = &overview[day]
	}

	for _, report := range reports {
		entry, ok := byDay[report.CreatedAt.Format("2006-01-02")]
		if !ok {
			continue
		}
		switch report.Status {
		case models.StatusPending:
			entry.New++
		case models.StatusInProgress:
			entry.InProgress++
		case models.StatusResolved, models.StatusPermanentResolved:
			entry.Resolved++
		}
	}

	return overview, nil
}

// HourlyActivity returns submission volume and distinct active reporters for
// each of the last twelve clock hours, oldest first.
func (m *Manager) HourlyActivity(ctx context.Context) ([]HourlyActivityBucket, error) {
	now := time.Now()
	start := now.Add(-11 * time.Hour).Truncate(time.Hour)

	reports, err := m.reports.ListBetween(ctx, start, now.Add(time.Second))
	if err != nil {
		return nil, err
	}

	type tally struct {
		count int
		users map[string]struct{}
	}
	byHour := make(map[time.Time]*tally)

	for _, report := range reports {
		hour := report.CreatedAt.Truncate(time.Hour)
		entry, ok := byHour[hour]
		if !ok {
			entry = &tally{users: make(map[string]struct{})}
			byHour[hour] = entry
		}
		entry.count++
		entry.users[report.ReporterID] = struct{}{}
	}

	activity := make([]HourlyActivityBucket, 0, 12)
	for i := 0; i < 12; i++ {
		hour := start.Add(time.Duration(i) * time.Hour)
		bucket := HourlyActivityBucket{Hour: hour.Format("15:04")}
		if entry, ok := byHour[hour]; ok {
			bucket.ReportsSubmitted = entry.count
			bucket.ActiveUsers = len(entry.users)
		}
		activity = append(activity, bucket)
	}

	return activity, nil
}

// StatusCounts returns the raw per-status report counts.
func (m *Manager) StatusCounts(ctx context.Context) (map[models.ReportStatus]int, error) {
	return m.reports.CountByStatus(ctx)
}
