package reports

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cleancity/cleancity/internal/models"
)

// ReportRepository defines the interface for storing and retrieving reports.
type ReportRepository interface {
	// Create stores a new report.
	Create(ctx context.Context, report models.Report) error

	// GetByID retrieves a report by its ID.
	GetByID(ctx context.Context, id string) (*models.Report, error)

	// Update modifies an existing report.
	Update(ctx context.Context, report models.Report) error

	// Delete removes a report by its ID.
	Delete(ctx context.Context, id string) error

	// Query retrieves reports matching the given filter parameters.
	Query(ctx context.Context, query models.ReportQuery) (*models.ReportPage, error)
	CountResolvedBy(ctx context.Context, supervisorID string) (int, error)

	// CountByStatus returns the number of reports in each lifecycle status.
	CountByStatus(ctx context.Context) (map[models.ReportStatus]int, error)

	// CountAssigned returns the number of reports assigned to a supervisor
	// that are currently in the given status.
	CountAssigned(ctx context.Context, supervisorID string, status models.ReportStatus) (int, error)

	// ListBetween retrieves reports created within a time range.
	ListBetween(ctx context.Context, start, end time.Time) ([]models.Report, error)
}

// UserRepository defines the interface for storing and retrieving user accounts.
type UserRepository interface {
	// Create stores a new user.
	Create(ctx context.Context, user models.User) error

	// GetByID retrieves a user by its ID.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// GetByEmail retrieves a user by email address.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// Update modifies an existing user.
	Update(ctx context.Context, user models.User) error

	// Delete removes a user by its ID.
	Delete(ctx context.Context, id string) error

	// ListByRole retrieves all users with the given role.
	ListByRole(ctx context.Context, role string) ([]models.User, error)

	// AdjustTally shifts a user's report count and points by the given deltas.
	// Both counters are floored at zero.
	AdjustTally(ctx context.Context, userID string, reportDelta, pointsDelta int) error

	// TopByPoints retrieves the highest-scoring users for the leaderboard.
	TopByPoints(ctx context.Context, limit int) ([]models.User, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)
}

// MemoryReportRepository implements an in-memory report repository for testing/development.
type MemoryReportRepository struct {
	reports map[string]models.Report
}

// NewMemoryReportRepository creates a new in-memory report repository.
func NewMemoryReportRepository() *MemoryReportRepository {
	return &MemoryReportRepository{
		reports: make(map[string]models.Report),
	}
}

// Create stores a new report.
func (r *MemoryReportRepository) Create(ctx context.Context, report models.Report) error {
	r.reports[report.ID] = report
	return nil
}

// GetByID retrieves a report by ID.
func (r *MemoryReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	report, ok := r.reports[id]
	if !ok {
		return nil, nil
	}
	return &report, nil
}

// Update modifies an existing report.
func (r *MemoryReportRepository) Update(ctx context.Context, report models.Report) error {
	report.UpdatedAt = time.Now()
	r.reports[report.ID] = report
	return nil
}

// Delete removes a report.
func (r *MemoryReportRepository) Delete(ctx context.Context, id string) error {
	delete(r.reports, id)
	return nil
}

// Query retrieves reports matching filter parameters.
func (r *MemoryReportRepository) Query(ctx context.Context, query models.ReportQuery) (*models.ReportPage, error) {
	query.Normalize()

	matching := make([]models.Report, 0)
	for _, report := range r.reports {
		if matchesQuery(report, query) {
			matching = append(matching, report)
		}
	}

	// Newest first, matching the SQL ordering.
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].CreatedAt.After(matching[j].CreatedAt)
	})

	total := len(matching)
	offset := query.Offset()
	end := offset + query.Limit

	if offset >= total {
		return &models.ReportPage{
			Reports: []models.Report{},
			Page:    query.Page,
			Limit:   query.Limit,
			Total:   total,
			HasMore: false,
		}, nil
	}

	if end > total {
		end = total
	}

	return &models.ReportPage{
		Reports: matching[offset:end],
		Page:    query.Page,
		Limit:   query.Limit,
		Total:   total,
		HasMore: end < total,
	}, nil
}

// CountByStatus returns per-status report counts.
func (r *MemoryReportRepository) CountByStatus(ctx context.Context) (map[models.ReportStatus]int, error) {
	counts := make(map[models.ReportStatus]int)
	for _, report := range r.reports {
		counts[report.Status]++
	}
	return counts, nil
}

// CountAssigned returns the number of reports assigned to a supervisor in a status.
func (r *MemoryReportRepository) CountAssigned(ctx context.Context, supervisorID string, status models.ReportStatus) (int, error) {
	count := 0
	for _, report := range r.reports {
		if report.AssignedTo != nil && *report.AssignedTo == supervisorID && report.Status == status {
			count++
		}
	}
	return count, nil
}

// CountResolvedBy returns how many reports name the supervisor as resolver.
func (r *MemoryReportRepository) CountResolvedBy(ctx context.Context, supervisorID string) (int, error) {
	count := 0
	for _, report := range r.reports {
		if report.ResolvedBy != nil && *report.ResolvedBy == supervisorID {
			count++
		}
	}
	return count, nil
}

// ListBetween retrieves reports created within a time range.
func (r *MemoryReportRepository) ListBetween(ctx context.Context, start, end time.Time) ([]models.Report, error) {
	result := make([]models.Report, 0)
	for _, report := range r.reports {
		if !report.CreatedAt.Before(start) && report.CreatedAt.Before(end) {
			result = append(result, report)
		}
	}
	return result, nil
}

// Size returns the number of reports in the repository.
func (r *MemoryReportRepository) Size() int {
	return len(r.reports)
}

// matchesQuery checks if a report matches query filters.
func matchesQuery(report models.Report, query models.ReportQuery) bool {
	if query.Status != nil && report.Status != *query.Status {
		return false
	}
	if query.Type != nil && report.Type != *query.Type {
		return false
	}
	if query.ReporterID != "" && report.ReporterID != query.ReporterID {
		return false
	}
	if query.AssignedTo != "" && (report.AssignedTo == nil || *report.AssignedTo != query.AssignedTo) {
		return false
	}
	if query.OutOfScopeBy != "" && (report.OutOfScopeBy == nil || *report.OutOfScopeBy != query.OutOfScopeBy) {
		return false
	}
	if query.Search != "" {
		needle := strings.ToLower(query.Search)
		title := strings.ToLower(report.Title)
		details := strings.ToLower(report.Details)
		if !strings.Contains(title, needle) && !strings.Contains(details, needle) {
			return false
		}
	}
	return true
}

// MemoryUserRepository implements an in-memory user repository for testing/development.
type MemoryUserRepository struct {
	users    map[string]models.User
	emailIdx map[string]string // email -> ID mapping
}

// NewMemoryUserRepository creates a new in-memory user repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:    make(map[string]models.User),
		emailIdx: make(map[string]string),
	}
}

// Create stores a new user.
func (r *MemoryUserRepository) Create(ctx context.Context, user models.User) error {
	r.users[user.ID] = user
	if user.Email != "" {
		r.emailIdx[strings.ToLower(user.Email)] = user.ID
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address.
func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	id, ok := r.emailIdx[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// Update modifies an existing user.
func (r *MemoryUserRepository) Update(ctx context.Context, user models.User) error {
	user.UpdatedAt = time.Now()
	r.users[user.ID] = user
	if user.Email != "" {
		r.emailIdx[strings.ToLower(user.Email)] = user.ID
	}
	return nil
}

// Delete removes a user.
func (r *MemoryUserRepository) Delete(ctx context.Context, id string) error {
	user, ok := r.users[id]
	if ok && user.Email != "" {
		delete(r.emailIdx, strings.ToLower(user.Email))
	}
	delete(r.users, id)
	return nil
}

// ListByRole retrieves users with the given role.
func (r *MemoryUserRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	result := make([]models.User, 0)
	for _, user := range r.users {
		if user.Role == role {
			result = append(result, user)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// AdjustTally shifts a user's counters, flooring both at zero.
func (r *MemoryUserRepository) AdjustTally(ctx context.Context, userID string, reportDelta, pointsDelta int) error {
	user, ok := r.users[userID]
	if !ok {
		return nil
	}

	user.ReportCount += reportDelta
	if user.ReportCount < 0 {
		user.ReportCount = 0
	}
	user.Points += pointsDelta
	if user.Points < 0 {
		user.Points = 0
	}
	user.UpdatedAt = time.Now()
	r.users[userID] = user

	return nil
}

// TopByPoints retrieves the highest-scoring users.
func (r *MemoryUserRepository) TopByPoints(ctx context.Context, limit int) ([]models.User, error) {
	result := make([]models.User, 0, len(r.users))
	for _, user := range r.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ReportCount != result[j].ReportCount {
			return result[i].ReportCount > result[j].ReportCount
		}
		if result[i].Points != result[j].Points {
			return result[i].Points > result[j].Points
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the total number of users.
func (r *MemoryUserRepository) Count(ctx context.Context) (int, error) {
	return len(r.users), nil
}
