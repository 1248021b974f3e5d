package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cleancity/cleancity/internal/models"
)

// PostgresReportRepository implements reports.ReportRepository using PostgreSQL.
type PostgresReportRepository struct {
	db *sql.DB
}

// NewPostgresReportRepository creates a new PostgreSQL report repository.
func NewPostgresReportRepository(db *sql.DB) *PostgresReportRepository {
	return &PostgresReportRepository{db: db}
}

const reportColumns = `
	id, reporter_id, title, details, address, latitude, longitude,
	image_url, image_key, photo_taken_at, type, status,
	verification, classified_label, confidence, force_submitted, points_awarded,
	assigned_to, assigned_at,
	resolved_by, resolved_at, resolved_image_url, resolved_image_key,
	resolved_latitude, resolved_longitude, resolved_address,
	permanent_resolved_by, permanent_resolved_at, distance_to_reported,
	rejected_by, rejected_at, rejection_reason,
	out_of_scope_by, out_of_scope_at,
	created_at, updated_at
`

// Create inserts a new report into the database.
func (r *PostgresReportRepository) Create(ctx context.Context, report models.Report) error {
	query := `
		INSERT INTO reports (` + reportColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
		        $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23,
		        $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36)
	`

	_, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.ReporterID,
		report.Title,
		report.Details,
		report.Address,
		report.Latitude,
		report.Longitude,
		report.ImageURL,
		report.ImageKey,
		nullTime(report.PhotoTakenAt),
		report.Type,
		report.Status,
		report.Verification,
		nullString(report.ClassifiedLabel),
		report.Confidence,
		report.ForceSubmitted,
		report.PointsAwarded,
		report.AssignedTo,
		report.AssignedAt,
		report.ResolvedBy,
		report.ResolvedAt,
		report.ResolvedImageURL,
		report.ResolvedImageKey,
		report.ResolvedLatitude,
		report.ResolvedLongitude,
		report.ResolvedAddress,
		report.PermanentResolvedBy,
		report.PermanentResolvedAt,
		report.DistanceToReported,
		report.RejectedBy,
		report.RejectedAt,
		report.RejectionReason,
		report.OutOfScopeBy,
		report.OutOfScopeAt,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// GetByID retrieves a report by its ID.
func (r *PostgresReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`

	report, err := scanReport(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query report: %w", err)
	}

	return report, nil
}

// Update updates an existing report.
func (r *PostgresReportRepository) Update(ctx context.Context, report models.Report) error {
	query := `
		UPDATE reports SET
			title = $2, details = $3, address = $4, latitude = $5, longitude = $6,
			image_url = $7, image_key = $8, photo_taken_at = $9, type = $10, status = $11,
			verification = $12, classified_label = $13, confidence = $14,
			force_submitted = $15, points_awarded = $16,
			assigned_to = $17, assigned_at = $18,
			resolved_by = $19, resolved_at = $20, resolved_image_url = $21,
			resolved_image_key = $22, resolved_latitude = $23, resolved_longitude = $24,
			resolved_address = $25,
			permanent_resolved_by = $26, permanent_resolved_at = $27, distance_to_reported = $28,
			rejected_by = $29, rejected_at = $30, rejection_reason = $31,
			out_of_scope_by = $32, out_of_scope_at = $33,
			updated_at = $34
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		report.ID,
		report.Title,
		report.Details,
		report.Address,
		report.Latitude,
		report.Longitude,
		report.ImageURL,
		report.ImageKey,
		nullTime(report.PhotoTakenAt),
		report.Type,
		report.Status,
		report.Verification,
		nullString(report.ClassifiedLabel),
		report.Confidence,
		report.ForceSubmitted,
		report.PointsAwarded,
		report.AssignedTo,
		report.AssignedAt,
		report.ResolvedBy,
		report.ResolvedAt,
		report.ResolvedImageURL,
		report.ResolvedImageKey,
		report.ResolvedLatitude,
		report.ResolvedLongitude,
		report.ResolvedAddress,
		report.PermanentResolvedBy,
		report.PermanentResolvedAt,
		report.DistanceToReported,
		report.RejectedBy,
		report.RejectedAt,
		report.RejectionReason,
		report.OutOfScopeBy,
		report.OutOfScopeAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("report not found: %s", report.ID)
	}

	return nil
}

// Delete removes a report from the database.
func (r *PostgresReportRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM reports WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("report not found: %s", id)
	}

	return nil
}

// Query retrieves reports based on filter criteria.
func (r *PostgresReportRepository) Query(ctx context.Context, query models.ReportQuery) (*models.ReportPage, error) {
	query.Normalize()

	whereClause, args := buildReportFilter(query)

	var total int
	countQuery := "SELECT COUNT(*) FROM reports " + whereClause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	sqlQuery := fmt.Sprintf(
		`SELECT %s FROM reports %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		reportColumns, whereClause, len(args)+1, len(args)+2,
	)
	args = append(args, query.Limit, query.Offset())

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	reports := []models.Report{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &models.ReportPage{
		Reports: reports,
		Page:    query.Page,
		Limit:   query.Limit,
		Total:   total,
		HasMore: (query.Page * query.Limit) < total,
	}, nil
}

// CountByStatus returns the number of reports in each lifecycle status.
func (r *PostgresReportRepository) CountByStatus(ctx context.Context) (map[models.ReportStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM reports GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("failed to count reports by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ReportStatus]int)
	for rows.Next() {
		var status models.ReportStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

// CountAssigned returns the number of reports assigned to a supervisor in a status.
func (r *PostgresReportRepository) CountAssigned(ctx context.Context, supervisorID string, status models.ReportStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reports WHERE assigned_to = $1 AND status = $2",
		supervisorID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count assigned reports: %w", err)
	}

	return count, nil
}

// CountResolvedBy returns how many reports name the supervisor as resolver.
func (r *PostgresReportRepository) CountResolvedBy(ctx context.Context, supervisorID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reports WHERE resolved_by = $1",
		supervisorID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count resolved reports: %w", err)
	}

	return count, nil
}

// ListBetween retrieves reports created within a time range.
func (r *PostgresReportRepository) ListBetween(ctx context.Context, start, end time.Time) ([]models.Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, *report)
	}

	return reports, rows.Err()
}

// buildReportFilter constructs the WHERE clause from ReportQuery.
func buildReportFilter(q models.ReportQuery) (string, []interface{}) {
	args := []interface{}{}
	argIdx := 1
	conditions := []string{}

	if q.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *q.Status)
		argIdx++
	}
	if q.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, *q.Type)
		argIdx++
	}
	if q.ReporterID != "" {
		conditions = append(conditions, fmt.Sprintf("reporter_id = $%d", argIdx))
		args = append(args, q.ReporterID)
		argIdx++
	}
	if q.AssignedTo != "" {
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", argIdx))
		args = append(args, q.AssignedTo)
		argIdx++
	}
	if q.OutOfScopeBy != "" {
		conditions = append(conditions, fmt.Sprintf("out_of_scope_by = $%d", argIdx))
		args = append(args, q.OutOfScopeBy)
		argIdx++
	}
	if q.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR details ILIKE $%d)", argIdx, argIdx))
		args = append(args, "%"+q.Search+"%")
		argIdx++
	}

	if len(conditions) == 0 {
		return "", args
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var report models.Report
	var photoTakenAt sql.NullTime
	var classifiedLabel sql.NullString

	err := row.Scan(
		&report.ID,
		&report.ReporterID,
		&report.Title,
		&report.Details,
		&report.Address,
		&report.Latitude,
		&report.Longitude,
		&report.ImageURL,
		&report.ImageKey,
		&photoTakenAt,
		&report.Type,
		&report.Status,
		&report.Verification,
		&classifiedLabel,
		&report.Confidence,
		&report.ForceSubmitted,
		&report.PointsAwarded,
		&report.AssignedTo,
		&report.AssignedAt,
		&report.ResolvedBy,
		&report.ResolvedAt,
		&report.ResolvedImageURL,
		&report.ResolvedImageKey,
		&report.ResolvedLatitude,
		&report.ResolvedLongitude,
		&report.ResolvedAddress,
		&report.PermanentResolvedBy,
		&report.PermanentResolvedAt,
		&report.DistanceToReported,
		&report.RejectedBy,
		&report.RejectedAt,
		&report.RejectionReason,
		&report.OutOfScopeBy,
		&report.OutOfScopeAt,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if photoTakenAt.Valid {
		report.PhotoTakenAt = photoTakenAt.Time
	}
	if classifiedLabel.Valid {
		report.ClassifiedLabel = classifiedLabel.String
	}

	return &report, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
