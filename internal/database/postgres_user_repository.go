package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cleancity/cleancity/internal/models"
)

// PostgresUserRepository implements reports.UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	db *sql.DB
}

// NewPostgresUserRepository creates a new PostgreSQL user repository.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `
	id, username, email, password_hash, role, profile_image,
	report_count, points, created_at, updated_at
`

// Create inserts a new user into the database.
func (r *PostgresUserRepository) Create(ctx context.Context, user models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Role,
		nullString(user.ProfileImage),
		user.ReportCount,
		user.Points,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by its ID.
func (r *PostgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// GetByEmail retrieves a user by email address.
func (r *PostgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return user, nil
}

// Update updates an existing user.
func (r *PostgresUserRepository) Update(ctx context.Context, user models.User) error {
	query := `
		UPDATE users SET
			username = $2, email = $3, password_hash = $4, role = $5,
			profile_image = $6, report_count = $7, points = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.Role,
		nullString(user.ProfileImage),
		user.ReportCount,
		user.Points,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}

	return nil
}

// Delete removes a user from the database.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user not found: %s", id)
	}

	return nil
}

// ListByRole retrieves all users with the given role.
func (r *PostgresUserRepository) ListByRole(ctx context.Context, role string) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

// AdjustTally shifts a user's report count and points, flooring both at zero.
func (r *PostgresUserRepository) AdjustTally(ctx context.Context, userID string, reportDelta, pointsDelta int) error {
	query := `
		UPDATE users SET
			report_count = GREATEST(report_count + $2, 0),
			points = GREATEST(points + $3, 0),
			updated_at = $4
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, userID, reportDelta, pointsDelta, time.Now())
	if err != nil {
		return fmt.Errorf("failed to adjust user tally: %w", err)
	}

	return nil
}

// TopByPoints retrieves the highest-scoring users for the leaderboard.
func (r *PostgresUserRepository) TopByPoints(ctx context.Context, limit int) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		ORDER BY report_count DESC, points DESC, created_at ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}

	return users, rows.Err()
}

// Count returns the total number of users.
func (r *PostgresUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var profileImage sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&profileImage,
		&user.ReportCount,
		&user.Points,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if profileImage.Valid {
		user.ProfileImage = profileImage.String
	}

	return &user, nil
}
