package reports

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/cleancity/cleancity/internal/auth"
	"github.com/cleancity/cleancity/internal/models"
)

// RegisterInput is a new citizen account request.
type RegisterInput struct {
	Username string `validate:"required,min=2,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=128"`
}

// RegisterUser creates a citizen account.
func (m *Manager) RegisterUser(ctx context.Context, input RegisterInput) (*models.User, error) {
	return m.createAccount(ctx, input, auth.RoleCitizen)
}

// CreateSupervisor creates a supervisor account. Admin-only at the API layer.
func (m *Manager) CreateSupervisor(ctx context.Context, input RegisterInput) (*models.User, error) {
	return m.createAccount(ctx, input, auth.RoleSupervisor)
}

func (m *Manager) createAccount(ctx context.Context, input RegisterInput, role auth.Role) (*models.User, error) {
	if err := m.validateInput(input); err != nil {
		return nil, err
	}

	existing, err := m.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := models.User{
		ID:           uuid.New().String(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         string(role),
		ProfileImage: avatarURL(input.Username),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	m.logger.Info("user created", "user_id", user.ID, "role", user.Role)

	return &user, nil
}

// Authenticate checks a login attempt and returns the account on success.
func (m *Manager) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := m.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GetUser retrieves a single user account.
func (m *Manager) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListSupervisors returns every supervisor with their current workload.
func (m *Manager) ListSupervisors(ctx context.Context) ([]models.SupervisorSummary, error) {
	supervisors, err := m.users.ListByRole(ctx, string(auth.RoleSupervisor))
	if err != nil {
		return nil, err
	}

	summaries := make([]models.SupervisorSummary, 0, len(supervisors))
	for _, supervisor := range supervisors {
		resolved, err := m.reports.CountAssigned(ctx, supervisor.ID, models.StatusResolved)
		if err != nil {
			return nil, err
		}
		inProgress, err := m.reports.CountAssigned(ctx, supervisor.ID, models.StatusInProgress)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.SupervisorSummary{
			User:            supervisor,
			ResolvedCount:   resolved,
			InProgressCount: inProgress,
		})
	}

	return summaries, nil
}

// DeleteSupervisor removes a supervisor account.
func (m *Manager) DeleteSupervisor(ctx context.Context, id string) error {
	user, err := m.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Role != string(auth.RoleSupervisor) {
		return ErrNotSupervisor
	}

	resolved, err := m.reports.CountResolvedBy(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check supervisor workload: %w", err)
	}
	if resolved > 0 {
		return ErrSupervisorHasReports
	}

	if err := m.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete supervisor: %w", err)
	}

	m.logger.Info("supervisor deleted", "user_id", id)

	return nil
}

// Leaderboard returns the highest-scoring reporters.
func (m *Manager) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return m.users.TopByPoints(ctx, limit)
}

// avatarURL builds a deterministic placeholder avatar for new accounts.
func avatarURL(username string) string {
	return "https://api.dicebear.com/7.x/initials/svg?seed=" + url.QueryEscape(username)
}
