package models

import "time"

// User is a platform account: citizen reporter, supervisor, or admin.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	ProfileImage string    `json:"profile_image,omitempty"`
	ReportCount  int       `json:"report_count"`
	Points       int       `json:"points"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SupervisorSummary is a supervisor row with workload counters for the
// admin dashboard.
type SupervisorSummary struct {
	User
	ResolvedCount   int `json:"resolved_count"`
	InProgressCount int `json:"in_progress_count"`
}
