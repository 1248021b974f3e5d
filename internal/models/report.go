package models

import (
	"time"
)

// Report represents a citizen-submitted waste report moving through the
// resolution lifecycle.
type Report struct {
	ID           string    `json:"id"`
	ReporterID   string    `json:"reporter_id"`
	Title        string    `json:"title"`
	Details      string    `json:"details"`
	Address      string    `json:"address"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	ImageURL     string    `json:"image_url"`
	ImageKey     string    `json:"image_key"`
	PhotoTakenAt time.Time `json:"photo_taken_at"`

	Type   ReportType   `json:"type"`
	Status ReportStatus `json:"status"`

	Verification    VerificationTier `json:"verification"`
	ClassifiedLabel string           `json:"classified_label,omitempty"`
	Confidence      float64          `json:"confidence"`
	ForceSubmitted  bool             `json:"force_submitted"`
	PointsAwarded   int              `json:"points_awarded"`

	AssignedTo *string    `json:"assigned_to,omitempty"`
	AssignedAt *time.Time `json:"assigned_at,omitempty"`

	ResolvedBy        *string    `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	ResolvedImageURL  string     `json:"resolved_image_url,omitempty"`
	ResolvedImageKey  string     `json:"resolved_image_key,omitempty"`
	ResolvedLatitude  *float64   `json:"resolved_latitude,omitempty"`
	ResolvedLongitude *float64   `json:"resolved_longitude,omitempty"`
	ResolvedAddress   string     `json:"resolved_address,omitempty"`

	PermanentResolvedBy *string    `json:"permanent_resolved_by,omitempty"`
	PermanentResolvedAt *time.Time `json:"permanent_resolved_at,omitempty"`
	DistanceToReported  *float64   `json:"distance_to_reported,omitempty"`

	RejectedBy      *string    `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`

	OutOfScopeBy *string    `json:"out_of_scope_by,omitempty"`
	OutOfScopeAt *time.Time `json:"out_of_scope_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReportStatus represents the lifecycle state of a report.
type ReportStatus string

const (
	StatusPending           ReportStatus = "pending"            // Submitted, awaiting pickup
	StatusInProgress        ReportStatus = "in-progress"        // A supervisor is working on it
	StatusResolved          ReportStatus = "resolved"           // Cleanup proof submitted
	StatusPermanentResolved ReportStatus = "permanent-resolved" // Verified on-site within the geofence
	StatusRejected          ReportStatus = "rejected"           // Resolution proof rejected by an admin
	StatusOutOfScope        ReportStatus = "out-of-scope"       // Not actionable by the city
)

// IsTerminal reports whether a status permits no further transitions.
func (s ReportStatus) IsTerminal() bool {
	switch s {
	case StatusPermanentResolved, StatusRejected, StatusOutOfScope:
		return true
	}
	return false
}

// IsValid reports whether s is a known report status.
func (s ReportStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved,
		StatusPermanentResolved, StatusRejected, StatusOutOfScope:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s ReportStatus) CanTransition(next ReportStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusOutOfScope
	case StatusInProgress:
		return next == StatusResolved
	case StatusResolved:
		return next == StatusPermanentResolved || next == StatusRejected
	}
	return false
}

// ReportType categorizes the kind of waste reported.
type ReportType string

const (
	TypeStandard  ReportType = "standard"
	TypeHazardous ReportType = "hazardous"
	TypeLarge     ReportType = "large"
)

// Points returns the reward for submitting a report of this type.
// Unknown types fall back to the standard reward.
func (t ReportType) Points() int {
	switch t {
	case TypeHazardous:
		return 20
	case TypeLarge:
		return 15
	default:
		return 10
	}
}

// VerificationTier grades how strongly the classifier backed a submission.
type VerificationTier string

const (
	TierUnverified       VerificationTier = "unverified"        // Below 0.65 or force-submitted
	TierMediumConfidence VerificationTier = "medium_confidence" // Confidence >= 0.65
	TierHighConfidence   VerificationTier = "high_confidence"   // Confidence >= 0.85
)

// DeriveTier calculates the verification tier from a classifier confidence.
func DeriveTier(confidence float64) VerificationTier {
	switch {
	case confidence >= 0.85:
		return TierHighConfidence
	case confidence >= 0.65:
		return TierMediumConfidence
	default:
		return TierUnverified
	}
}

// ReportQuery holds filters for listing reports.
type ReportQuery struct {
	Status       *ReportStatus
	Type         *ReportType
	ReporterID   string
	AssignedTo   string
	OutOfScopeBy string
	Search       string
	Page         int
	Limit        int
}

// Normalize clamps pagination parameters to usable values.
func (q *ReportQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
}

// Offset returns the row offset for the current page.
func (q ReportQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// ReportPage is a paginated set of reports.
type ReportPage struct {
	Reports []Report `json:"reports"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
	Total   int      `json:"total"`
	HasMore bool     `json:"has_more"`
}
