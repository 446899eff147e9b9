package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ApplicationStatus tracks where a scholarship application is in its lifecycle.
type ApplicationStatus string

const (
	StatusDraft       ApplicationStatus = "DRAFT"
	StatusSubmitted   ApplicationStatus = "SUBMITTED"
	StatusUnderReview ApplicationStatus = "UNDER_REVIEW"
	StatusAccepted    ApplicationStatus = "ACCEPTED"
	StatusRejected    ApplicationStatus = "REJECTED"
	StatusWithdrawn   ApplicationStatus = "WITHDRAWN"
)

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusUnderReview, StatusAccepted, StatusRejected, StatusWithdrawn:
		return true
	}
	return false
}

// Priority is the student's own ranking of an application.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Application is a user's application to one scholarship. Every application
// has exactly one owner (UserID) and all reads and writes through the API are
// scoped to that owner.
//
// ScholarshipName is a read projection joined from scholarships and is not
// stored on the row.
type Application struct {
	ID              uuid.UUID         `json:"id" db:"id"`
	UserID          uuid.UUID         `json:"user_id" db:"user_id"`
	ScholarshipID   uuid.UUID         `json:"scholarship_id" db:"scholarship_id"`
	ScholarshipName string            `json:"scholarship_name,omitempty"`
	Status          ApplicationStatus `json:"status" db:"status"`
	Priority        Priority          `json:"priority" db:"priority"`
	MatchScore      *float64          `json:"match_score,omitempty" db:"match_score"`
	MatchRationale  json.RawMessage   `json:"match_rationale,omitempty" db:"match_rationale"`
	Notes           *string           `json:"notes,omitempty" db:"notes"`
	SubmittedAt     *time.Time        `json:"submitted_at,omitempty" db:"submitted_at"`
	CreatedAt       time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// ApplicationInput creates an application. Status defaults to DRAFT and
// Priority to MEDIUM.
type ApplicationInput struct {
	ScholarshipID  uuid.UUID         `json:"scholarship_id"`
	Status         ApplicationStatus `json:"status,omitempty"`
	Priority       Priority          `json:"priority,omitempty"`
	MatchScore     *float64          `json:"match_score,omitempty"`
	MatchRationale json.RawMessage   `json:"match_rationale,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
}

// ApplicationUpdate is a partial update. Nil fields are left unchanged.
type ApplicationUpdate struct {
	Status         *ApplicationStatus `json:"status,omitempty"`
	Priority       *Priority          `json:"priority,omitempty"`
	MatchScore     *float64           `json:"match_score,omitempty"`
	MatchRationale json.RawMessage    `json:"match_rationale,omitempty"`
	Notes          *string            `json:"notes,omitempty"`
	SubmittedAt    *time.Time         `json:"submitted_at,omitempty"`
}
