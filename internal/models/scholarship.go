package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Scholarship is a funding opportunity that students can apply to.
// The array fields are matched with "contains" semantics when filtering.
type Scholarship struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Organization   string          `json:"organization" db:"organization"`
	Amount         *float64        `json:"amount,omitempty" db:"amount"`
	Currency       string          `json:"currency" db:"currency"`
	Deadline       time.Time       `json:"deadline" db:"deadline"`
	Description    string          `json:"description" db:"description"`
	Eligibility    json.RawMessage `json:"eligibility,omitempty" db:"eligibility"`
	Requirements   []string        `json:"requirements" db:"requirements"`
	ApplicationURL string          `json:"application_url" db:"application_url"`
	Category       []string        `json:"category" db:"category"`
	Country        []string        `json:"country" db:"country"`
	FieldOfStudy   []string        `json:"field_of_study" db:"field_of_study"`
	DegreeLevel    []string        `json:"degree_level" db:"degree_level"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ScholarshipInput creates a scholarship. Currency defaults to USD and
// IsActive to true when omitted.
type ScholarshipInput struct {
	Name           string          `json:"name"`
	Organization   string          `json:"organization"`
	Amount         *float64        `json:"amount,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	Deadline       time.Time       `json:"deadline"`
	Description    string          `json:"description"`
	Eligibility    json.RawMessage `json:"eligibility,omitempty"`
	Requirements   []string        `json:"requirements,omitempty"`
	ApplicationURL string          `json:"application_url"`
	Category       []string        `json:"category,omitempty"`
	Country        []string        `json:"country,omitempty"`
	FieldOfStudy   []string        `json:"field_of_study,omitempty"`
	DegreeLevel    []string        `json:"degree_level,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

// ScholarshipUpdate is a partial update. Nil fields are left unchanged.
type ScholarshipUpdate struct {
	Name           *string         `json:"name,omitempty"`
	Organization   *string         `json:"organization,omitempty"`
	Amount         *float64        `json:"amount,omitempty"`
	Currency       *string         `json:"currency,omitempty"`
	Deadline       *time.Time      `json:"deadline,omitempty"`
	Description    *string         `json:"description,omitempty"`
	Eligibility    json.RawMessage `json:"eligibility,omitempty"`
	Requirements   []string        `json:"requirements,omitempty"`
	ApplicationURL *string         `json:"application_url,omitempty"`
	Category       []string        `json:"category,omitempty"`
	Country        []string        `json:"country,omitempty"`
	FieldOfStudy   []string        `json:"field_of_study,omitempty"`
	DegreeLevel    []string        `json:"degree_level,omitempty"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

// ScholarshipFilter narrows a scholarship listing. Empty strings and a nil
// IsActive mean "any".
type ScholarshipFilter struct {
	IsActive     *bool  `json:"is_active,omitempty"`
	Country      string `json:"country,omitempty"`
	Category     string `json:"category,omitempty"`
	FieldOfStudy string `json:"field_of_study,omitempty"`
	DegreeLevel  string `json:"degree_level,omitempty"`
}
