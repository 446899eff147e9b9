package models

import (
	"encoding/json"
	"time"
)

// ChatRequest asks the assistant a question. Context is forwarded to the
// LLM service untouched.
type ChatRequest struct {
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// CVParseRequest carries the plain text of a CV.
type CVParseRequest struct {
	CVContent string `json:"cv_content"`
}

// GenerateDocumentRequest asks for a draft of an application document.
type GenerateDocumentRequest struct {
	DocumentType DocumentType           `json:"document_type"`
	Data         map[string]interface{} `json:"data,omitempty"`
}

// InterviewPrepRequest asks for feedback on, or a follow-up to, an
// interview question.
type InterviewPrepRequest struct {
	Question string                 `json:"question"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// StreamStarted is returned with 202 Accepted. The reply arrives as
// chat:chunk events carrying SessionID on the notification socket.
type StreamStarted struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// DiscoveredScholarship is one entry of the LLM service's discovery
// response. Field names follow that service. Amount is either a number or
// free text such as "1,181 (Monthly Allowance)".
type DiscoveredScholarship struct {
	Title               string          `json:"title"`
	Provider            string          `json:"provider"`
	Description         string          `json:"description"`
	Amount              json.RawMessage `json:"amount,omitempty"`
	Currency            string          `json:"currency"`
	Deadline            string          `json:"deadline"`
	Country             string          `json:"country"`
	EducationLevel      string          `json:"educationLevel"`
	FieldOfStudy        string          `json:"fieldOfStudy"`
	EligibilityCriteria []string        `json:"eligibilityCriteria"`
	ApplicationURL      string          `json:"applicationUrl"`
	IsActive            *bool           `json:"isActive,omitempty"`
}

// DiscoveryResult summarises one discovery run.
type DiscoveryResult struct {
	Discovered int `json:"discovered"`
	Saved      int `json:"saved"`
	Duplicates int `json:"duplicates"`
	Skipped    int `json:"skipped"`
}

// RefreshResult is returned by the admin refresh endpoint, which replaces
// the whole catalogue with freshly discovered scholarships.
type RefreshResult struct {
	Message      string          `json:"message"`
	DeletedCount int64           `json:"deleted_count"`
	NewCount     int             `json:"new_count"`
	Discovery    DiscoveryResult `json:"discovery"`
	RefreshedAt  time.Time       `json:"refreshed_at"`
}
