package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DocumentType classifies an uploaded or generated document.
type DocumentType string

const (
	DocumentCV             DocumentType = "CV"
	DocumentCoverLetter    DocumentType = "COVER_LETTER"
	DocumentTranscript     DocumentType = "TRANSCRIPT"
	DocumentRecommendation DocumentType = "RECOMMENDATION"
	DocumentEssay          DocumentType = "ESSAY"
	DocumentOther          DocumentType = "OTHER"
)

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	switch t {
	case DocumentCV, DocumentCoverLetter, DocumentTranscript, DocumentRecommendation, DocumentEssay, DocumentOther:
		return true
	}
	return false
}

// Document is a piece of application material owned by one user, optionally
// attached to one of their applications.
type Document struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        uuid.UUID       `json:"user_id" db:"user_id"`
	ApplicationID *uuid.UUID      `json:"application_id,omitempty" db:"application_id"`
	Type          DocumentType    `json:"type" db:"type"`
	Title         string          `json:"title" db:"title"`
	Content       string          `json:"content" db:"content"`
	WordCount     int             `json:"word_count" db:"word_count"`
	Version       int             `json:"version" db:"version"`
	IsGenerated   bool            `json:"is_generated" db:"is_generated"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// DocumentInput creates a document.
type DocumentInput struct {
	ApplicationID *uuid.UUID      `json:"application_id,omitempty"`
	Type          DocumentType    `json:"type"`
	Title         string          `json:"title"`
	Content       string          `json:"content"`
	WordCount     *int            `json:"word_count,omitempty"`
	Version       *int            `json:"version,omitempty"`
	IsGenerated   bool            `json:"is_generated,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// DocumentUpdate is a partial update. Nil fields are left unchanged.
type DocumentUpdate struct {
	ApplicationID *uuid.UUID      `json:"application_id,omitempty"`
	Type          *DocumentType   `json:"type,omitempty"`
	Title         *string         `json:"title,omitempty"`
	Content       *string         `json:"content,omitempty"`
	WordCount     *int            `json:"word_count,omitempty"`
	Version       *int            `json:"version,omitempty"`
	IsGenerated   *bool           `json:"is_generated,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}
