// Package models defines the domain records shared by the API service, the
// notification gateway and the terminal client.
//
// All models carry JSON tags in snake_case. Sensitive fields such as the
// password hash are tagged `json:"-"` so they never leave the server.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role of a user account.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleAdmin   Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// User is an account that can sign in with email and password, or through
// Google when OAuth is configured. GoogleID is set only for linked accounts.
//
// JSON example:
//
//	{
//	  "id": "550e8400-e29b-41d4-a716-446655440000",
//	  "email": "ada@example.com",
//	  "first_name": "Ada",
//	  "last_name": "Lovelace",
//	  "role": "STUDENT",
//	  "is_active": true,
//	  "created_at": "2024-01-15T10:30:00Z",
//	  "updated_at": "2024-01-15T10:30:00Z"
//	}
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, empty for OAuth-only accounts
	GoogleID     *string    `json:"google_id,omitempty" db:"google_id"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Role         Role       `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
}

// FullName joins first and last name, skipping empty parts.
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// UserUpdate is a partial update of a user. Nil fields are left unchanged.
type UserUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *Role   `json:"role,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// UserProfile holds the optional academic and personal details used for
// scholarship matching. There is at most one profile per user.
type UserProfile struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	UserID         uuid.UUID       `json:"user_id" db:"user_id"`
	Phone          *string         `json:"phone,omitempty" db:"phone"`
	Location       *string         `json:"location,omitempty" db:"location"`
	Citizenship    *string         `json:"citizenship,omitempty" db:"citizenship"`
	DateOfBirth    *time.Time      `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Gender         *string         `json:"gender,omitempty" db:"gender"`
	Ethnicity      *string         `json:"ethnicity,omitempty" db:"ethnicity"`
	GPA            *float64        `json:"gpa,omitempty" db:"gpa"`
	Major          *string         `json:"major,omitempty" db:"major"`
	University     *string         `json:"university,omitempty" db:"university"`
	GraduationYear *int            `json:"graduation_year,omitempty" db:"graduation_year"`
	LinkedIn       *string         `json:"linkedin,omitempty" db:"linkedin"`
	Website        *string         `json:"website,omitempty" db:"website"`
	Bio            *string         `json:"bio,omitempty" db:"bio"`
	CVData         json.RawMessage `json:"cv_data,omitempty" db:"cv_data"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// ProfileInput is used both to create a profile and to patch one.
// Nil fields are left unchanged on update.
type ProfileInput struct {
	Phone          *string         `json:"phone,omitempty"`
	Location       *string         `json:"location,omitempty"`
	Citizenship    *string         `json:"citizenship,omitempty"`
	DateOfBirth    *time.Time      `json:"date_of_birth,omitempty"`
	Gender         *string         `json:"gender,omitempty"`
	Ethnicity      *string         `json:"ethnicity,omitempty"`
	GPA            *float64        `json:"gpa,omitempty"`
	Major          *string         `json:"major,omitempty"`
	University     *string         `json:"university,omitempty"`
	GraduationYear *int            `json:"graduation_year,omitempty"`
	LinkedIn       *string         `json:"linkedin,omitempty"`
	Website        *string         `json:"website,omitempty"`
	Bio            *string         `json:"bio,omitempty"`
	CVData         json.RawMessage `json:"cv_data,omitempty"`
}

// SessionInfo describes one signed-in device of a user. It is what the
// session listing endpoint returns and never includes token material.
//
// JSON example:
//
//	{
//	  "id": "0b8f...",
//	  "device_info": "Chrome 120 · Windows 10 · Desktop",
//	  "ip_address": "192.168.1.100",
//	  "created_at": "2024-01-20T14:45:00Z",
//	  "expires_at": "2024-01-27T14:45:00Z"
//	}
type SessionInfo struct {
	ID         string    `json:"id"`
	DeviceInfo string    `json:"device_info"`
	IPAddress  string    `json:"ip_address"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
