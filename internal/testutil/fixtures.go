// Package testutil provides fixtures and helpers shared by the service,
// handler and notification tests.
package testutil

import (
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
)

// TestUser creates an active student with default values
func TestUser() *models.User {
	return &models.User{
		ID:           uuid.New(),
		Email:        "test@example.com",
		PasswordHash: "$2a$04$placeholderplaceholderplaceholderplaceholderpla",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.RoleStudent,
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
		LastLogin:    TimePtr(time.Now()),
	}
}


// TestUserWithEmail creates a test user with a specific email
func TestUserWithEmail(email string) *models.User {
	user := TestUser()
	user.Email = email
	return user
}

// TestUserWithID creates a test user with a specific ID
func TestUserWithID(id uuid.UUID) *models.User {
	user := TestUser()
	user.ID = id
	return user
}

// TestScholarship creates an active scholarship closing in 30 days
func TestScholarship() *models.Scholarship {
	now := time.Now()
	return &models.Scholarship{
		ID:             uuid.New(),
		Name:           "Rhodes Scholarship",
		Organization:   "Rhodes Trust",
		Amount:         Float64Ptr(50000),
		Currency:       "GBP",
		Deadline:       now.Add(30 * 24 * time.Hour),
		Description:    "Postgraduate study at the University of Oxford",
		Requirements:   []string{"transcript", "essay"},
		ApplicationURL: "https://www.rhodeshouse.ox.ac.uk",
		Category:       []string{"merit"},
		Country:        []string{"UK"},
		FieldOfStudy:   []string{},
		DegreeLevel:    []string{"MASTERS"},
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TestApplication creates a draft application owned by userID
func TestApplication(userID uuid.UUID) *models.Application {
	now := time.Now()
	return &models.Application{
		ID:              uuid.New(),
		UserID:          userID,
		ScholarshipID:   uuid.New(),
		ScholarshipName: "Rhodes Scholarship",
		Status:          models.StatusDraft,
		Priority:        models.PriorityMedium,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// TestDocument creates an essay owned by userID
func TestDocument(userID uuid.UUID) *models.Document {
	now := time.Now()
	return &models.Document{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      models.DocumentEssay,
		Title:     "Personal statement",
		Content:   "I want to study public health",
		WordCount: 6,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TimePtr returns a pointer to the given time
func TimePtr(t time.Time) *time.Time {
	return &t
}

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr returns a pointer to the given float
func Float64Ptr(f float64) *float64 {
	return &f
}

// UserAgents provides common user agent strings for testing
var UserAgents = struct {
	Chrome       string
	Safari       string
	Firefox      string
	MobileSafari string
	Unknown      string
}{
	Chrome:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Safari:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15",
	Firefox:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	MobileSafari: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
	Unknown:      "",
}
