package cache

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
)

const (
	UserPrefix        = "user:"
	ScholarshipPrefix = "scholarships:"
)

// UserKey is where a single user is cached.
func UserKey(userID uuid.UUID) string {
	return UserPrefix + userID.String()
}

// ScholarshipListKey derives a stable key for one filtered listing. Values
// are query-escaped so separators inside filter values cannot collide.
func ScholarshipListKey(f models.ScholarshipFilter) string {
	active := "any"
	if f.IsActive != nil {
		active = strconv.FormatBool(*f.IsActive)
	}
	parts := []string{
		active,
		url.QueryEscape(f.Country),
		url.QueryEscape(f.Category),
		url.QueryEscape(f.FieldOfStudy),
		url.QueryEscape(f.DegreeLevel),
	}
	return ScholarshipPrefix + "list:" + strings.Join(parts, ":")
}

// ScholarshipPattern matches every cached scholarship listing.
func ScholarshipPattern() string {
	return ScholarshipPrefix + "*"
}
