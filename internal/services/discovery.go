package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/rs/zerolog/log"
)

// ScholarshipSource finds new scholarship opportunities. LLMService
// implements it.
type ScholarshipSource interface {
	DiscoverScholarships(ctx context.Context, count int) ([]models.DiscoveredScholarship, error)
}

// DuplicateFinder is implemented by database.PostgresDB.
type DuplicateFinder interface {
	FindDuplicateScholarship(ctx context.Context, name, organization string) (*models.Scholarship, error)
}

// DiscoveryService fills the catalogue with scholarships found by the LLM
// service. Entries are normalised before they are saved:
//   - deadlines in the past move forward a year at a time until they are
//     upcoming
//   - free text amounts keep their first number, so "1,181 (Monthly
//     Allowance)" becomes 1181
//   - lookalikes of existing scholarships are skipped
//
// Runs are serialised so the cron job and an admin refresh never insert the
// same opportunity twice.
type DiscoveryService struct {
	source  ScholarshipSource
	dupes   DuplicateFinder
	catalog *ScholarshipService
	now     func() time.Time
	mu      sync.Mutex
}

func NewDiscoveryService(source ScholarshipSource, dupes DuplicateFinder, catalog *ScholarshipService) *DiscoveryService {
	return &DiscoveryService{
		source:  source,
		dupes:   dupes,
		catalog: catalog,
		now:     time.Now,
	}
}

// Discover asks for count scholarships and saves the new ones.
func (s *DiscoveryService) Discover(ctx context.Context, count int) (models.DiscoveryResult, error) {
	if err := validateDiscoveryCount(count); err != nil {
		return models.DiscoveryResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.source.DiscoverScholarships(ctx, count)
	if err != nil {
		return models.DiscoveryResult{}, fmt.Errorf("discover scholarships: %w", err)
	}
	return s.save(ctx, found), nil
}

// Refresh replaces the catalogue with count freshly discovered
// scholarships. Nothing is deleted when discovery fails.
func (s *DiscoveryService) Refresh(ctx context.Context, count int) (*models.RefreshResult, error) {
	if err := validateDiscoveryCount(count); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	found, err := s.source.DiscoverScholarships(ctx, count)
	if err != nil {
		return nil, fmt.Errorf("refresh scholarships: %w", err)
	}

	deleted, err := s.catalog.RemoveAll(ctx)
	if err != nil {
		return nil, err
	}

	res := s.save(ctx, found)
	return &models.RefreshResult{
		Message:      "Scholarships refreshed successfully",
		DeletedCount: deleted,
		NewCount:     res.Saved,
		Discovery:    res,
		RefreshedAt:  s.now().UTC(),
	}, nil
}

func (s *DiscoveryService) save(ctx context.Context, found []models.DiscoveredScholarship) models.DiscoveryResult {
	res := models.DiscoveryResult{Discovered: len(found)}
	now := s.now()

	for _, d := range found {
		in, err := normalizeDiscovered(d, now)
		if err != nil {
			log.Warn().Err(err).Str("title", d.Title).Msg("Skipping discovered scholarship")
			res.Skipped++
			continue
		}

		existing, err := s.dupes.FindDuplicateScholarship(ctx, in.Name, in.Organization)
		switch {
		case err == nil:
			log.Debug().
				Str("title", in.Name).
				Str("existing_id", existing.ID.String()).
				Msg("Discovered scholarship already listed")
			res.Duplicates++
			continue
		case !isNotFound(err):
			log.Error().Err(err).Str("title", in.Name).Msg("Duplicate check failed")
			res.Skipped++
			continue
		}

		if _, err := s.catalog.Create(ctx, in); err != nil {
			log.Error().Err(err).Str("title", in.Name).Msg("Failed to save discovered scholarship")
			res.Skipped++
			continue
		}
		res.Saved++
	}

	log.Info().
		Int("discovered", res.Discovered).
		Int("saved", res.Saved).
		Int("duplicates", res.Duplicates).
		Int("skipped", res.Skipped).
		Msg("Scholarship discovery complete")
	return res
}

func validateDiscoveryCount(count int) error {
	if count < 1 || count > config.MaxDiscoveryCount {
		return invalid("count must be between 1 and %d", config.MaxDiscoveryCount)
	}
	return nil
}

// normalizeDiscovered maps an LLM answer onto a catalogue entry.
func normalizeDiscovered(d models.DiscoveredScholarship, now time.Time) (models.ScholarshipInput, error) {
	name := strings.TrimSpace(d.Title)
	org := strings.TrimSpace(d.Provider)
	if name == "" || org == "" {
		return models.ScholarshipInput{}, invalid("title and provider are required")
	}

	deadline, err := normalizeDeadline(d.Deadline, now)
	if err != nil {
		return models.ScholarshipInput{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(d.Currency))
	if currency == "" {
		currency = "USD"
	}

	var eligibility json.RawMessage
	if len(d.EligibilityCriteria) > 0 {
		if eligibility, err = json.Marshal(d.EligibilityCriteria); err != nil {
			return models.ScholarshipInput{}, fmt.Errorf("encode eligibility: %w", err)
		}
	}

	active := d.IsActive == nil || *d.IsActive
	return models.ScholarshipInput{
		Name:           name,
		Organization:   org,
		Amount:         parseAmount(d.Amount),
		Currency:       currency,
		Deadline:       deadline,
		Description:    strings.TrimSpace(d.Description),
		Eligibility:    eligibility,
		Requirements:   d.EligibilityCriteria,
		ApplicationURL: strings.TrimSpace(d.ApplicationURL),
		Category:       []string{},
		Country:        single(d.Country),
		FieldOfStudy:   single(d.FieldOfStudy),
		DegreeLevel:    single(d.EducationLevel),
		IsActive:       &active,
	}, nil
}

var deadlineLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"2 January 2006",
	"02/01/2006",
}

// normalizeDeadline parses raw and rolls a past date forward by whole years
// until it falls on or after today.
func normalizeDeadline(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var (
		t   time.Time
		err error
	)
	for _, layout := range deadlineLayouts {
		if t, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, invalid("unrecognised deadline %q", raw)
	}

	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for t.Before(today) {
		t = t.AddDate(1, 0, 0)
	}
	return t, nil
}

var amountNumber = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)

// parseAmount accepts a JSON number or text containing one. Anything else
// yields nil, which the catalogue shows as an unspecified amount.
func parseAmount(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 {
			return nil
		}
		return &n
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil
	}
	match := amountNumber.FindString(text)
	if match == "" {
		return nil
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil
	}
	return &n
}

func single(v string) []string {
	if v = strings.TrimSpace(v); v == "" {
		return []string{}
	}
	return []string{v}
}
