package services

import (
	"context"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/cache"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ScholarshipRepository is the persistence surface of ScholarshipService.
type ScholarshipRepository interface {
	CreateScholarship(ctx context.Context, in models.ScholarshipInput) (*models.Scholarship, error)
	GetScholarship(ctx context.Context, id uuid.UUID) (*models.Scholarship, error)
	ListScholarships(ctx context.Context, filter models.ScholarshipFilter) ([]models.Scholarship, error)
	SearchScholarships(ctx context.Context, query string) ([]models.Scholarship, error)
	UpdateScholarship(ctx context.Context, id uuid.UUID, upd models.ScholarshipUpdate) (*models.Scholarship, error)
	DeleteScholarship(ctx context.Context, id uuid.UUID) error
	DeleteAllScholarships(ctx context.Context) (int64, error)
	DeactivateExpiredScholarships(ctx context.Context, now time.Time) (int64, error)
}

// ScholarshipService manages the scholarship catalogue. It is not owner
// scoped; handlers restrict writes to admins.
//
// Listings are cached in Redis per filter and the whole listing cache is
// dropped on every write.
type ScholarshipService struct {
	repo     ScholarshipRepository
	cache    *cache.Cache
	ttl      time.Duration
	notifier Notifier
	shuffle  func(n int, swap func(i, j int))
}

// NewScholarshipService returns a scholarship service. c and notifier may be
// nil.
func NewScholarshipService(repo ScholarshipRepository, c *cache.Cache, ttl time.Duration, notifier Notifier) *ScholarshipService {
	return &ScholarshipService{
		repo:     repo,
		cache:    c,
		ttl:      ttl,
		notifier: notifierOrNoop(notifier),
		shuffle:  rand.Shuffle,
	}
}

// Create adds a scholarship. New active scholarships are announced to
// students.
func (s *ScholarshipService) Create(ctx context.Context, in models.ScholarshipInput) (*models.Scholarship, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Organization = strings.TrimSpace(in.Organization)
	if in.Name == "" || in.Organization == "" {
		return nil, invalid("name and organization are required")
	}
	if in.Deadline.IsZero() {
		return nil, invalid("deadline is required")
	}
	if in.Amount != nil && *in.Amount < 0 {
		return nil, invalid("amount must not be negative")
	}

	created, err := s.repo.CreateScholarship(ctx, in)
	if err != nil {
		return nil, translate("create scholarship", err)
	}
	s.invalidate(ctx)

	log.Info().
		Str("scholarship_id", created.ID.String()).
		Str("name", created.Name).
		Msg("Scholarship created")

	if created.IsActive {
		s.notifier.NotifyRole(ctx, models.RoleStudent, models.EventScholarshipMatch, models.ScholarshipMatch{
			ScholarshipID: created.ID.String(),
			Name:          created.Name,
			Organization:  created.Organization,
			Deadline:      created.Deadline,
			Timestamp:     time.Now().UTC(),
		})
	}
	return created, nil
}

// FindAll lists scholarships matching filter, ordered by deadline. With
// randomize the order is shuffled instead.
func (s *ScholarshipService) FindAll(ctx context.Context, filter models.ScholarshipFilter, randomize bool) ([]models.Scholarship, error) {
	list, err := cache.GetOrLoad(ctx, s.cache, cache.ScholarshipListKey(filter), s.ttl, func() ([]models.Scholarship, error) {
		return s.repo.ListScholarships(ctx, filter)
	})
	if err != nil {
		return nil, translate("list scholarships", err)
	}
	if randomize {
		s.shuffleInPlace(list)
	}
	return list, nil
}

// FindOne returns one scholarship.
func (s *ScholarshipService) FindOne(ctx context.Context, id uuid.UUID) (*models.Scholarship, error) {
	sch, err := s.repo.GetScholarship(ctx, id)
	if err != nil {
		return nil, translate("get scholarship", err)
	}
	return sch, nil
}

// Search matches q case-insensitively against name, organization and
// description of active scholarships.
func (s *ScholarshipService) Search(ctx context.Context, q string) ([]models.Scholarship, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, invalid("search query is required")
	}
	list, err := s.repo.SearchScholarships(ctx, q)
	if err != nil {
		return nil, translate("search scholarships", err)
	}
	return list, nil
}

// Matches returns up to limit active scholarships in random order.
func (s *ScholarshipService) Matches(ctx context.Context, limit int) ([]models.Scholarship, error) {
	active := true
	list, err := s.FindAll(ctx, models.ScholarshipFilter{IsActive: &active}, true)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Update patches a scholarship.
func (s *ScholarshipService) Update(ctx context.Context, id uuid.UUID, upd models.ScholarshipUpdate) (*models.Scholarship, error) {
	if upd.Amount != nil && *upd.Amount < 0 {
		return nil, invalid("amount must not be negative")
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, invalid("name must not be empty")
	}

	updated, err := s.repo.UpdateScholarship(ctx, id, upd)
	if err != nil {
		return nil, translate("update scholarship", err)
	}
	s.invalidate(ctx)

	log.Info().Str("scholarship_id", id.String()).Msg("Scholarship updated")
	return updated, nil
}

// Remove deletes one scholarship together with its applications.
func (s *ScholarshipService) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteScholarship(ctx, id); err != nil {
		return translate("delete scholarship", err)
	}
	s.invalidate(ctx)

	log.Info().Str("scholarship_id", id.String()).Msg("Scholarship deleted")
	return nil
}

// RemoveAll deletes the whole catalogue and returns how many rows went.
func (s *ScholarshipService) RemoveAll(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllScholarships(ctx)
	if err != nil {
		return 0, translate("delete all scholarships", err)
	}
	s.invalidate(ctx)

	log.Warn().Int64("count", n).Msg("All scholarships deleted")
	return n, nil
}

// DeactivateExpired marks every active scholarship whose deadline has
// passed as inactive.
func (s *ScholarshipService) DeactivateExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpiredScholarships(ctx, time.Now().UTC())
	if err != nil {
		return 0, translate("deactivate expired scholarships", err)
	}
	if n > 0 {
		s.invalidate(ctx)
		log.Info().Int64("count", n).Msg("Expired scholarships deactivated")
	}
	return n, nil
}

func (s *ScholarshipService) shuffleInPlace(list []models.Scholarship) {
	s.shuffle(len(list), func(i, j int) {
		list[i], list[j] = list[j], list[i]
	})
}

func (s *ScholarshipService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, cache.ScholarshipPattern()); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate scholarship cache")
	}
}
