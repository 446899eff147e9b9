package services

import (
	"context"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ApplicationRepository is the persistence surface of ApplicationService.
type ApplicationRepository interface {
	CreateApplication(ctx context.Context, userID uuid.UUID, in models.ApplicationInput) (*models.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListApplications(ctx context.Context, ownerID *uuid.UUID) ([]models.Application, error)
	UpdateApplication(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time, upd models.ApplicationUpdate) (*models.Application, error)
	DeleteApplication(ctx context.Context, id, ownerID uuid.UUID, readAt time.Time) error
}

// ApplicationService is the owner scoped CRUD service for applications.
//
// Reads take an optional owner: nil means unscoped and is only reachable by
// admins. A record that exists but belongs to someone else is ErrForbidden,
// never ErrNotFound. Writes always carry an owner and are applied only if
// the row still has the updated_at value that was read, so a concurrent
// writer turns the losing write into ErrConflict.
type ApplicationService struct {
	repo     ApplicationRepository
	notifier Notifier
	now      func() time.Time
}

func NewApplicationService(repo ApplicationRepository, notifier Notifier) *ApplicationService {
	return &ApplicationService{
		repo:     repo,
		notifier: notifierOrNoop(notifier),
		now:      time.Now,
	}
}

// Create stores a new application owned by ownerID.
func (s *ApplicationService) Create(ctx context.Context, ownerID uuid.UUID, in models.ApplicationInput) (*models.Application, error) {
	if in.ScholarshipID == uuid.Nil {
		return nil, invalid("scholarship_id is required")
	}
	if in.Status == "" {
		in.Status = models.StatusDraft
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if err := validateApplication(&in.Status, &in.Priority, in.MatchScore); err != nil {
		return nil, err
	}

	app, err := s.repo.CreateApplication(ctx, ownerID, in)
	if err != nil {
		return nil, translate("create application", err)
	}

	log.Info().
		Str("application_id", app.ID.String()).
		Str("user_id", ownerID.String()).
		Msg("Application created")
	return app, nil
}

// FindAll lists applications newest first. A nil ownerID lists all owners.
func (s *ApplicationService) FindAll(ctx context.Context, ownerID *uuid.UUID) ([]models.Application, error) {
	apps, err := s.repo.ListApplications(ctx, ownerID)
	if err != nil {
		return nil, translate("list applications", err)
	}
	return apps, nil
}

// FindOne returns an application. With a non-nil ownerID the record must
// belong to that owner.
func (s *ApplicationService) FindOne(ctx context.Context, id uuid.UUID, ownerID *uuid.UUID) (*models.Application, error) {
	app, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		return nil, translate("get application", err)
	}
	if ownerID != nil && app.UserID != *ownerID {
		return nil, ErrForbidden
	}
	return app, nil
}

// Update patches an application of ownerID. A status change is pushed to
// the owner in realtime, and moving to SUBMITTED stamps submitted_at.
func (s *ApplicationService) Update(ctx context.Context, id, ownerID uuid.UUID, upd models.ApplicationUpdate) (*models.Application, error) {
	current, err := s.FindOne(ctx, id, &ownerID)
	if err != nil {
		return nil, err
	}
	if err := validateApplication(upd.Status, upd.Priority, upd.MatchScore); err != nil {
		return nil, err
	}

	statusChanged := upd.Status != nil && *upd.Status != current.Status
	if statusChanged && *upd.Status == models.StatusSubmitted && current.SubmittedAt == nil && upd.SubmittedAt == nil {
		now := s.now().UTC()
		upd.SubmittedAt = &now
	}

	updated, err := s.repo.UpdateApplication(ctx, id, ownerID, current.UpdatedAt, upd)
	if err != nil {
		return nil, translate("update application", err)
	}

	log.Info().
		Str("application_id", id.String()).
		Str("user_id", ownerID.String()).
		Str("status", string(updated.Status)).
		Msg("Application updated")

	if statusChanged {
		s.notifier.NotifyUser(ctx, ownerID, models.EventApplicationStatus, models.ApplicationStatusUpdate{
			ApplicationID:   id.String(),
			ScholarshipName: updated.ScholarshipName,
			Status:          updated.Status,
			PreviousStatus:  current.Status,
			Timestamp:       s.now().UTC(),
		})
	}
	return updated, nil
}

// Remove deletes an application of ownerID.
func (s *ApplicationService) Remove(ctx context.Context, id, ownerID uuid.UUID) error {
	current, err := s.FindOne(ctx, id, &ownerID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteApplication(ctx, id, ownerID, current.UpdatedAt); err != nil {
		return translate("delete application", err)
	}

	log.Info().
		Str("application_id", id.String()).
		Str("user_id", ownerID.String()).
		Msg("Application deleted")
	return nil
}

func validateApplication(status *models.ApplicationStatus, priority *models.Priority, score *float64) error {
	if status != nil && !status.Valid() {
		return invalid("unknown status %q", *status)
	}
	if priority != nil && !priority.Valid() {
		return invalid("unknown priority %q", *priority)
	}
	if score != nil && (*score < 0 || *score > 100) {
		return invalid("match_score must be between 0 and 100")
	}
	return nil
}
