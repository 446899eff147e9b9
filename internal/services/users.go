package services

import (
	"context"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID uuid.UUID
	Role   models.Role
}

// IsAdmin reports whether the actor has the ADMIN role.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// UserRepository is the persistence surface of UserService.
type UserRepository interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, userID uuid.UUID) error
	CreateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error)
	EnsureProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error)
}

// UserCacher is the read-through user cache.
type UserCacher interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	InvalidateUser(ctx context.Context, userID uuid.UUID)
}

// UserService manages accounts and their profiles.
type UserService struct {
	repo  UserRepository
	cache UserCacher
}

// NewUserService returns a user service. cache may be nil.
func NewUserService(repo UserRepository, cache UserCacher) *UserService {
	return &UserService{repo: repo, cache: cache}
}

// FindAll lists every user. Callers restrict it to admins.
func (s *UserService) FindAll(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, translate("list users", err)
	}
	return users, nil
}

// FindOne returns a user, reading through the cache when one is configured.
func (s *UserService) FindOne(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if s.cache != nil {
		user, err = s.cache.GetUserByID(ctx, id)
	} else {
		user, err = s.repo.GetUserByID(ctx, id)
	}
	if err != nil {
		return nil, translate("get user", err)
	}
	return user, nil
}

// Update patches a user. Users may edit their own names; only admins may
// edit other users or change role and activation.
func (s *UserService) Update(ctx context.Context, actor Actor, id uuid.UUID, upd models.UserUpdate) (*models.User, error) {
	if actor.UserID != id && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if (upd.Role != nil || upd.IsActive != nil) && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, invalid("unknown role %q", *upd.Role)
	}

	user, err := s.repo.UpdateUser(ctx, id, upd)
	if err != nil {
		return nil, translate("update user", err)
	}
	s.invalidate(ctx, id)

	log.Info().
		Str("user_id", id.String()).
		Str("actor_id", actor.UserID.String()).
		Msg("User updated")
	return user, nil
}

// Remove deletes a user and, through foreign keys, everything they own.
func (s *UserService) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return translate("delete user", err)
	}
	s.invalidate(ctx, id)

	log.Info().Str("user_id", id.String()).Msg("User deleted")
	return nil
}

// CreateProfile creates the profile of userID. A second profile is
// ErrConflict.
func (s *UserService) CreateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error) {
	if err := validateProfile(in); err != nil {
		return nil, err
	}
	profile, err := s.repo.CreateProfile(ctx, userID, in)
	if err != nil {
		return nil, translate("create profile", err)
	}
	return profile, nil
}

// GetProfile returns the profile of userID, creating an empty one on first
// access.
func (s *UserService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.UserProfile, error) {
	profile, err := s.repo.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, translate("get profile", err)
	}
	return profile, nil
}

// UpdateProfile patches an existing profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, in models.ProfileInput) (*models.UserProfile, error) {
	if err := validateProfile(in); err != nil {
		return nil, err
	}
	profile, err := s.repo.UpdateProfile(ctx, userID, in)
	if err != nil {
		return nil, translate("update profile", err)
	}
	return profile, nil
}

func validateProfile(in models.ProfileInput) error {
	if in.GPA != nil && (*in.GPA < 0 || *in.GPA > 5) {
		return invalid("gpa must be between 0 and 5")
	}
	if in.GraduationYear != nil && (*in.GraduationYear < 1900 || *in.GraduationYear > 2100) {
		return invalid("graduation_year is out of range")
	}
	return nil
}

func (s *UserService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache != nil {
		s.cache.InvalidateUser(ctx, id)
	}
}
