package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// AuthUserStore is the user repository subset used for password auth.
type AuthUserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

// TokenIssuer issues token pairs. JWTService implements it.
type TokenIssuer interface {
	GenerateTokenPair(ctx context.Context, userID uuid.UUID, email string, role models.Role) (*TokenPair, error)
}

// RegisterInput is the body of POST /auth/register.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// LoginInput is the body of POST /auth/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

const minPasswordLength = 8

// AuthService implements email and password authentication.
type AuthService struct {
	users  AuthUserStore
	hasher *PasswordHasher
	tokens TokenIssuer
}

func NewAuthService(users AuthUserStore, hasher *PasswordHasher, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a student account and signs it in. A taken email is
// reported as ErrConflict.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, invalid("email is not valid")
	}
	if len(in.Password) < minPasswordLength {
		return nil, invalid("password must be at least %d characters", minPasswordLength)
	}
	firstName := strings.TrimSpace(in.FirstName)
	lastName := strings.TrimSpace(in.LastName)
	if firstName == "" || lastName == "" {
		return nil, invalid("first_name and last_name are required")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.CreateUser(ctx, &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         models.RoleStudent,
	})
	if err != nil {
		return nil, translate("register user", err)
	}

	return s.IssueTokens(ctx, user)
}

// Login verifies credentials. Unknown emails and wrong passwords are both
// ErrInvalidCredentials so the response does not reveal which accounts
// exist.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, translate("find user", err)
	}

	if !s.hasher.Compare(user.PasswordHash, in.Password) {
		log.Debug().Str("user_id", user.ID.String()).Msg("Password mismatch")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("Failed to update last login")
	} else {
		now := time.Now()
		user.LastLogin = &now
	}

	return s.IssueTokens(ctx, user)
}

// Profile returns the current user. Deactivated users are rejected so a
// still-valid token stops working once an admin disables the account.
func (s *AuthService) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, translate("get profile", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// IssueTokens signs in a user that was already authenticated, either by
// password or through Google.
func (s *AuthService) IssueTokens(ctx context.Context, user *models.User) (*AuthResult, error) {
	pair, err := s.tokens.GenerateTokenPair(ctx, user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("role", string(user.Role)).
		Msg("User signed in")

	return &AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	}, nil
}
