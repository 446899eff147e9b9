package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/database"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/google/uuid"
	"github.com/mileusna/useragent"
	"github.com/rs/zerolog/log"
)

// SessionStore defines the Redis operations for device sessions.
type SessionStore interface {
	SetSession(ctx context.Context, userID, sessionID, deviceInfo, ipAddress string, expiry time.Duration) error
	GetSession(ctx context.Context, userID, sessionID string) (*database.SessionRecord, error)
	ListUserSessions(ctx context.Context, userID string) ([]string, error)
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

// SessionService tracks the devices a user is signed in on. A session is
// created at every login and lives as long as the refresh token issued with
// it.
type SessionService struct {
	store         SessionStore
	sessionExpiry time.Duration
}

func NewSessionService(store SessionStore, sessionExpiry time.Duration) *SessionService {
	return &SessionService{store: store, sessionExpiry: sessionExpiry}
}

// CreateSession records a new device session and returns its id.
func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID, deviceInfo, ipAddress string) (string, error) {
	sessionID := uuid.New().String()

	if err := s.store.SetSession(ctx, userID.String(), sessionID, deviceInfo, ipAddress, s.sessionExpiry); err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to create session")
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", sessionID).
		Str("device", deviceInfo).
		Msg("Session created")

	return sessionID, nil
}

// GetSession returns one session of userID. Sessions of other users are
// invisible and reported as ErrNotFound.
func (s *SessionService) GetSession(ctx context.Context, userID uuid.UUID, sessionID string) (*models.SessionInfo, error) {
	rec, err := s.store.GetSession(ctx, userID.String(), sessionID)
	if err != nil {
		return nil, translate("get session", err)
	}

	expiresAt := rec.CreatedAt.Add(s.sessionExpiry)
	if rec.TTL > 0 {
		expiresAt = time.Now().Add(rec.TTL).Truncate(time.Second)
	}

	return &models.SessionInfo{
		ID:         sessionID,
		DeviceInfo: rec.DeviceInfo,
		IPAddress:  rec.IPAddress,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  expiresAt,
	}, nil
}

// ListUserSessions returns every live session of a user, newest first.
func (s *SessionService) ListUserSessions(ctx context.Context, userID uuid.UUID) ([]*models.SessionInfo, error) {
	ids, err := s.store.ListUserSessions(ctx, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*models.SessionInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.GetSession(ctx, userID, id)
		if err != nil {
			// Expired between SCAN and HGETALL.
			log.Debug().Err(err).Str("session_id", id).Msg("Skipping vanished session")
			continue
		}
		sessions = append(sessions, info)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// RevokeSession signs one device out.
func (s *SessionService) RevokeSession(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if _, err := s.store.GetSession(ctx, userID.String(), sessionID); err != nil {
		return translate("revoke session", err)
	}
	if err := s.store.DeleteSession(ctx, userID.String(), sessionID); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	log.Info().
		Str("user_id", userID.String()).
		Str("session_id", sessionID).
		Msg("Session revoked")
	return nil
}

// RevokeAllSessions signs every device of a user out.
func (s *SessionService) RevokeAllSessions(ctx context.Context, userID uuid.UUID) error {
	ids, err := s.store.ListUserSessions(ctx, userID.String())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, id := range ids {
		if err := s.store.DeleteSession(ctx, userID.String(), id); err != nil {
			log.Warn().
				Err(err).
				Str("user_id", userID.String()).
				Str("session_id", id).
				Msg("Failed to delete session")
		}
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("count", len(ids)).
		Msg("All sessions revoked")
	return nil
}

// ExtractDeviceInfo turns a User-Agent header into a short description
// such as "Chrome 120.0.0.0 · Windows 10 · Desktop".
func ExtractDeviceInfo(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	ua := useragent.Parse(userAgent)

	var parts []string
	if ua.Name != "" {
		browser := ua.Name
		if ua.Version != "" {
			browser += " " + ua.Version
		}
		parts = append(parts, browser)
	}
	if ua.OS != "" {
		os := ua.OS
		if ua.OSVersion != "" {
			os += " " + ua.OSVersion
		}
		parts = append(parts, os)
	}

	switch {
	case ua.Mobile:
		parts = append(parts, "Mobile")
	case ua.Tablet:
		parts = append(parts, "Tablet")
	case ua.Desktop:
		parts = append(parts, "Desktop")
	}

	if len(parts) == 0 {
		if len(userAgent) > 100 {
			return userAgent[:100] + "..."
		}
		return userAgent
	}
	return strings.Join(parts, " · ")
}
