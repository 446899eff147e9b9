package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrInvalidToken is returned for any token that fails validation: bad
// signature, expired, revoked, or of the wrong kind for the operation.
var ErrInvalidToken = errors.New("invalid token")

// TokenStore defines the Redis operations the JWT service depends on:
// refresh token storage for rotation and the access token blacklist.
type TokenStore interface {
	SetRefreshToken(ctx context.Context, tokenID, userID string, expiry time.Duration) error
	GetRefreshToken(ctx context.Context, tokenID string) (string, error)
	DeleteRefreshToken(ctx context.Context, tokenID string) error
	BlacklistToken(ctx context.Context, jti string, expiry time.Duration) error
	IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

// Token kinds carried in the "typ" claim. An access token is never accepted
// where a refresh token is expected, and the other way round.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTService issues, validates, rotates and revokes HS256 tokens.
//
// Refresh tokens are recorded in Redis under their jti and can be exchanged
// exactly once. Revoked tokens are blacklisted for their remaining lifetime.
type JWTService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	store         TokenStore
}

// TokenPair is returned to clients after login, registration and refresh.
//
//	{
//	  "access_token": "eyJhbGciOiJIUzI1NiIs...",
//	  "refresh_token": "eyJhbGciOiJIUzI1NiIs...",
//	  "expires_at": "2024-01-20T15:00:00Z"
//	}
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"` // access token expiry
}

// Claims are the custom claims embedded in every token.
type Claims struct {
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	JTI       string      `json:"jti"`
	TokenType string      `json:"typ"`
	jwt.RegisteredClaims
}

// UserUUID parses the user id claim.
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// NewJWTService creates a JWT service signing with cfg.Secret.
//
//	jwtSvc := services.NewJWTService(&config.JWTConfig{
//	    Secret:        []byte("your-secret-key-min-32-bytes"),
//	    AccessExpiry:  15 * time.Minute,
//	    RefreshExpiry: 7 * 24 * time.Hour,
//	}, redisDB)
func NewJWTService(cfg *config.JWTConfig, store TokenStore) *JWTService {
	return &JWTService{
		secret:        cfg.Secret,
		accessExpiry:  cfg.AccessExpiry,
		refreshExpiry: cfg.RefreshExpiry,
		store:         store,
	}
}

// RefreshExpiry is the lifetime of refresh tokens and device sessions.
func (s *JWTService) RefreshExpiry() time.Duration {
	return s.refreshExpiry
}

// GenerateTokenPair creates an access token and a refresh token for a user
// and records the refresh token in Redis.
func (s *JWTService) GenerateTokenPair(ctx context.Context, userID uuid.UUID, email string, role models.Role) (*TokenPair, error) {
	accessJTI := generateJTI()
	accessToken, expiresAt, err := s.generateToken(userID.String(), email, role, accessJTI, TokenTypeAccess, s.accessExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshJTI := generateJTI()
	refreshToken, _, err := s.generateToken(userID.String(), email, role, refreshJTI, TokenTypeRefresh, s.refreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	if err := s.store.SetRefreshToken(ctx, refreshJTI, userID.String(), s.refreshExpiry); err != nil {
		log.Error().Err(err).Msg("Failed to store refresh token in Redis")
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("access_jti", accessJTI).
		Str("refresh_jti", refreshJTI).
		Msg("Token pair generated")

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *JWTService) generateToken(userID, email string, role models.Role, jti, tokenType string, expiry time.Duration) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(expiry)

	claims := Claims{
		UserID:    userID,
		Email:     email,
		Role:      role,
		JTI:       jti,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

func (s *JWTService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: malformed claims", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateToken verifies the signature, expiry and blacklist status of a
// token of any kind and returns its claims.
func (s *JWTService) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}

	blacklisted, err := s.store.IsTokenBlacklisted(ctx, claims.JTI)
	if err != nil {
		log.Error().Err(err).Str("jti", claims.JTI).Msg("Failed to check token blacklist")
		return nil, fmt.Errorf("failed to verify token status: %w", err)
	}
	if blacklisted {
		return nil, fmt.Errorf("%w: token has been revoked", ErrInvalidToken)
	}

	return claims, nil
}

// ValidateAccessToken is ValidateToken restricted to access tokens. It is
// what the HTTP middleware and the websocket handshake use.
func (s *JWTService) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	return claims, nil
}

// RefreshAccessToken exchanges a refresh token for a new token pair. The
// old refresh token is deleted so each refresh token works once.
func (s *JWTService) RefreshAccessToken(ctx context.Context, refreshTokenString string) (*TokenPair, error) {
	claims, err := s.ValidateToken(ctx, refreshTokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TokenTypeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}

	storedUserID, err := s.store.GetRefreshToken(ctx, claims.JTI)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token not found or expired", ErrInvalidToken)
	}
	if storedUserID != claims.UserID {
		return nil, fmt.Errorf("%w: token user mismatch", ErrInvalidToken)
	}

	userID, err := claims.UserUUID()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id", ErrInvalidToken)
	}

	// Delete first so two concurrent refreshes cannot both succeed from
	// the same token on the happy path.
	if err := s.store.DeleteRefreshToken(ctx, claims.JTI); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	tokenPair, err := s.GenerateTokenPair(ctx, userID, claims.Email, claims.Role)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", claims.UserID).Msg("Access token refreshed")
	return tokenPair, nil
}

// RevokeToken blacklists an access token for its remaining lifetime, or
// deletes a refresh token. Unparseable or already expired tokens are
// ignored.
func (s *JWTService) RevokeToken(ctx context.Context, tokenString string) error {
	claims, err := s.parse(tokenString)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring unparseable token on revocation")
		return nil
	}

	if claims.TokenType == TokenTypeRefresh {
		if err := s.store.DeleteRefreshToken(ctx, claims.JTI); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
	}

	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}

	if err := s.store.BlacklistToken(ctx, claims.JTI, ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	log.Info().
		Str("jti", claims.JTI).
		Str("user_id", claims.UserID).
		Str("type", claims.TokenType).
		Msg("Token revoked")

	return nil
}

func generateJTI() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// GenerateState returns a random value for the OAuth state cookie.
func GenerateState() string {
	return generateJTI()
}
