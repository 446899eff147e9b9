package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUserStore persists Google sign-ins.
type GoogleUserStore interface {
	UpsertGoogleUser(ctx context.Context, googleID, email, firstName, lastName string) (*models.User, error)
}

// GoogleAuthService implements the OAuth 2.0 authorization code flow
// against Google.
//
// Flow:
//  1. GetAuthURL builds the consent URL carrying a random state
//  2. Google redirects back with a code
//  3. AuthenticateUser exchanges the code, fetches the profile and upserts
//     the user, linking an existing password account with the same email
type GoogleAuthService struct {
	config      *oauth2.Config
	userInfoURL string
	users       GoogleUserStore
}

// GoogleUserInfo is the subset of Google's userinfo response we use.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
}

func NewGoogleAuthService(cfg *config.OAuthConfig, users GoogleUserStore) *GoogleAuthService {
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &GoogleAuthService{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		},
		userInfoURL: userInfoURL,
		users:       users,
	}
}

// GetAuthURL returns the Google consent URL for state.
func (s *GoogleAuthService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// ExchangeCode trades an authorization code for a Google token.
func (s *GoogleAuthService) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// GetUserInfo fetches the Google profile of the token owner.
func (s *GoogleAuthService) GetUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := s.config.Client(ctx, token)

	resp, err := client.Get(s.userInfoURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch user info from Google")
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get user info: status %d", resp.StatusCode)
	}

	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("failed to get user info: incomplete profile")
	}
	return &info, nil
}

// AuthenticateUser completes the callback and returns the local user.
func (s *GoogleAuthService) AuthenticateUser(ctx context.Context, code string) (*models.User, error) {
	token, err := s.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := s.GetUserInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	firstName, lastName := info.GivenName, info.FamilyName
	if firstName == "" && lastName == "" {
		firstName, lastName = splitName(info.Name)
	}

	user, err := s.users.UpsertGoogleUser(ctx, info.ID, normalizeEmail(info.Email), firstName, lastName)
	if err != nil {
		log.Error().
			Err(err).
			Str("google_id", info.ID).
			Str("email", info.Email).
			Msg("Failed to upsert Google user")
		return nil, translate("upsert google user", err)
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	log.Info().
		Str("user_id", user.ID.String()).
		Str("email", user.Email).
		Msg("Google user authenticated")

	return user, nil
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, " "); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}
