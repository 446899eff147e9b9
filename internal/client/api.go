package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrSessionExpired is returned when a request was rejected with 401 and the
// refresh token could not renew the session. The TokenStore has already
// been expired when it is returned.
var ErrSessionExpired = errors.New("session expired")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an *APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// TokenStore supplies credentials to the API client and receives rotated
// ones. *SessionManager implements it.
type TokenStore interface {
	Tokens() (access, refresh string)
	RotateTokens(access, refresh string) error
	ExpireSession()
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterData is the registration request body.
type RegisterData struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time    `json:"expires_at"`
	SessionID    string       `json:"session_id,omitempty"`
}

type tokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// APIClient calls the REST API under /api/v1. A request rejected with 401
// is retried exactly once after refreshing the access token.
type APIClient struct {
	baseURL string
	http    *http.Client

	mu        sync.RWMutex
	tokens    TokenStore
	refreshMu sync.Mutex
}

// NewAPIClient creates a client for the API at apiURL (without /api/v1).
func NewAPIClient(apiURL string, httpClient *http.Client) *APIClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &APIClient{
		baseURL: strings.TrimRight(apiURL, "/") + "/api/v1",
		http:    httpClient,
	}
}

// SetTokenStore attaches the credential source. Without one requests are
// sent unauthenticated and 401s are not retried.
func (c *APIClient) SetTokenStore(tokens TokenStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = tokens
}

func (c *APIClient) tokenStore() TokenStore {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens
}

type requestOpts struct {
	anonymous bool // no bearer header
	noRefresh bool // do not retry a 401
}

// Login authenticates with email and password.
func (c *APIClient) Login(ctx context.Context, creds Credentials) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", creds, &resp, requestOpts{anonymous: true, noRefresh: true}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates an account and signs it in.
func (c *APIClient) Register(ctx context.Context, data RegisterData) (*AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", data, &resp, requestOpts{anonymous: true, noRefresh: true}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout revokes the current tokens server side.
func (c *APIClient) Logout(ctx context.Context) error {
	var body interface{}
	if ts := c.tokenStore(); ts != nil {
		if _, refresh := ts.Tokens(); refresh != "" {
			body = map[string]string{"refresh_token": refresh}
		}
	}
	return c.do(ctx, http.MethodPost, "/auth/logout", body, nil, requestOpts{noRefresh: true})
}

// Profile returns the authenticated user.
func (c *APIClient) Profile(ctx context.Context) (*models.User, error) {
	var resp struct {
		User *models.User `json:"user"`
	}
	if err := c.Get(ctx, "/auth/profile", &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, errors.New("profile response has no user")
	}
	return resp.User, nil
}

// Get decodes the JSON response of GET path into out.
func (c *APIClient) Get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out, requestOpts{})
}

// Post sends body as JSON and decodes the response into out.
func (c *APIClient) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, path, body, out, requestOpts{})
}

// Patch sends body as JSON and decodes the response into out.
func (c *APIClient) Patch(ctx context.Context, path string, body, out interface{}) error {
	return c.do(ctx, http.MethodPatch, path, body, out, requestOpts{})
}

// Delete issues DELETE path.
func (c *APIClient) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, requestOpts{})
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}, opts requestOpts) error {
	ts := c.tokenStore()
	var access string
	if ts != nil && !opts.anonymous {
		access, _ = ts.Tokens()
	}

	err := c.send(ctx, method, path, body, out, access)
	if err == nil || opts.noRefresh || ts == nil || !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	fresh, refreshErr := c.refresh(ctx, ts, access)
	if refreshErr != nil {
		log.Debug().Err(refreshErr).Str("path", path).Msg("Token refresh failed")
		ts.ExpireSession()
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return c.send(ctx, method, path, body, out, fresh)
}

// refresh exchanges the refresh token for a new pair. Concurrent callers
// that failed with the same access token share one refresh.
func (c *APIClient) refresh(ctx context.Context, ts TokenStore, used string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	access, refresh := ts.Tokens()
	if access != "" && access != used {
		return access, nil
	}
	if refresh == "" {
		return "", errors.New("no refresh token")
	}

	var pair tokenPair
	err := c.send(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refresh}, &pair, "")
	if err != nil {
		return "", err
	}
	if pair.AccessToken == "" {
		return "", errors.New("refresh response has no access token")
	}
	if err := ts.RotateTokens(pair.AccessToken, pair.RefreshToken); err != nil {
		return "", fmt.Errorf("store rotated tokens: %w", err)
	}
	return pair.AccessToken, nil
}

func (c *APIClient) send(ctx context.Context, method, path string, body, out interface{}, access string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
