package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/rs/zerolog/log"
)

// Navigation targets.
const (
	PathDashboard = "/dashboard"
	PathLogin     = "/login"
)

// ErrSuperseded is returned by an operation whose result arrived after a
// newer session operation had started. The result is discarded.
var ErrSuperseded = errors.New("session operation superseded")

// AuthAPI is the part of *APIClient the session manager uses.
type AuthAPI interface {
	Login(ctx context.Context, creds Credentials) (*AuthResponse, error)
	Register(ctx context.Context, data RegisterData) (*AuthResponse, error)
	Logout(ctx context.Context) error
	Profile(ctx context.Context) (*models.User, error)
}

// Navigator moves the user interface to a route.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// SessionManager owns the current user and tokens. Every mutation writes
// storage and memory together, or clears both, and then publishes
// EventAuthStateChanged on the bus.
//
// Mutating operations are ordered by generation: each one takes a new
// generation when it starts and only applies its result if no newer
// operation started meanwhile.
type SessionManager struct {
	store Storage
	bus   *Bus
	api   AuthAPI
	nav   Navigator

	mu      sync.Mutex
	gen     uint64
	pending int
	user    *models.User
	access  string
	refresh string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ TokenStore = (*SessionManager)(nil)

func NewSessionManager(store Storage, bus *Bus, api AuthAPI, nav Navigator) *SessionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionManager{
		store:  store,
		bus:    bus,
		api:    api,
		nav:    nav,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Wait blocks until the background verification started by Start is done.
func (m *SessionManager) Wait() {
	m.wg.Wait()
}

// Close stops a background verification and waits for it.
func (m *SessionManager) Close() {
	m.cancel()
	m.wg.Wait()
}

func (m *SessionManager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.pending++
	return m.gen
}

func (m *SessionManager) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending--
}

// Start restores the session from storage. With both a token and a cached
// user the session is hydrated at once and verified against the server in
// the background; a failed verification clears it. A half-populated store
// is cleared.
func (m *SessionManager) Start(ctx context.Context) error {
	access, err := getOptional(m.store, KeyAccessToken)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	refresh, err := getOptional(m.store, KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("read refresh token: %w", err)
	}
	rawUser, err := getOptional(m.store, KeyUser)
	if err != nil {
		return fmt.Errorf("read user: %w", err)
	}

	var user *models.User
	if rawUser != "" {
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			log.Warn().Err(err).Msg("Discarding unreadable cached user")
			user = nil
		}
	}

	if access == "" || user == nil {
		if access != "" || refresh != "" || rawUser != "" {
			log.Info().Msg("Clearing incomplete stored session")
			if err := m.store.Delete(sessionKeys...); err != nil {
				return fmt.Errorf("clear stored session: %w", err)
			}
		}
		return nil
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.pending++
	m.access, m.refresh, m.user = access, refresh, user
	m.mu.Unlock()

	vctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(m.ctx, cancel)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.end()
		defer stop()
		defer cancel()
		m.verify(vctx, gen)
	}()
	return nil
}

func (m *SessionManager) verify(ctx context.Context, gen uint64) {
	user, err := m.api.Profile(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) || ctx.Err() != nil {
			return
		}
		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			return
		}
		m.gen++
		clearErr := m.clearLocked()
		m.mu.Unlock()

		log.Info().Err(err).Msg("Stored session is no longer valid")
		if clearErr != nil {
			log.Error().Err(clearErr).Msg("Failed to clear stored session")
		}
		m.publish()
		return
	}

	if err := m.storeUser(gen, user); err != nil && !errors.Is(err, ErrSuperseded) {
		log.Error().Err(err).Msg("Failed to cache verified user")
	}
}

// Login authenticates and establishes the session. On failure the prior
// state is untouched and the error is returned without retry.
func (m *SessionManager) Login(ctx context.Context, creds Credentials) error {
	gen := m.begin()
	defer m.end()

	resp, err := m.api.Login(ctx, creds)
	if err != nil {
		return err
	}
	return m.establish(gen, resp)
}

// Register creates an account and establishes its session, with the same
// contract as Login.
func (m *SessionManager) Register(ctx context.Context, data RegisterData) error {
	gen := m.begin()
	defer m.end()

	resp, err := m.api.Register(ctx, data)
	if err != nil {
		return err
	}
	return m.establish(gen, resp)
}

func (m *SessionManager) establish(gen uint64, resp *AuthResponse) error {
	if resp == nil || resp.AccessToken == "" || resp.User == nil {
		return errors.New("incomplete auth response")
	}
	rawUser, err := json.Marshal(resp.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return ErrSuperseded
	}
	values := map[string]string{
		KeyAccessToken: resp.AccessToken,
		KeyUser:        string(rawUser),
	}
	var stale []string
	if resp.RefreshToken != "" {
		values[KeyRefreshToken] = resp.RefreshToken
	} else {
		stale = append(stale, KeyRefreshToken)
	}
	if err := m.store.Replace(values, stale...); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	m.access, m.refresh, m.user = resp.AccessToken, resp.RefreshToken, resp.User
	m.mu.Unlock()

	log.Info().Str("user_id", resp.User.ID.String()).Msg("Signed in")
	m.publish()
	m.navigate(PathDashboard)
	return nil
}

// Logout revokes the session server side on a best effort basis, then
// clears storage and memory, publishes the signal and navigates to the
// login page. Calling it without a session is harmless.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.begin()
	defer m.end()

	if err := m.api.Logout(ctx); err != nil {
		log.Warn().Err(err).Msg("Logout request failed")
	}

	m.mu.Lock()
	err := m.clearLocked()
	m.mu.Unlock()

	m.publish()
	m.navigate(PathLogin)
	if err != nil {
		return fmt.Errorf("clear stored session: %w", err)
	}
	return nil
}

// RefreshUser reloads the current user from the server. Any failure logs
// the user out.
func (m *SessionManager) RefreshUser(ctx context.Context) error {
	gen := m.begin()
	defer m.end()

	user, err := m.api.Profile(ctx)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			// ExpireSession already cleared the session and published.
			m.navigate(PathLogin)
			return err
		}
		log.Warn().Err(err).Msg("Failed to refresh user")
		if logoutErr := m.Logout(ctx); logoutErr != nil {
			log.Error().Err(logoutErr).Msg("Logout after failed refresh")
		}
		return err
	}
	return m.storeUser(gen, user)
}

func (m *SessionManager) storeUser(gen uint64, user *models.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return ErrSuperseded
	}
	if err := m.store.Set(map[string]string{KeyUser: string(raw)}); err != nil {
		return fmt.Errorf("persist user: %w", err)
	}
	m.user = user
	return nil
}

// Tokens returns the in-memory access and refresh tokens.
func (m *SessionManager) Tokens() (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access, m.refresh
}

// RotateTokens stores a refreshed token pair. It fails when the session
// ended while the refresh was in flight.
func (m *SessionManager) RotateTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.access == "" {
		return errors.New("no active session")
	}
	values := map[string]string{KeyAccessToken: access}
	if refresh != "" {
		values[KeyRefreshToken] = refresh
	}
	if err := m.store.Set(values); err != nil {
		return err
	}
	m.access = access
	if refresh != "" {
		m.refresh = refresh
	}
	return nil
}

// ExpireSession clears the session after the server rejected both tokens.
// It publishes the signal but does not navigate.
func (m *SessionManager) ExpireSession() {
	m.mu.Lock()
	m.gen++
	had := m.access != "" || m.user != nil
	err := m.clearLocked()
	m.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to clear expired session")
	}
	if had {
		log.Info().Msg("Session expired")
		m.publish()
	}
}

func (m *SessionManager) clearLocked() error {
	m.access, m.refresh, m.user = "", "", nil
	return m.store.Delete(sessionKeys...)
}

func (m *SessionManager) publish() {
	if m.bus != nil {
		m.bus.Publish(EventAuthStateChanged)
	}
}

func (m *SessionManager) navigate(path string) {
	if m.nav != nil {
		m.nav.Navigate(path)
	}
}

// User returns a copy of the current user, or nil.
func (m *SessionManager) User() *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

func (m *SessionManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// Token returns the current access token.
func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.access
}

// Loading reports whether a session operation is in flight.
func (m *SessionManager) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending > 0
}
