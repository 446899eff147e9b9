// Package config loads ScholarHunter configuration from environment variables.
// A .env file is honoured for local development and every value has a sensible
// default except the secrets, which must be provided explicitly.
//
// The API server uses Load, which returns a validated Config. The terminal
// client uses LoadClient, which returns the much smaller ClientConfig.
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal().Err(err).Msg("Failed to load configuration")
//	}
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"
)

// MaxDiscoveryCount is the largest batch the LLM service will discover in
// one request.
const MaxDiscoveryCount = 50

// Config aggregates every configuration section of the API server.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	OAuth         OAuthConfig
	JWT           JWTConfig
	CORS          CORSConfig
	RateLimit     RateLimitConfig
	Cache         CacheConfig
	Security      SecurityConfig
	Notifications NotificationsConfig
	Jobs          JobsConfig
	LLM           LLMConfig
}

// ServerConfig holds the listen port, environment name and the frontend URL
// used for OAuth redirects.
type ServerConfig struct {
	Port        string
	Environment string
	FrontendURL string
}

// IsProduction reports whether cookies should be marked Secure.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DatabaseConfig holds PostgreSQL connection parameters and pool settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	PoolSize int
}

// OAuthConfig holds Google OAuth 2.0 credentials. Google sign-in is
// optional and only mounted when ClientID is set.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	UserInfoURL  string
}

// Enabled reports whether Google sign-in is configured.
func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

// JWTConfig holds the HMAC signing secret and token lifetimes.
type JWTConfig struct {
	Secret        []byte
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration // default 7 days
}

// CORSConfig lists the origins allowed to call the API and open websockets.
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig configures the Redis-backed fixed window limiter on the
// authentication endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int
	WindowDuration    time.Duration
}

// CacheConfig holds TTLs for Redis caches.
type CacheConfig struct {
	UserTTL        time.Duration
	SessionTTL     time.Duration
	ScholarshipTTL time.Duration
	Enabled        bool
}

// SecurityConfig holds password hashing parameters.
type SecurityConfig struct {
	BcryptCost int
}

// NotificationsConfig tunes the websocket gateway and the offline mailbox
// consumed by polling clients.
type NotificationsConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	MessagesPerSec float64 // inbound messages allowed per connection
	MessageBurst   int
	MailboxSize    int
	MailboxTTL     time.Duration
}

// JobsConfig holds the cron schedules of the background scheduler.
// Discovery only runs when the LLM service is configured.
type JobsConfig struct {
	Enabled           bool
	ExpirySchedule    string
	GaugesSchedule    string
	DiscoverySchedule string
	DiscoveryCount    int // scholarships requested per discovery run
}

// LLMConfig points at the LLM service that streams assistant replies and
// discovers scholarships. The assistant routes and the discovery job are
// only enabled when ServiceURL is set.
type LLMConfig struct {
	ServiceURL    string
	APIKey        string        // sent as a bearer token when set
	Timeout       time.Duration // discovery; the admin refresh waits for it, so keep it under the server write timeout
	StreamTimeout time.Duration // upper bound for one relayed stream
}

// Enabled reports whether an LLM service is configured.
func (l LLMConfig) Enabled() bool {
	return l.ServiceURL != ""
}

// Load reads and validates the server configuration.
//
// Required environment variables:
//   - POSTGRES_PASSWORD: database password
//   - JWT_SECRET: HMAC secret for JWT signing (at least 32 bytes)
//
// GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are optional; when both are set
// the Google sign-in routes are mounted. LLM_SERVICE_URL is optional too and
// enables the assistant routes, the admin refresh and scholarship discovery.
func Load() (*Config, error) {
	_ = godotenv.Load()

	postgresPassword, err := getEnvRequired("POSTGRES_PASSWORD")
	if err != nil {
		return nil, err
	}

	jwtSecret, err := getEnvRequired("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENV", "development"),
			FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			Database: getEnv("POSTGRES_DB", "scholarhunter"),
			User:     getEnv("POSTGRES_USER", "scholarhunter"),
			Password: postgresPassword,
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 25),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			PoolSize: getEnvAsInt("REDIS_POOL_SIZE", 100),
		},
		OAuth: OAuthConfig{
			ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			RedirectURL:  getEnv("AUTH_REDIRECT_URL", "http://localhost:8080/api/v1/auth/google/callback"),
			UserInfoURL:  getEnv("GOOGLE_USER_INFO", "https://www.googleapis.com/oauth2/v2/userinfo"),
		},
		JWT: JWTConfig{
			Secret:        []byte(jwtSecret),
			AccessExpiry:  getEnvAsDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			RefreshExpiry: getEnvAsDuration("JWT_REFRESH_EXPIRY", 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
			WindowDuration:    getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Cache: CacheConfig{
			UserTTL:        getEnvAsDuration("CACHE_USER_TTL", 15*time.Minute),
			SessionTTL:     getEnvAsDuration("CACHE_SESSION_TTL", 5*time.Minute),
			ScholarshipTTL: getEnvAsDuration("CACHE_SCHOLARSHIP_TTL", 10*time.Minute),
			Enabled:        getEnvAsBool("CACHE_ENABLED", true),
		},
		Security: SecurityConfig{
			BcryptCost: getEnvAsInt("BCRYPT_COST", bcrypt.DefaultCost),
		},
		Notifications: NotificationsConfig{
			PingInterval:   getEnvAsDuration("WS_PING_INTERVAL", 25*time.Second),
			WriteTimeout:   getEnvAsDuration("WS_WRITE_TIMEOUT", 10*time.Second),
			MaxMessageSize: int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 64*1024)),
			MessagesPerSec: getEnvAsFloat("WS_MESSAGES_PER_SEC", 10),
			MessageBurst:   getEnvAsInt("WS_MESSAGE_BURST", 20),
			MailboxSize:    getEnvAsInt("NOTIFICATION_MAILBOX_SIZE", 100),
			MailboxTTL:     getEnvAsDuration("NOTIFICATION_MAILBOX_TTL", 24*time.Hour),
		},
		Jobs: JobsConfig{
			Enabled:           getEnvAsBool("JOBS_ENABLED", true),
			ExpirySchedule:    getEnv("JOBS_EXPIRY_SCHEDULE", "@hourly"),
			GaugesSchedule:    getEnv("JOBS_GAUGES_SCHEDULE", "@every 1m"),
			DiscoverySchedule: getEnv("JOBS_DISCOVERY_SCHEDULE", "*/10 * * * *"),
			DiscoveryCount:    getEnvAsInt("JOBS_DISCOVERY_COUNT", 5),
		},
		LLM: LLMConfig{
			ServiceURL:    strings.TrimRight(getEnv("LLM_SERVICE_URL", ""), "/"),
			APIKey:        getEnv("LLM_API_KEY", ""),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 40*time.Second),
			StreamTimeout: getEnvAsDuration("LLM_STREAM_TIMEOUT", 5*time.Minute),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Validate checks ports, URLs, secret length, bcrypt cost and cron specs.
// It returns the first failure encountered.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("server port must be a valid integer: %w", err)
	}
	if _, err := strconv.Atoi(c.Database.Port); err != nil {
		return fmt.Errorf("database port must be a valid integer: %w", err)
	}
	if _, err := strconv.Atoi(c.Redis.Port); err != nil {
		return fmt.Errorf("redis port must be a valid integer: %w", err)
	}

	if c.OAuth.Enabled() {
		if _, err := url.ParseRequestURI(c.OAuth.RedirectURL); err != nil {
			return fmt.Errorf("invalid OAuth redirect URL: %w", err)
		}
		if _, err := url.ParseRequestURI(c.OAuth.UserInfoURL); err != nil {
			return fmt.Errorf("invalid OAuth user info URL: %w", err)
		}
	}

	if _, err := url.ParseRequestURI(c.Server.FrontendURL); err != nil {
		return fmt.Errorf("invalid frontend URL: %w", err)
	}

	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 bytes")
	}

	if c.Database.Password == "" {
		return fmt.Errorf("database password is required")
	}

	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.Notifications.MessagesPerSec <= 0 || c.Notifications.MessageBurst <= 0 {
		return fmt.Errorf("websocket message rate and burst must be positive")
	}

	if c.Jobs.Enabled {
		if _, err := cron.ParseStandard(c.Jobs.ExpirySchedule); err != nil {
			return fmt.Errorf("invalid expiry schedule %q: %w", c.Jobs.ExpirySchedule, err)
		}
		if _, err := cron.ParseStandard(c.Jobs.GaugesSchedule); err != nil {
			return fmt.Errorf("invalid gauges schedule %q: %w", c.Jobs.GaugesSchedule, err)
		}
		if c.LLM.Enabled() {
			if _, err := cron.ParseStandard(c.Jobs.DiscoverySchedule); err != nil {
				return fmt.Errorf("invalid discovery schedule %q: %w", c.Jobs.DiscoverySchedule, err)
			}
		}
	}

	if c.LLM.Enabled() {
		if _, err := url.ParseRequestURI(c.LLM.ServiceURL); err != nil {
			return fmt.Errorf("invalid LLM service URL: %w", err)
		}
		if c.LLM.Timeout <= 0 || c.LLM.StreamTimeout <= 0 {
			return fmt.Errorf("LLM timeouts must be positive")
		}
		if c.Jobs.DiscoveryCount < 1 || c.Jobs.DiscoveryCount > MaxDiscoveryCount {
			return fmt.Errorf("discovery count must be between 1 and %d", MaxDiscoveryCount)
		}
	}

	return nil
}

// DSN returns the lib/pq key/value connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.sslMode(),
	)
}

// URL returns the connection string in URL form, which golang-migrate
// requires for its postgres driver.
func (c *DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + c.sslMode(),
	}
	return u.String()
}

func (c *DatabaseConfig) sslMode() string {
	if c.SSLMode == "" {
		return "disable"
	}
	return c.SSLMode
}

// Address returns the Redis server address in "host:port" format.
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// ClientConfig configures the scholarctl terminal client.
type ClientConfig struct {
	APIURL        string        // base URL of the API, without the /api/v1 suffix
	StoragePath   string        // bbolt file holding tokens and drafts
	DraftDebounce time.Duration // quiescence window for persisted drafts
	DialTimeout   time.Duration
	HTTPTimeout   time.Duration
}

// LoadClient reads the client configuration. Nothing is required; command
// line flags override these values in scholarctl.
func LoadClient() (*ClientConfig, error) {
	_ = godotenv.Load()

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	cfg := &ClientConfig{
		APIURL:        strings.TrimRight(getEnv("SCHOLARHUNTER_API_URL", "http://localhost:8080"), "/"),
		StoragePath:   getEnv("SCHOLARHUNTER_STORE", home+"/.scholarhunter.db"),
		DraftDebounce: getEnvAsDuration("SCHOLARHUNTER_DRAFT_DEBOUNCE", 500*time.Millisecond),
		DialTimeout:   getEnvAsDuration("SCHOLARHUNTER_DIAL_TIMEOUT", 10*time.Second),
		HTTPTimeout:   getEnvAsDuration("SCHOLARHUNTER_HTTP_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the API URL is absolute and durations are positive.
func (c *ClientConfig) Validate() error {
	u, err := url.ParseRequestURI(c.APIURL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API URL must use http or https, got %q", u.Scheme)
	}
	if c.DraftDebounce <= 0 || c.DialTimeout <= 0 || c.HTTPTimeout <= 0 {
		return fmt.Errorf("client durations must be positive")
	}
	if c.StoragePath == "" {
		return fmt.Errorf("storage path is required")
	}
	return nil
}

// WebSocketURL derives the notification gateway URL from the API URL.
func (c *ClientConfig) WebSocketURL() string {
	base := c.APIURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/notifications"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

// getEnvAsInt falls back to defaultValue when the variable is unset or not
// an integer.
func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	value, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool accepts anything strconv.ParseBool does.
func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration parses Go duration syntax such as "300ms" or "2h45m".
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma separated list, dropping empty items.
//
//	// ALLOWED_ORIGINS=http://localhost:3000,https://scholarhunter.app
//	origins := getEnvAsSlice("ALLOWED_ORIGINS", nil)
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
