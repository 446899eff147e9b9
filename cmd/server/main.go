package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/database"
	"github.com/Folexy13/scholarhunter-sub001/internal/handlers"
	"github.com/Folexy13/scholarhunter-sub001/internal/jobs"
	"github.com/Folexy13/scholarhunter-sub001/internal/middleware"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/internal/notifications"
	"github.com/Folexy13/scholarhunter-sub001/internal/services"
	"github.com/Folexy13/scholarhunter-sub001/pkg/cache"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Long polls must finish before the server write timeout.
const (
	writeTimeout = 45 * time.Second
	maxPollWait  = 25 * time.Second
)

type routes struct {
	auth          *handlers.AuthHandler
	health        *handlers.HealthHandler
	users         *handlers.UserHandler
	scholarships  *handlers.ScholarshipHandler
	applications  *handlers.ApplicationHandler
	documents     *handlers.DocumentHandler
	notifications *handlers.NotificationHandler
	llm           *handlers.LLMHandler
	discovery     *handlers.DiscoveryHandler
	gateway       http.Handler
	rateLimiter   *middleware.RateLimiter
	validator     middleware.TokenValidator
	googleEnabled bool
	llmEnabled    bool
}

// @title           ScholarHunter API
// @version         1.0
// @description     Scholarship discovery and application tracking with realtime notifications.
//
// @BasePath  /
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if !cfg.Server.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("env", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Msg("Starting ScholarHunter API")

	postgresDB, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer postgresDB.Close()

	if err := database.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	redisDB, err := database.NewRedisDB(&cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisDB.Close()

	var (
		cacheInstance *cache.Cache
		userCache     services.UserCacher
	)
	if cfg.Cache.Enabled {
		cacheInstance = cache.NewCache(redisDB.Client())
		userCache = cache.NewUserCache(cacheInstance, postgresDB, cfg.Cache.UserTTL)
	}

	hub := notifications.NewHub(cfg.Notifications, redisDB)
	defer hub.Close()

	jwtService := services.NewJWTService(&cfg.JWT, redisDB)
	hasher := services.NewPasswordHasher(cfg.Security.BcryptCost)
	authService := services.NewAuthService(postgresDB, hasher, jwtService)
	sessionService := services.NewSessionService(redisDB, cfg.JWT.RefreshExpiry)
	userService := services.NewUserService(postgresDB, userCache)
	scholarshipService := services.NewScholarshipService(postgresDB, cacheInstance, cfg.Cache.ScholarshipTTL, hub)
	applicationService := services.NewApplicationService(postgresDB, hub)
	documentService := services.NewDocumentService(postgresDB, postgresDB, hub)

	var (
		llmService       *services.LLMService
		discoveryService *services.DiscoveryService
	)
	if cfg.LLM.Enabled() {
		llmService = services.NewLLMService(&cfg.LLM, hub, nil)
		discoveryService = services.NewDiscoveryService(llmService, postgresDB, scholarshipService)
		log.Info().Str("url", cfg.LLM.ServiceURL).Msg("LLM service configured")
	} else {
		log.Info().Msg("LLM service not configured, assistant and discovery disabled")
	}

	var oauthService handlers.OAuthService
	if cfg.OAuth.Enabled() {
		oauthService = services.NewGoogleAuthService(&cfg.OAuth, postgresDB)
	} else {
		log.Info().Msg("Google sign-in disabled")
	}

	r := newRouter(cfg, routes{
		auth: handlers.NewAuthHandler(authService, oauthService, jwtService, sessionService,
			cfg.Server.IsProduction(), cfg.Server.FrontendURL+"/dashboard"),
		health:        handlers.NewHealthHandler(postgresDB, redisDB),
		users:         handlers.NewUserHandler(userService),
		scholarships:  handlers.NewScholarshipHandler(scholarshipService),
		applications:  handlers.NewApplicationHandler(applicationService),
		documents:     handlers.NewDocumentHandler(documentService),
		notifications: handlers.NewNotificationHandler(hub, maxPollWait),
		llm:           handlers.NewLLMHandler(llmService),
		discovery:     handlers.NewDiscoveryHandler(discoveryService),
		gateway:       notifications.NewGateway(hub, jwtService, cfg.CORS.AllowedOrigins),
		rateLimiter:   middleware.NewRateLimiter(redisDB, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.WindowDuration),
		validator:     jwtService,
		googleEnabled: cfg.OAuth.Enabled(),
		llmEnabled:    cfg.LLM.Enabled(),
	})

	var scheduler *jobs.Scheduler
	if cfg.Jobs.Enabled {
		scheduler, err = jobs.NewScheduler(cfg.Jobs, scholarshipService, redisDB, hub)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create job scheduler")
		}
		if discoveryService != nil {
			if err := scheduler.AddDiscovery(discoveryService); err != nil {
				log.Fatal().Err(err).Msg("Failed to schedule scholarship discovery")
			}
		}
		scheduler.Start()
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Server started")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(ctx)
	}
	// Cancelled streams still send their final event through the hub.
	if llmService != nil {
		llmService.Close()
	}
	// Websockets are hijacked and not tracked by Shutdown.
	hub.Close()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped gracefully")
}

func newRouter(cfg *config.Config, h routes) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	r.Get("/health", h.health.Health)
	r.Get("/ready", h.health.Ready)
	r.Handle("/metrics", middleware.MetricsHandler())

	// The upgrade needs the raw ResponseWriter, so the socket stays outside
	// the compressing and timeout middleware.
	r.Get("/ws/notifications", h.gateway.ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))
		r.Use(chimiddleware.Timeout(60 * time.Second))

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(h.rateLimiter.Limit("auth"))
					r.Post("/register", h.auth.Register)
					r.Post("/login", h.auth.Login)
					r.Post("/refresh", h.auth.RefreshToken)
					if h.googleEnabled {
						r.Get("/google/login", h.auth.GoogleLogin)
						r.Get("/google/callback", h.auth.GoogleCallback)
					}
				})

				r.Group(func(r chi.Router) {
					r.Use(middleware.JWTAuth(h.validator))
					r.Get("/profile", h.auth.Profile)
					r.Post("/logout", h.auth.Logout)
					r.Get("/sessions", h.auth.ListSessions)
					r.Delete("/sessions/{id}", h.auth.RevokeSession)
					r.Post("/sessions/revoke-others", h.auth.RevokeOtherSessions)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(h.validator))

				r.Route("/users", func(r chi.Router) {
					r.With(middleware.RequireRole(models.RoleAdmin)).Get("/", h.users.List)
					r.Get("/me/profile", h.users.GetProfile)
					r.Post("/me/profile", h.users.CreateProfile)
					r.Patch("/me/profile", h.users.UpdateProfile)
					r.Get("/{id}", h.users.Get)
					r.Get("/{id}/profile", h.users.GetProfileByID)
					r.Patch("/{id}", h.users.Update)
					r.With(middleware.RequireRole(models.RoleAdmin)).Delete("/{id}", h.users.Delete)
				})

				r.Route("/scholarships", func(r chi.Router) {
					r.Get("/", h.scholarships.List)
					r.Get("/search", h.scholarships.Search)
					r.Get("/matches", h.scholarships.Matches)
					r.Get("/{id}", h.scholarships.Get)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRole(models.RoleAdmin))
						r.Post("/", h.scholarships.Create)
						r.Delete("/", h.scholarships.DeleteAll)
						r.Patch("/{id}", h.scholarships.Update)
						r.Delete("/{id}", h.scholarships.Delete)
						if h.llmEnabled {
							r.Post("/admin/refresh", h.discovery.Refresh)
						}
					})
				})

				r.Route("/applications", func(r chi.Router) {
					r.Post("/", h.applications.Create)
					r.Get("/", h.applications.List)
					r.Get("/{id}", h.applications.Get)
					r.Patch("/{id}", h.applications.Update)
					r.Delete("/{id}", h.applications.Delete)
				})

				r.Route("/documents", func(r chi.Router) {
					r.Post("/", h.documents.Create)
					r.Get("/", h.documents.List)
					r.Get("/{id}", h.documents.Get)
					r.Patch("/{id}", h.documents.Update)
					r.Delete("/{id}", h.documents.Delete)
				})

				if h.llmEnabled {
					r.Route("/llm", func(r chi.Router) {
						r.Use(h.rateLimiter.Limit("llm"))
						r.Post("/chat", h.llm.Chat)
						r.Post("/cv-parse", h.llm.ParseCV)
						r.Post("/generate-document", h.llm.GenerateDocument)
						r.Post("/interview-prep", h.llm.InterviewPrep)
					})
				}

				r.Route("/notifications", func(r chi.Router) {
					r.Get("/poll", h.notifications.Poll)
					r.Post("/poll", h.notifications.Send)

					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRole(models.RoleAdmin))
						r.Get("/stats", h.notifications.Stats)
						r.Post("/broadcast", h.notifications.Broadcast)
					})
				})
			})
		})
	})

	return r
}
