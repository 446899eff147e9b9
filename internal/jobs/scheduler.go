// Package jobs runs the periodic maintenance work of the API server on a
// cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Folexy13/scholarhunter-sub001/internal/middleware"
	"github.com/Folexy13/scholarhunter-sub001/internal/models"
	"github.com/Folexy13/scholarhunter-sub001/pkg/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	JobDeactivateExpired    = "deactivate-expired-scholarships"
	JobRefreshGauges        = "refresh-gauges"
	JobDiscoverScholarships = "discover-scholarships"

	jobTimeout       = 30 * time.Second
	discoveryTimeout = 5 * time.Minute
)

// ExpiryRunner is implemented by services.ScholarshipService.
type ExpiryRunner interface {
	DeactivateExpired(ctx context.Context) (int64, error)
}

// SessionCounter is implemented by database.RedisDB.
type SessionCounter interface {
	CountSessions(ctx context.Context) (int, error)
}

// ConnectionCounter is implemented by notifications.Hub.
type ConnectionCounter interface {
	ConnectedClients() int
}

// Discoverer is implemented by services.DiscoveryService.
type Discoverer interface {
	Discover(ctx context.Context, count int) (models.DiscoveryResult, error)
}

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cfg         config.JobsConfig
	cron        *cron.Cron
	expiry      ExpiryRunner
	sessions    SessionCounter
	connections ConnectionCounter
	discovery   Discoverer
}

// NewScheduler registers the jobs from cfg. A job whose dependency is nil is
// skipped.
//
// Example:
//
//	scheduler, err := jobs.NewScheduler(cfg.Jobs, scholarshipService, redisDB, hub)
//	scheduler.Start()
//	defer scheduler.Stop(ctx)
func NewScheduler(cfg config.JobsConfig, expiry ExpiryRunner, sessions SessionCounter, connections ConnectionCounter) (*Scheduler, error) {
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		), cron.WithLogger(logger)),
		cfg:         cfg,
		expiry:      expiry,
		sessions:    sessions,
		connections: connections,
	}

	if expiry != nil {
		if err := s.add(cfg.ExpirySchedule, JobDeactivateExpired, jobTimeout, s.DeactivateExpired); err != nil {
			return nil, err
		}
	}
	if sessions != nil || connections != nil {
		if err := s.add(cfg.GaugesSchedule, JobRefreshGauges, jobTimeout, s.RefreshGauges); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddDiscovery registers the scholarship discovery job on
// cfg.DiscoverySchedule. It must be called before Start.
//
// Example:
//
//	if cfg.LLM.Enabled() {
//	    err = scheduler.AddDiscovery(discoveryService)
//	}
func (s *Scheduler) AddDiscovery(d Discoverer) error {
	s.discovery = d
	return s.add(s.cfg.DiscoverySchedule, JobDiscoverScholarships, discoveryTimeout, s.DiscoverScholarships)
}

func (s *Scheduler) add(spec, name string, timeout time.Duration, run func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		err := run(ctx)
		middleware.RecordJobRun(name, err)
		if err != nil {
			log.Error().Err(err).Str("job", name).Msg("Job failed")
			return
		}
		log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("Job finished")
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	return nil
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", s.Jobs()).Msg("Scheduler started")
}

// Stop prevents new runs and waits for running jobs, or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		log.Warn().Msg("Scheduler stop timed out with jobs still running")
	}
}

// DeactivateExpired marks scholarships past their deadline as inactive.
func (s *Scheduler) DeactivateExpired(ctx context.Context) error {
	_, err := s.expiry.DeactivateExpired(ctx)
	return err
}

// DiscoverScholarships asks the LLM service for cfg.DiscoveryCount new
// scholarships and saves the ones not already listed.
func (s *Scheduler) DiscoverScholarships(ctx context.Context) error {
	res, err := s.discovery.Discover(ctx, s.cfg.DiscoveryCount)
	if err != nil {
		return err
	}
	log.Info().
		Int("saved", res.Saved).
		Int("duplicates", res.Duplicates).
		Msg("Scheduled scholarship discovery finished")
	return nil
}

// RefreshGauges copies the device session count and the live socket count
// into the Prometheus gauges.
func (s *Scheduler) RefreshGauges(ctx context.Context) error {
	if s.connections != nil {
		middleware.SetWebsocketConnections(float64(s.connections.ConnectedClients()))
	}
	if s.sessions == nil {
		return nil
	}
	n, err := s.sessions.CountSessions(ctx)
	if err != nil {
		return fmt.Errorf("count sessions: %w", err)
	}
	middleware.SetActiveSessions(float64(n))
	return nil
}

// cronLogger routes cron's own logging through zerolog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
