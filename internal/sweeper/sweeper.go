package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/trananhvu/classpulse/internal/session"
	"github.com/trananhvu/classpulse/pkg/logger"
)

const defaultSchedule = "@every 1m"

// Sweeper periodically removes sessions that exceeded their maximum age or
// went idle with no host attached. Expiry is re-checked at deletion time, so
// a session that becomes live again between scan and delete survives.
type Sweeper struct {
	registry *session.Registry
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	schedule string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the sweep job.
func WithSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// New constructs a Sweeper with sensible defaults.
func New(registry *session.Registry, opts ...Option) *Sweeper {
	s := &Sweeper{
		registry: registry,
		now:      time.Now,
		schedule: defaultSchedule,
		log:      logger.WithModule("sweeper"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return s
}

// Start registers the sweep job with the cron scheduler and launches it.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running sweep to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes one sweep immediately. Primarily used in tests and during
// graceful shutdown.
func (s *Sweeper) RunOnce() []string {
	return s.registry.Sweep(s.now())
}

func (s *Sweeper) sweep() {
	if removed := s.registry.Sweep(s.now()); len(removed) > 0 {
		s.log.Info("swept expired sessions",
			zap.Int("count", len(removed)),
			zap.Strings("codes", removed),
		)
	}
}
