package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/trananhvu/classpulse/pkg/errors"
	"github.com/trananhvu/classpulse/pkg/logger"
	"github.com/trananhvu/classpulse/pkg/metrics"
)

// maxCodeDraws bounds collision re-draws before the registry grows the code
// length by one as a safety valve.
const maxCodeDraws = 25

// Registry is the process-wide map from code to live session. It is an
// explicit service object constructed once at startup and passed by
// reference, so tests can build isolated instances.
type Registry struct {
	cfg Config
	now func() time.Time
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// Option customises the Registry.
type Option func(*Registry)

// WithClock overrides the clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRegistry constructs an empty registry.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	reg := &Registry{
		cfg:      cfg,
		now:      time.Now,
		log:      logger.WithModule("session"),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Create returns the session for existingCode when it is live (host recovery
// after a server-side drop), recovers a well-formed code that is no longer
// live, or mints a fresh session under a new collision-free code.
func (r *Registry) Create(existingCode string) (s *Session, existing bool, err error) {
	existingCode = strings.ToUpper(strings.TrimSpace(existingCode))

	r.mu.Lock()
	defer r.mu.Unlock()

	if existingCode != "" {
		if live, ok := r.sessions[existingCode]; ok {
			return live, true, nil
		}
		if !ValidCode(existingCode) {
			return nil, false, apperrors.NewInvalidInput("malformed session code")
		}
		s = newSession(existingCode, r.cfg, r.now)
		r.sessions[existingCode] = s
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
		r.log.Info("session recovered", zap.String("code", existingCode))
		return s, false, nil
	}

	code, err := r.drawCodeLocked()
	if err != nil {
		return nil, false, err
	}

	s = newSession(code, r.cfg, r.now)
	r.sessions[code] = s
	metrics.ActiveSessions.Set(float64(len(r.sessions)))
	r.log.Info("session created", zap.String("code", code))
	return s, false, nil
}

// drawCodeLocked finds an unused code, re-drawing on collision.
func (r *Registry) drawCodeLocked() (string, error) {
	length := r.cfg.CodeLength
	for attempt := 0; ; attempt++ {
		if attempt > 0 && attempt%maxCodeDraws == 0 {
			length++
			r.log.Warn("code space congested, growing code length",
				zap.Int("length", length),
				zap.Int("sessions", len(r.sessions)),
			)
		}

		code, err := GenerateCode(length)
		if err != nil {
			return "", fmt.Errorf("registry: %w", err)
		}
		if _, taken := r.sessions[code]; !taken {
			return code, nil
		}
	}
}

// Get looks up a live session by code.
func (r *Registry) Get(code string) (*Session, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[code]
	return s, ok
}

// Delete removes the session and releases its timers. Rooms die with the
// session; nothing else holds them.
func (r *Registry) Delete(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))

	r.mu.Lock()
	s, ok := r.sessions[code]
	if ok {
		delete(r.sessions, code)
		metrics.ActiveSessions.Set(float64(len(r.sessions)))
	}
	r.mu.Unlock()

	if ok {
		s.Close()
		r.log.Info("session deleted", zap.String("code", code))
	}
	return ok
}

// FindByHostConn scans for the session hosted by the given connection.
// Linear, which is fine at thousands of sessions.
func (r *Registry) FindByHostConn(connID string) (*Session, bool) {
	if connID == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.sessions {
		if s.IsHost(connID) {
			return s, true
		}
	}
	return nil, false
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep deletes every expired session and returns their codes. Candidates are
// gathered under a read lock, then re-checked at deletion time so a session
// that saw activity mid-sweep survives to the next cycle.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.RLock()
	candidates := make([]*Session, 0)
	for _, s := range r.sessions {
		if s.Expired(now) {
			candidates = append(candidates, s)
		}
	}
	r.mu.RUnlock()

	var removed []string
	for _, s := range candidates {
		r.mu.Lock()
		live, ok := r.sessions[s.Code()]
		expired := ok && live == s && s.Expired(now)
		if expired {
			delete(r.sessions, s.Code())
			metrics.ActiveSessions.Set(float64(len(r.sessions)))
		}
		r.mu.Unlock()

		if expired {
			s.Close()
			removed = append(removed, s.Code())
		}
	}

	if len(removed) > 0 {
		metrics.SweptSessions.Add(float64(len(removed)))
		r.log.Info("swept expired sessions", zap.Strings("codes", removed))
	}
	return removed
}
