package ratelimit

import (
	"sync"
	"time"
)

// Limiter counts events per connection inside a fixed wall-clock window. It
// never blocks: callers get an allow/deny decision plus the delay after which
// the window resets. Concurrency-safe.
type Limiter struct {
	max    int
	window time.Duration
	clock  func() time.Time

	mu   sync.Mutex
	data map[string]*counter

	stop chan struct{}
	once sync.Once
}

type counter struct {
	count     int
	windowEnd time.Time
}

// Option customises the Limiter.
type Option func(*Limiter)

// WithClock overrides the limiter's clock, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Limiter) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New constructs a limiter allowing max events per window for each key.
func New(max int, window time.Duration, opts ...Option) *Limiter {
	if window <= 0 {
		window = time.Minute
	}

	l := &Limiter{
		max:    max,
		window: window,
		clock:  time.Now,
		data:   make(map[string]*counter),
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	go l.cleanupLoop()
	return l
}

// Allow records one event for the key and reports whether it fits in the
// current window. When denied, retryAfter is the time until the window resets.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	if l.max <= 0 {
		return true, 0
	}

	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	ct, ok := l.data[key]
	if !ok || now.After(ct.windowEnd) {
		ct = &counter{windowEnd: now.Add(l.window)}
		l.data[key] = ct
	}

	ct.count++
	if ct.count > l.max {
		return false, ct.windowEnd.Sub(now)
	}
	return true, 0
}

// Forget drops the counter for a key, typically on disconnect.
func (l *Limiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.data, key)
}

// Close stops the background cleanup goroutine.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

// cleanupLoop periodically drops stale counters to avoid unbounded growth.
func (l *Limiter) cleanupLoop() {
	tick := time.NewTicker(l.window)
	defer tick.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-tick.C:
			now := l.clock()
			l.mu.Lock()
			for key, ct := range l.data {
				if now.After(ct.windowEnd) {
					delete(l.data, key)
				}
			}
			l.mu.Unlock()
		}
	}
}
