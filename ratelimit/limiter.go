// Package ratelimit implements a per-user sliding-window limiter. Windows
// live in memory only and start empty after a restart.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Window      time.Duration
	MaxRequests int
	// IdleTimeout is how long a window may go untouched before Cleanup drops it.
	IdleTimeout time.Duration
}

type window struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastSeen   time.Time
	dead       bool
}

// prune drops timestamps strictly older than cutoff. Callers hold w.mu.
func (w *window) prune(cutoff time.Time) {
	i := 0
	for i < len(w.timestamps) && w.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

// Limiter owns every user's window. Calls for different users only contend
// on the map lookup; calls for the same user are serialized on that user's
// window.
type Limiter struct {
	config  Config
	now     func() time.Time
	mu      sync.Mutex
	windows map[string]*window
	logger  *logrus.Entry
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func NewLimiter(cfg Config, opts ...Option) *Limiter {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * cfg.Window
	}
	l := &Limiter{
		config:  cfg,
		now:     time.Now,
		windows: make(map[string]*window),
		logger:  logrus.WithField("component", "ratelimit"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// acquire returns the user's window locked. A window that Cleanup removed
// after the lookup is skipped so no request is recorded on an orphan.
func (l *Limiter) acquire(userID string) *window {
	for {
		l.mu.Lock()
		w, ok := l.windows[userID]
		if !ok {
			w = &window{}
			l.windows[userID] = w
		}
		l.mu.Unlock()

		w.mu.Lock()
		if !w.dead {
			return w
		}
		w.mu.Unlock()
	}
}

// CheckAndRecord admits the request when fewer than maxRequests timestamps
// remain in (now-window, now] after pruning, records now, and reports how
// many requests are left. A rejected request is not recorded.
func (l *Limiter) CheckAndRecord(userID string, now time.Time, window time.Duration, maxRequests int) (bool, int) {
	w := l.acquire(userID)
	defer w.mu.Unlock()

	w.prune(now.Add(-window))
	w.lastSeen = now

	if len(w.timestamps) >= maxRequests {
		return false, 0
	}
	w.timestamps = append(w.timestamps, now)
	return true, maxRequests - len(w.timestamps)
}

// RetryAfter reports how long until the oldest request in the window ages
// out, or 0 when the window is empty.
func (l *Limiter) RetryAfter(userID string, now time.Time, window time.Duration) time.Duration {
	w := l.acquire(userID)
	defer w.mu.Unlock()

	w.prune(now.Add(-window))
	if len(w.timestamps) == 0 {
		return 0
	}
	wait := w.timestamps[0].Add(window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Allow applies the configured window and limit at the limiter's clock.
func (l *Limiter) Allow(userID string) (bool, int, time.Duration) {
	now := l.now()
	admitted, remaining := l.CheckAndRecord(userID, now, l.config.Window, l.config.MaxRequests)
	if admitted {
		return true, remaining, 0
	}
	return false, 0, l.RetryAfter(userID, now, l.config.Window)
}

// Remaining reports how many requests the user may still make without
// recording one.
func (l *Limiter) Remaining(userID string) int {
	now := l.now()
	w := l.acquire(userID)
	defer w.mu.Unlock()

	w.prune(now.Add(-l.config.Window))
	if n := l.config.MaxRequests - len(w.timestamps); n > 0 {
		return n
	}
	return 0
}

// Cleanup drops windows that have been idle for longer than idle and
// returns how many were removed.
func (l *Limiter) Cleanup(now time.Time, idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for userID, w := range l.windows {
		w.mu.Lock()
		if now.Sub(w.lastSeen) > idle {
			w.dead = true
			delete(l.windows, userID)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Size returns the number of tracked users.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Run calls Cleanup every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Cleanup(l.now(), l.config.IdleTimeout); n > 0 {
				l.logger.WithFields(logrus.Fields{
					"removed": n,
					"tracked": l.Size(),
				}).Debug("Dropped idle rate windows")
			}
		}
	}
}
