package ratelimiter

import (
	"sync"
	"time"
)

type FixedWindowRateLimiter struct {
	counts      sync.Map // string -> *window
	limit       int
	window      time.Duration
	now         func() time.Time
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type window struct {
	mu      sync.Mutex
	count   int
	resetAt time.Time
}

type Option func(*FixedWindowRateLimiter)

func WithClock(now func() time.Time) Option {
	return func(rl *FixedWindowRateLimiter) {
		rl.now = now
	}
}

// NewFixedWindowRateLimiter allows limit calls per key in each window. A limit
// of zero or less disables limiting.
func NewFixedWindowRateLimiter(limit int, period time.Duration, opts ...Option) *FixedWindowRateLimiter {
	if period <= 0 {
		period = time.Minute
	}

	rl := &FixedWindowRateLimiter{
		limit:       limit,
		window:      period,
		now:         time.Now,
		cleanupTick: time.NewTicker(period),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(rl)
	}

	go rl.startCleanup()
	return rl
}

// Allow counts one call for key and reports whether it fits the current
// window. When it does not, the second value is the time left until reset.
func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}

	now := rl.now()
	val, _ := rl.counts.LoadOrStore(key, &window{})
	w := val.(*window)

	w.mu.Lock()
	defer w.mu.Unlock()

	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Truncate(rl.window).Add(rl.window)
	}

	if w.count >= rl.limit {
		return false, w.resetAt.Sub(now)
	}

	w.count++
	return true, 0
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := rl.now()
	rl.counts.Range(func(key, value any) bool {
		w := value.(*window)
		w.mu.Lock()
		stale := !now.Before(w.resetAt)
		w.mu.Unlock()
		if stale {
			rl.counts.Delete(key)
		}
		return true
	})
}

func (rl *FixedWindowRateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
