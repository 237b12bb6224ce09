package ratelimiter

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestFixedWindowLimitsPerKey(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewFixedWindowRateLimiter(2, time.Minute, WithClock(clock.Now))
	defer rl.Close()

	ok, _ := rl.Allow("1.2.3.4")
	assert.True(t, ok)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)

	ok, retry := rl.Allow("1.2.3.4")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retry)

	ok, _ = rl.Allow("5.6.7.8")
	assert.True(t, ok)

	clock.Advance(time.Minute)
	ok, _ = rl.Allow("1.2.3.4")
	assert.True(t, ok)
}

func TestFixedWindowDisabled(t *testing.T) {
	rl := NewFixedWindowRateLimiter(0, time.Minute)
	defer rl.Close()

	for i := 0; i < 100; i++ {
		ok, _ := rl.Allow("k")
		assert.True(t, ok)
	}
}

func TestFixedWindowConcurrentCallsRespectLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewFixedWindowRateLimiter(10, time.Minute, WithClock(clock.Now))
	defer rl.Close()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := rl.Allow("k"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestCleanupDropsExpiredWindows(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewFixedWindowRateLimiter(1, time.Minute, WithClock(clock.Now))
	defer rl.Close()

	rl.Allow("k")
	clock.Advance(2 * time.Minute)
	rl.cleanup()

	_, ok := rl.counts.Load("k")
	assert.False(t, ok)
	rl.Close()
}
