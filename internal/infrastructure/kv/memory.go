package kv

import (
	"context"
	"path"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	list      [][]byte
	isList    bool
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Memory is an in-process Store with lazy expiry and a periodic sweep.
type Memory struct {
	entries   map[string]memoryEntry
	mu        sync.Mutex
	now       func() time.Time
	stopClean chan struct{}
	cleanOnce sync.Once
}

type MemoryOption func(*Memory)

// WithClock replaces time.Now, mainly so tests can move time forward.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:   make(map[string]memoryEntry),
		now:       time.Now,
		stopClean: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.cleanupExpired(time.Minute)

	return m
}

// lookup must be called with mu held.
func (m *Memory) lookup(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	if e.isList {
		return nil, ErrWrongType
	}

	return cloneBytes(e.value), nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		value:     cloneBytes(value),
		expiresAt: m.expiry(ttl),
	}
	return nil
}

func (m *Memory) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.lookup(key)
	return ok, nil
}

func (m *Memory) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		if _, ok := m.lookup(key); !ok {
			continue
		}
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, err
		}
		if matched {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	return keys, nil
}

func (m *Memory) LPush(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if ok && !e.isList {
		return ErrWrongType
	}

	list := make([][]byte, 0, len(e.list)+1)
	list = append(list, cloneBytes(value))
	list = append(list, e.list...)

	m.entries[key] = memoryEntry{list: list, isList: true, expiresAt: e.expiresAt}
	return nil
}

func (m *Memory) LTrim(ctx context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil
	}
	if !e.isList {
		return ErrWrongType
	}

	from, to, ok := listBounds(int64(len(e.list)), start, stop)
	if !ok {
		delete(m.entries, key)
		return nil
	}

	e.list = e.list[from : to+1]
	m.entries[key] = e
	return nil
}

func (m *Memory) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return [][]byte{}, nil
	}
	if !e.isList {
		return nil, ErrWrongType
	}

	from, to, ok := listBounds(int64(len(e.list)), start, stop)
	if !ok {
		return [][]byte{}, nil
	}

	out := make([][]byte, 0, to-from+1)
	for _, v := range e.list[from : to+1] {
		out = append(out, cloneBytes(v))
	}
	return out, nil
}

func (m *Memory) Expire(ctx context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok {
		return nil
	}

	e.expiresAt = m.expiry(ttl)
	m.entries[key] = e
	return nil
}

// TTL reports the remaining lifetime of a key. It returns false when the key
// is missing or has no expiry.
func (m *Memory) TTL(key string) (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.lookup(key)
	if !ok || e.expiresAt.IsZero() {
		return 0, false
	}
	return e.expiresAt.Sub(m.now()), true
}

func (m *Memory) Ping(ctx context.Context) error {
	return nil
}

func (m *Memory) Close() error {
	m.cleanOnce.Do(func() {
		close(m.stopClean)
	})
	return nil
}

func (m *Memory) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-m.stopClean:
			return
		}
	}
}

// listBounds resolves redis-style inclusive indexes against a list length.
func listBounds(n, start, stop int64) (int64, int64, bool) {
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
