package cache

import (
	"context"
	"path"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used in tests and for development runs
// without a Redis server. Expired entries are dropped lazily on access and by
// a janitor ticker.
type MemoryStore struct {
	mu      sync.Mutex
	data    map[string]memoryEntry
	clock   func() time.Time
	janitor *time.Ticker
	done    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// NewMemoryStore constructs an in-memory store with a background janitor.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		data:    make(map[string]memoryEntry),
		clock:   time.Now,
		janitor: time.NewTicker(time.Minute),
		done:    make(chan struct{}),
	}
	go s.janitorLoop()
	return s
}

// SetClock overrides the store clock, primarily for TTL tests.
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if clock != nil {
		s.clock = clock
	}
}

func (s *MemoryStore) janitorLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.janitor.C:
			now := s.clock()
			s.mu.Lock()
			for key, entry := range s.data {
				if entry.expired(now) {
					delete(s.data, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// get returns the live entry for key, dropping it when expired. Callers hold the lock.
func (s *MemoryStore) getLocked(key string) (memoryEntry, bool) {
	entry, ok := s.data[key]
	if !ok {
		return memoryEntry{}, false
	}
	if entry.expired(s.clock()) {
		delete(s.data, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.getLocked(key)
	if !ok {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	}
	s.data[key] = entry
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if _, ok := s.getLocked(key); ok {
			delete(s.data, key)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.getLocked(key)
	return ok, nil
}

func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.getLocked(key)
	if !ok {
		return false, nil
	}
	if ttl > 0 {
		entry.expiresAt = s.clock().Add(ttl)
	} else {
		entry.expiresAt = time.Time{}
	}
	s.data[key] = entry
	return true, nil
}

func (s *MemoryStore) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.incrLocked(key, delta)
}

func (s *MemoryStore) incrLocked(key string, delta int64) (int64, error) {
	var current int64
	entry, ok := s.getLocked(key)
	if ok {
		parsed, err := strconv.ParseInt(entry.value, 10, 64)
		if err != nil {
			return 0, err
		}
		current = parsed
	}

	current += delta
	entry.value = strconv.FormatInt(current, 10)
	s.data[key] = entry
	return current, nil
}

func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, err := s.incrLocked(key, 1)
	if err != nil {
		return 0, 0, err
	}

	entry := s.data[key]
	if count == 1 && window > 0 {
		entry.expiresAt = s.clock().Add(window)
		s.data[key] = entry
	}

	remaining := window
	if !entry.expiresAt.IsZero() {
		remaining = entry.expiresAt.Sub(s.clock())
	}
	return count, remaining, nil
}

func (s *MemoryStore) Keys(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	var keys []string
	for key, entry := range s.data {
		if entry.expired(now) {
			delete(s.data, key)
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
	return keys, nil
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		s.janitor.Stop()
		close(s.done)
	})
	return nil
}
