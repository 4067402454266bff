package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type entryKind int

const (
	kindString entryKind = iota
	kindCounter
	kindWindow
	kindList
)

type entry struct {
	kind      entryKind
	str       string
	num       int64
	window    map[string]int64
	list      []string
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type MemoryStoreOpts struct {
	Capacity      int
	SweepInterval time.Duration
	Clock         Clock
}

// MemoryStore is a single-process Store. Entries live in a fixed-capacity LRU
// arena; expired entries are dropped lazily on access and by a periodic sweep.
// One mutex serialises every operation, which keeps compound updates atomic.
type MemoryStore struct {
	mu    sync.Mutex
	arena *simplelru.LRU[string, *entry]
	clock Clock
	stop  chan struct{}
	once  sync.Once
}

func NewMemoryStore(opts MemoryStoreOpts) (*MemoryStore, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = 100_000
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	arena, err := simplelru.NewLRU[string, *entry](opts.Capacity, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory arena: %w", err)
	}
	s := &MemoryStore{
		arena: arena,
		clock: opts.Clock,
		stop:  make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go s.sweepLoop(opts.SweepInterval)
	}
	return s, nil
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-s.stop:
			return
		}
	}
}

// Sweep removes every expired entry.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	removed := 0
	for _, key := range s.arena.Keys() {
		if e, ok := s.arena.Peek(key); ok && e.expired(now) {
			s.arena.Remove(key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.arena.Len()
}

func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.stop) })
}

// lookup must be called with mu held.
func (s *MemoryStore) lookup(key string, now time.Time) (*entry, bool) {
	e, ok := s.arena.Get(key)
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		s.arena.Remove(key)
		return nil, false
	}
	return e, true
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key, s.clock())
	if !ok {
		return "", false, nil
	}
	switch e.kind {
	case kindCounter:
		return strconv.FormatInt(e.num, 10), true, nil
	case kindString:
		return e.str, true, nil
	default:
		return "", false, fmt.Errorf("key %s holds a non-scalar value", key)
	}
}

func (s *MemoryStore) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena.Add(key, &entry{
		kind:      kindString,
		str:       value,
		expiresAt: expiry(s.clock(), ttl),
	})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.arena.Remove(key)
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e, ok := s.lookup(key, now)
	if !ok || e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(now), nil
}

// counter returns the live counter under key, converting a numeric string
// written through Set. Must be called with mu held.
func (s *MemoryStore) counter(key string, now time.Time) (*entry, error) {
	e, ok := s.lookup(key, now)
	if !ok {
		return nil, nil
	}
	switch e.kind {
	case kindCounter:
		return e, nil
	case kindString:
		n, err := strconv.ParseInt(e.str, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("key %s is not an integer", key)
		}
		e.kind, e.num, e.str = kindCounter, n, ""
		return e, nil
	default:
		return nil, fmt.Errorf("key %s holds a non-scalar value", key)
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e, err := s.counter(key, now)
	if err != nil {
		return 0, err
	}
	if e == nil {
		s.arena.Add(key, &entry{kind: kindCounter, num: 1, expiresAt: expiry(now, window)})
		return 1, nil
	}
	e.num++
	if e.expiresAt.IsZero() {
		e.expiresAt = expiry(now, window)
	}
	return e.num, nil
}

func (s *MemoryStore) IncrSliding(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.IncrBy(ctx, key, 1, ttl)
}

func (s *MemoryStore) IncrBy(_ context.Context, key string, n int64, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e, err := s.counter(key, now)
	if err != nil {
		return 0, err
	}
	if e == nil {
		e = &entry{kind: kindCounter}
		s.arena.Add(key, e)
	}
	e.num += n
	e.expiresAt = expiry(now, ttl)
	return e.num, nil
}

func (s *MemoryStore) AddToWindow(
	_ context.Context,
	key, member string,
	at time.Time,
	window time.Duration,
) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e, ok := s.lookup(key, now)
	if ok && e.kind != kindWindow {
		return 0, fmt.Errorf("key %s is not a window", key)
	}
	if !ok {
		e = &entry{kind: kindWindow, window: make(map[string]int64)}
		s.arena.Add(key, e)
	}
	cutoff := at.Add(-window).UnixMilli()
	for m, score := range e.window {
		if score < cutoff {
			delete(e.window, m)
		}
	}
	e.window[member] = at.UnixMilli()
	e.expiresAt = expiry(now, window)
	return int64(len(e.window)), nil
}

func (s *MemoryStore) CountWindow(_ context.Context, key string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key, s.clock())
	if !ok {
		return 0, nil
	}
	if e.kind != kindWindow {
		return 0, fmt.Errorf("key %s is not a window", key)
	}
	floor := since.UnixMilli()
	var n int64
	for _, score := range e.window {
		if score >= floor {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) PushBounded(_ context.Context, key string, value string, maxLen int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	e, ok := s.lookup(key, now)
	if ok && e.kind != kindList {
		return fmt.Errorf("key %s is not a list", key)
	}
	if !ok {
		e = &entry{kind: kindList}
		s.arena.Add(key, e)
	}
	e.list = append([]string{value}, e.list...)
	if maxLen > 0 && len(e.list) > maxLen {
		e.list = e.list[:maxLen]
	}
	e.expiresAt = expiry(now, ttl)
	return nil
}

func (s *MemoryStore) Range(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key, s.clock())
	if !ok {
		return nil, nil
	}
	if e.kind != kindList {
		return nil, fmt.Errorf("key %s is not a list", key)
	}
	out := make([]string, len(e.list))
	copy(out, e.list)
	return out, nil
}

func (s *MemoryStore) SumCounters(_ context.Context, keys []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var total int64
	for _, key := range keys {
		e, ok := s.arena.Peek(key)
		if !ok || e.expired(now) {
			continue
		}
		switch e.kind {
		case kindCounter:
			total += e.num
		case kindString:
			if n, err := strconv.ParseInt(e.str, 10, 64); err == nil {
				total += n
			}
		}
	}
	return total, nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	var out []string
	for _, key := range s.arena.Keys() {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e, ok := s.arena.Peek(key); ok && !e.expired(now) {
			out = append(out, key)
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}
