// Package memory provides an in-process cache.Store used for tests, local
// development, and as a fallback when no external backend is configured.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/adeilh/go-rakh-kv/cache"
)

var errClosed = errors.New("memory: store closed")

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type shard struct {
	mu   sync.RWMutex
	data map[string]entry
}

// Store is a sharded map keyed by xxhash of the cache key.
type Store struct {
	shards    []shard
	shardMask uint64
	now       func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Options tunes sharding and the background expiry sweep.
type Options struct {
	// Shards is rounded up to the next power of two. Defaults to 32.
	Shards int
	// CleanupInterval controls how often expired entries are swept.
	// A negative value disables the sweeper; zero uses one minute.
	CleanupInterval time.Duration
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Shards <= 0 {
		o.Shards = 32
	}
	o.Shards = nextPowerOf2(o.Shards)
	if o.CleanupInterval == 0 {
		o.CleanupInterval = time.Minute
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// NewStore creates a Store and starts its sweeper unless disabled.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	s := &Store{
		shards:    make([]shard, cfg.Shards),
		shardMask: uint64(cfg.Shards - 1),
		now:       cfg.Now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i].data = make(map[string]entry)
	}
	if cfg.CleanupInterval > 0 {
		go s.sweepLoop(cfg.CleanupInterval)
	} else {
		close(s.done)
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return &s.shards[xxhash.Sum64String(key)&s.shardMask]
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	sh := s.shardFor(key)
	sh.mu.RLock()
	e, ok := sh.data[key]
	sh.mu.RUnlock()
	if !ok {
		return nil, cache.ErrNotFound
	}
	if e.expired(s.now()) {
		s.evictIfExpired(sh, key)
		return nil, cache.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	sh.data[key] = e
	sh.mu.Unlock()
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, ok := sh.data[key]
	if !ok {
		return cache.ErrNotFound
	}
	delete(sh.data, key)
	if e.expired(s.now()) {
		return cache.ErrNotFound
	}
	return nil
}

// Ping always succeeds while the store is open.
func (s *Store) Ping(ctx context.Context) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	select {
	case <-s.stop:
		return errClosed
	default:
		return nil
	}
}

// Len reports the number of live entries.
func (s *Store) Len() int {
	now := s.now()
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, e := range sh.data {
			if !e.expired(now) {
				n++
			}
		}
		sh.mu.RUnlock()
	}
	return n
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (s *Store) PurgeExpired() int {
	now := s.now()
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, e := range sh.data {
			if e.expired(now) {
				delete(sh.data, k)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Close stops the sweeper. Stored data stays readable.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *Store) evictIfExpired(sh *shard, key string) {
	sh.mu.Lock()
	if e, ok := sh.data[key]; ok && e.expired(s.now()) {
		delete(sh.data, key)
	}
	sh.mu.Unlock()
}

func (s *Store) sweepLoop(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.PurgeExpired()
		}
	}
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
