package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/adeilh/go-rakh-kv/cache"
)

// Store implements cache.Store on top of a go-redis client.
type Store struct {
	opts   Options
	client goredis.UniversalClient
}

// NewStore builds a Redis-backed cache store. The connection pool is
// created lazily by go-redis on first use.
func NewStore(opts Options) *Store {
	cfg := opts.withDefaults()
	return &Store{opts: cfg, client: goredis.NewClient(cfg.clientOptions())}
}

// NewStoreFromClient wraps an already configured client (cluster, sentinel,
// or a client shared with other code).
func NewStoreFromClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Client exposes the underlying go-redis client.
func (s *Store) Client() goredis.UniversalClient { return s.client }

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	payload, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, fmt.Errorf("redis: GET: %w", err)
	}
	return payload, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	if ttl < 0 {
		ttl = 0
	}
	if ttl > 0 && ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: SET: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis: DEL: %w", err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// TTL returns the remaining lifetime of key, or zero when the key never
// expires.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return 0, err
	}
	d, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: PTTL: %w", err)
	}
	switch {
	case d == -2 || d == -2*time.Millisecond:
		return 0, cache.ErrNotFound
	case d < 0:
		return 0, nil
	}
	return d, nil
}

// Ping checks that the server answers PING.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: PING: %w", err)
	}
	return nil
}

// Pipelined batches the commands queued by fn into a single round-trip.
func (s *Store) Pipelined(ctx context.Context, fn func(goredis.Pipeliner) error) ([]goredis.Cmder, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	return s.client.Pipelined(ctx, fn)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
