// Package bolt persists cache entries in a single bbolt file so values
// survive process restarts without an external server.
package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/adeilh/go-rakh-kv/cache"
)

var ErrClosed = errors.New("bolt: store closed")

// Options configures the bbolt-backed store.
type Options struct {
	// Bucket is the name of the Bolt bucket to use.
	Bucket string
	// OpenTimeout bounds how long Open waits for the file lock.
	OpenTimeout time.Duration
	Now         func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Bucket == "" {
		o.Bucket = "kv"
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store implements cache.Store. Values are stored as
// 8 bytes big endian expiry (unix nanos, 0 = none) || raw value.
type Store struct {
	db     *bolt.DB
	bucket []byte
	now    func() time.Time
}

// Open initializes or opens a Store at the given path.
func Open(path string, opts Options) (*Store, error) {
	cfg := opts.withDefaults()
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: cfg.OpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	bucket := []byte(cfg.Bucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt: create bucket: %w", err)
	}
	return &Store{db: db, bucket: bucket, now: cfg.Now}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil || s.expired(v) {
			return cache.ErrNotFound
		}
		out = append([]byte(nil), v[8:]...)
		return nil
	})
	if err != nil {
		return nil, s.wrap(err)
	}
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	var expiresAt int64
	if ttl > 0 {
		expiresAt = s.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expiresAt))
	copy(buf[8:], value)

	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(s.bucket).Put([]byte(key), buf)
	}))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	return s.wrap(s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		v := b.Get([]byte(key))
		if v == nil {
			return cache.ErrNotFound
		}
		expired := s.expired(v)
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
		if expired {
			return cache.ErrNotFound
		}
		return nil
	}))
}

// PurgeExpired removes expired entries and reports how many were dropped.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return 0, err
	}
	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		var stale [][]byte
		if err := b.ForEach(func(k, v []byte) error {
			if s.expired(v) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, s.wrap(err)
}

// Ping fails once the database has been closed.
func (s *Store) Ping(ctx context.Context) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	return s.wrap(s.db.View(func(*bolt.Tx) error { return nil }))
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) expired(v []byte) bool {
	if len(v) < 8 {
		return true
	}
	expiresAt := int64(binary.BigEndian.Uint64(v[:8]))
	return expiresAt > 0 && s.now().UnixNano() >= expiresAt
}

func (s *Store) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, cache.ErrNotFound):
		return err
	case errors.Is(err, bolt.ErrDatabaseNotOpen):
		return ErrClosed
	default:
		return fmt.Errorf("bolt: %w", err)
	}
}
