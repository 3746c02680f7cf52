package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/adeilh/go-rakh-kv/cache"
)

var (
	ErrSessionInvalidDescriptor = errors.New("auth: invalid session descriptor")
	ErrSessionExpired           = errors.New("auth: session expired")
)

// DefaultSessionTTL is how long a token issued by Connect stays valid.
const DefaultSessionTTL = 24 * time.Hour

// minSessionTTL keeps a freshly written record from expiring in transit.
const minSessionTTL = time.Second

type SessionStoreOptions struct {
	// Prefix is joined to the token with an underscore: "auth" stores
	// token t under "auth_t".
	Prefix     string
	DefaultTTL time.Duration
	Now        func() time.Time
	NewID      func() string
}

func (o SessionStoreOptions) withDefaults() SessionStoreOptions {
	if o.Prefix == "" {
		o.Prefix = "auth"
	}
	if o.DefaultTTL <= 0 {
		o.DefaultTTL = DefaultSessionTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// CacheSessionStore keeps one JSON record per token in a cache.Store and
// lets the store's TTL retire it. Wrapping a *kv.Client gives sessions the
// client's logging and liveness tracking.
type CacheSessionStore struct {
	store cache.Store
	opts  SessionStoreOptions
}

func NewCacheSessionStore(store cache.Store, opts SessionStoreOptions) *CacheSessionStore {
	return &CacheSessionStore{store: store, opts: opts.withDefaults()}
}

// KeyPrefix is the prefix every session key starts with, e.g. "auth_".
func (s *CacheSessionStore) KeyPrefix() string { return s.opts.Prefix + "_" }

func (s *CacheSessionStore) key(id string) string { return s.KeyPrefix() + id }

// Create fills in ID, IssuedAt and ExpiresAt when unset and stores the
// record until ExpiresAt.
func (s *CacheSessionStore) Create(ctx context.Context, desc SessionDescriptor) (SessionToken, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	if desc.Subject == "" {
		return nil, ErrSessionInvalidDescriptor
	}

	now := s.opts.Now()
	rec := desc
	rec.Metadata = maps.Clone(desc.Metadata)
	if rec.ID == "" {
		rec.ID = s.opts.NewID()
	}
	if rec.IssuedAt.IsZero() {
		rec.IssuedAt = now
	}
	if rec.ExpiresAt.IsZero() {
		rec.ExpiresAt = rec.IssuedAt.Add(s.opts.DefaultTTL)
	}
	if rec.ExpiresAt.Before(rec.IssuedAt) {
		return nil, ErrSessionInvalidDescriptor
	}

	if err := s.write(ctx, rec, now); err != nil {
		return nil, err
	}
	return session(rec), nil
}

// Get returns ErrSessionExpired for unknown, revoked and expired tokens.
// Any other error comes from the backing store.
func (s *CacheSessionStore) Get(ctx context.Context, id string) (SessionToken, error) {
	rec, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	if session(rec).IsExpired(s.opts.Now()) {
		_ = s.store.Delete(ctx, s.key(id))
		return nil, ErrSessionExpired
	}
	return session(rec), nil
}

// Delete revokes id. Revoking an unknown token succeeds.
func (s *CacheSessionStore) Delete(ctx context.Context, id string) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	if id == "" {
		return ErrSessionInvalidDescriptor
	}
	err := s.store.Delete(ctx, s.key(id))
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	return err
}

// Touch moves the expiry of a live session to expiresAt.
func (s *CacheSessionStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	now := s.opts.Now()
	if !expiresAt.After(now) {
		return ErrSessionExpired
	}
	token, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	rec := token.Descriptor()
	rec.ExpiresAt = expiresAt
	return s.write(ctx, rec, now)
}

func (s *CacheSessionStore) write(ctx context.Context, rec SessionDescriptor, now time.Time) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	ttl := rec.ExpiresAt.Sub(now)
	if ttl < minSessionTTL {
		ttl = minSessionTTL
	}
	return s.store.Set(ctx, s.key(rec.ID), payload, ttl)
}

func (s *CacheSessionStore) read(ctx context.Context, id string) (SessionDescriptor, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return SessionDescriptor{}, err
	}
	if id == "" {
		return SessionDescriptor{}, ErrSessionInvalidDescriptor
	}
	payload, err := s.store.Get(ctx, s.key(id))
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return SessionDescriptor{}, ErrSessionExpired
	case err != nil:
		return SessionDescriptor{}, err
	}
	var rec SessionDescriptor
	if err := json.Unmarshal(payload, &rec); err != nil {
		return SessionDescriptor{}, fmt.Errorf("%w: %v", ErrSessionInvalidDescriptor, err)
	}
	return rec, nil
}

// session is the SessionToken handed out by CacheSessionStore.
type session SessionDescriptor

func (s session) Descriptor() SessionDescriptor { return SessionDescriptor(s) }

func (s session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.IsZero() && !at.Before(s.ExpiresAt)
}
