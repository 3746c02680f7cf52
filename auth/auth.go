// Package auth issues token sessions for registered users. Sessions are
// JSON records in a cache.Store under "<prefix>_<token>" and expire with
// the store's TTL.
package auth

import (
	"context"
	"time"
)

// SessionDescriptor is the stored form of a session.
type SessionDescriptor struct {
	ID        string            `json:"id"`
	Subject   string            `json:"sub"`
	IssuedAt  time.Time         `json:"iat"`
	ExpiresAt time.Time         `json:"exp"`
	IP        string            `json:"ip,omitempty"`
	UserAgent string            `json:"ua,omitempty"`
	Metadata  map[string]string `json:"meta,omitempty"`
}

type SessionToken interface {
	Descriptor() SessionDescriptor
	IsExpired(at time.Time) bool
}

type SessionStore interface {
	SessionLookup
	Create(ctx context.Context, desc SessionDescriptor) (SessionToken, error)
	Delete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, expiresAt time.Time) error
}

// PasswordHash is a hash plus what is needed to verify or upgrade it.
type PasswordHash struct {
	Algorithm string    `json:"alg"`
	Cost      int       `json:"cost"`
	Value     []byte    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

type PasswordHasher interface {
	Hash(ctx context.Context, plain []byte) (PasswordHash, error)
	Compare(ctx context.Context, plain []byte, hash PasswordHash) error
	// NeedsRehash reports hashes weaker or older than the hasher's policy.
	NeedsRehash(hash PasswordHash) bool
}
