package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/adeilh/go-rakh-kv/cache"
)

var (
	ErrPasswordTooShort         = errors.New("auth: password too short")
	ErrPasswordTooLong          = errors.New("auth: password too long")
	ErrPasswordMismatch         = errors.New("auth: password does not match")
	ErrPasswordInvalidAlgorithm = errors.New("auth: unsupported password algorithm")
	ErrPasswordInvalidHash      = errors.New("auth: invalid password hash")
)

const (
	AlgorithmBcrypt   = "bcrypt"
	DefaultBcryptCost = 12
	MinPasswordLength = 8
)

// bcrypt ignores input past 72 bytes, pepper included.
const bcryptInputLimit = 72

// BcryptHasher hashes passwords with bcrypt and an optional server-side
// pepper appended to the password.
type BcryptHasher struct {
	cost      int
	pepper    []byte
	minLength int
	maxAge    time.Duration
	now       func() time.Time
}

type BcryptHasherOption func(*BcryptHasher)

// WithBcryptCost ignores costs outside bcrypt's accepted range.
func WithBcryptCost(cost int) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

func WithBcryptPepper(pepper []byte) BcryptHasherOption {
	return func(h *BcryptHasher) { h.pepper = append([]byte(nil), pepper...) }
}

func WithBcryptMinLength(n int) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if n > 0 {
			h.minLength = n
		}
	}
}

// WithBcryptMaxAge makes NeedsRehash report hashes older than d.
func WithBcryptMaxAge(d time.Duration) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if d > 0 {
			h.maxAge = d
		}
	}
}

func WithBcryptNow(now func() time.Time) BcryptHasherOption {
	return func(h *BcryptHasher) {
		if now != nil {
			h.now = now
		}
	}
}

func NewBcryptHasher(opts ...BcryptHasherOption) *BcryptHasher {
	h := &BcryptHasher{cost: DefaultBcryptCost, minLength: MinPasswordLength, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *BcryptHasher) Hash(ctx context.Context, plain []byte) (PasswordHash, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return PasswordHash{}, err
	}
	switch {
	case len(plain) < h.minLength:
		return PasswordHash{}, ErrPasswordTooShort
	case len(plain)+len(h.pepper) > bcryptInputLimit:
		return PasswordHash{}, ErrPasswordTooLong
	}

	var value []byte
	err := h.withPeppered(plain, func(input []byte) error {
		var err error
		value, err = bcrypt.GenerateFromPassword(input, h.cost)
		return err
	})
	if err != nil {
		return PasswordHash{}, fmt.Errorf("auth: bcrypt hash: %w", err)
	}
	return PasswordHash{Algorithm: AlgorithmBcrypt, Cost: h.cost, Value: value, CreatedAt: h.now()}, nil
}

func (h *BcryptHasher) Compare(ctx context.Context, plain []byte, hash PasswordHash) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	if hash.Algorithm != AlgorithmBcrypt {
		return ErrPasswordInvalidAlgorithm
	}
	if len(hash.Value) == 0 {
		return ErrPasswordInvalidHash
	}

	err := h.withPeppered(plain, func(input []byte) error {
		return bcrypt.CompareHashAndPassword(hash.Value, input)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("%w: %v", ErrPasswordInvalidHash, err)
	}
}

func (h *BcryptHasher) NeedsRehash(hash PasswordHash) bool {
	if hash.Algorithm != AlgorithmBcrypt {
		return true
	}
	cost, err := bcrypt.Cost(hash.Value)
	if err != nil || cost < h.cost {
		return true
	}
	return h.maxAge > 0 && !hash.CreatedAt.IsZero() && h.now().Sub(hash.CreatedAt) > h.maxAge
}

// withPeppered passes password+pepper to fn and zeroes the buffer after.
func (h *BcryptHasher) withPeppered(plain []byte, fn func([]byte) error) error {
	buf := make([]byte, 0, len(plain)+len(h.pepper))
	buf = append(append(buf, plain...), h.pepper...)
	defer clear(buf)
	return fn(buf)
}
