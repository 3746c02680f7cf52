package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherHashAndCompare(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	hash, err := h.Hash(ctx, []byte("correct horse"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash.Algorithm != AlgorithmBcrypt || hash.Cost != bcrypt.MinCost {
		t.Fatalf("unexpected hash metadata: %+v", hash)
	}

	if err := h.Compare(ctx, []byte("correct horse"), hash); err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if err := h.Compare(ctx, []byte("wrong horse"), hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
}

func TestBcryptHasherPepper(t *testing.T) {
	ctx := context.Background()
	peppered := NewBcryptHasher(WithBcryptCost(bcrypt.MinCost), WithBcryptPepper([]byte("server-secret")))

	hash, err := peppered.Hash(ctx, []byte("password1"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := peppered.Compare(ctx, []byte("password1"), hash); err != nil {
		t.Fatalf("Compare() with pepper error = %v", err)
	}
	if err := newTestHasher().Compare(ctx, []byte("password1"), hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch without pepper, got %v", err)
	}
}

func TestBcryptHasherLengthLimits(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	if _, err := h.Hash(ctx, []byte("short")); !errors.Is(err, ErrPasswordTooShort) {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}
	if _, err := h.Hash(ctx, []byte(strings.Repeat("a", 73))); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestBcryptHasherCompareInvalidHash(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	if err := h.Compare(ctx, []byte("whatever1"), PasswordHash{Algorithm: "md5", Value: []byte("x")}); !errors.Is(err, ErrPasswordInvalidAlgorithm) {
		t.Fatalf("expected ErrPasswordInvalidAlgorithm, got %v", err)
	}
	if err := h.Compare(ctx, []byte("whatever1"), PasswordHash{Algorithm: AlgorithmBcrypt}); !errors.Is(err, ErrPasswordInvalidHash) {
		t.Fatalf("expected ErrPasswordInvalidHash, got %v", err)
	}
}

func TestBcryptHasherNeedsRehash(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	weak := NewBcryptHasher(WithBcryptCost(bcrypt.MinCost), WithBcryptNow(func() time.Time { return now }))

	hash, err := weak.Hash(ctx, []byte("password1"))
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if weak.NeedsRehash(hash) {
		t.Fatalf("fresh hash should not need rehash")
	}

	stronger := NewBcryptHasher(WithBcryptCost(bcrypt.MinCost + 1))
	if !stronger.NeedsRehash(hash) {
		t.Fatalf("lower cost hash should need rehash")
	}

	aging := NewBcryptHasher(
		WithBcryptCost(bcrypt.MinCost),
		WithBcryptMaxAge(time.Hour),
		WithBcryptNow(func() time.Time { return now.Add(2 * time.Hour) }),
	)
	if !aging.NeedsRehash(hash) {
		t.Fatalf("old hash should need rehash")
	}
}

func TestBcryptHasherContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestHasher().Hash(ctx, []byte("password1")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
