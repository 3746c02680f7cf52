package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adeilh/go-rakh-kv/cache/memory"
	"github.com/adeilh/go-rakh-kv/kv"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	client := kv.New(
		memory.NewStore(memory.Options{CleanupInterval: -1}),
		kv.WithLogger(kv.NewLogger("test", "off")),
		kv.WithHealthInterval(-1),
	)
	t.Cleanup(func() { _ = client.Close() })
	m, err := NewManager(ManagerConfig{Cache: client, PasswordHasher: newTestHasher()})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func TestNewManagerRequiresCache(t *testing.T) {
	if _, err := NewManager(ManagerConfig{}); err == nil {
		t.Fatalf("expected error without cache")
	}
}

func TestManagerConnectLifecycle(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	user, err := m.Register(ctx, "ann@example.com", []byte("password1"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := m.Connect(ctx, "ann@example.com", []byte("wrong-one"), ConnectInfo{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	session, err := m.Connect(ctx, "ann@example.com", []byte("password1"), ConnectInfo{IP: "10.0.0.1", UserAgent: "curl"})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	desc := session.Descriptor()
	if desc.Subject != user.ID || desc.IP != "10.0.0.1" {
		t.Fatalf("unexpected session: %+v", desc)
	}
	if got := desc.ExpiresAt.Sub(desc.IssuedAt); got != DefaultSessionTTL {
		t.Fatalf("session lifetime = %v, want %v", got, DefaultSessionTTL)
	}

	me, err := m.CurrentUser(ctx, desc.ID)
	if err != nil {
		t.Fatalf("CurrentUser() error = %v", err)
	}
	if me.Email != "ann@example.com" {
		t.Fatalf("CurrentUser() = %+v", me)
	}

	if err := m.Disconnect(ctx, desc.ID); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if _, err := m.CurrentUser(ctx, desc.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after disconnect, got %v", err)
	}
	if err := m.Disconnect(ctx, desc.ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired on second disconnect, got %v", err)
	}
}

func TestManagerUsesClock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	client := kv.New(memory.NewStore(memory.Options{CleanupInterval: -1}), kv.WithLogger(kv.NewLogger("test", "off")))
	defer client.Close()

	m, err := NewManager(ManagerConfig{
		Cache:          client,
		PasswordHasher: newTestHasher(),
		SessionOptions: SessionStoreOptions{DefaultTTL: time.Minute},
		Now:            func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	ctx := context.Background()
	if _, err := m.Register(ctx, "clock@example.com", []byte("password1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	session, err := m.Connect(ctx, "clock@example.com", []byte("password1"), ConnectInfo{})
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := m.Sessions().Get(ctx, session.Descriptor().ID); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired once the clock passes expiry, got %v", err)
	}
}
