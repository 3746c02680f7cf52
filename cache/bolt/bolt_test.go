package bolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-rakh-kv/cache"
)

func openTestStore(t *testing.T, now func() time.Time) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kv.db")
	store, err := Open(path, Options{Now: now})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestStoreSetGetDelete(t *testing.T) {
	store, _ := openTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("value"), 0))
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "value", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "k"), cache.ErrNotFound)
}

func TestStoreExpiryAndPurge(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	store, _ := openTestStore(t, clock)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "c", []byte("3"), 0))

	now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, "a")
	require.ErrorIs(t, err, cache.ErrNotFound)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	got, err := store.Get(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, "2", string(got))
}

func TestStoreSurvivesReopen(t *testing.T) {
	store, path := openTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "persist", []byte("yes"), time.Hour))
	require.NoError(t, store.Close())

	reopened, err := Open(path, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "persist")
	require.NoError(t, err)
	require.Equal(t, "yes", string(got))
}

func TestStorePingAfterClose(t *testing.T) {
	store, _ := openTestStore(t, nil)
	ctx := context.Background()

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Close())
	require.ErrorIs(t, store.Ping(ctx), ErrClosed)
	require.ErrorIs(t, store.Set(ctx, "k", []byte("v"), 0), ErrClosed)
}
