package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adeilh/go-rakh-kv/cache"
	pgdb "github.com/adeilh/go-rakh-kv/db/sql/postgres"
	testpg "github.com/adeilh/go-rakh-kv/internal/testutil/postgrescontainer"
)

var setupErr error

func TestMain(m *testing.M) {
	setupErr = testpg.Setup()
	code := m.Run()
	if setupErr == nil {
		if err := testpg.Teardown(); err != nil {
			log.Printf("postgres teardown: %v", err)
		}
	}
	os.Exit(code)
}

func openTestStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	if setupErr != nil {
		t.Skipf("postgres unavailable: %v", setupErr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := pgdb.Open(ctx, pgdb.WithDSN(testpg.DSN()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	statements := append([]string{"DROP TABLE IF EXISTS kv_entries"}, Schema...)
	require.NoError(t, pgdb.ApplyMigrations(ctx, db, statements...))
	return NewStore(db), db
}

func TestStoreSetGetDelete(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v1"), 0))
	require.NoError(t, store.Set(ctx, "k", []byte("v2"), time.Hour))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "k"), cache.ErrNotFound)
	require.NoError(t, store.Ping(ctx))
}

func TestStoreExpiry(t *testing.T) {
	store, _ := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, store.Set(ctx, "c", []byte("3"), time.Minute))

	now = now.Add(2 * time.Minute)

	_, err := store.Get(ctx, "a")
	require.ErrorIs(t, err, cache.ErrNotFound)
	require.ErrorIs(t, store.Delete(ctx, "c"), cache.ErrNotFound)

	many, err := store.GetMany(ctx, []string{"a", "b", "missing"})
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{"b": []byte("2")}, many)

	removed, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)
}

func TestStoreSchemaMissing(t *testing.T) {
	store, db := openTestStore(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "DROP TABLE kv_entries")
	require.NoError(t, err)

	_, err = store.Get(ctx, "k")
	require.True(t, errors.Is(err, ErrSchemaMissing), "got %v", err)
}
