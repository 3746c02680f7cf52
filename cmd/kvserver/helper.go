package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/adeilh/go-rakh-kv/api"
	"github.com/adeilh/go-rakh-kv/auth"
	"github.com/adeilh/go-rakh-kv/cache"
	"github.com/adeilh/go-rakh-kv/cache/bolt"
	"github.com/adeilh/go-rakh-kv/cache/memory"
	pgcache "github.com/adeilh/go-rakh-kv/cache/postgres"
	"github.com/adeilh/go-rakh-kv/cache/redis"
	"github.com/adeilh/go-rakh-kv/cache/remote"
	"github.com/adeilh/go-rakh-kv/config"
	"github.com/adeilh/go-rakh-kv/db/sql/postgres"
	"github.com/adeilh/go-rakh-kv/httpx"
	"github.com/adeilh/go-rakh-kv/kv"
)

const purgeInterval = time.Minute

// purger is implemented by backends that keep expired entries on disk.
type purger func(ctx context.Context) (int64, error)

// resources groups everything buildService opened so main can release it.
type resources struct {
	client *kv.Client
	db     *sql.DB
	purge  purger
}

func (r *resources) Close() error {
	var err error
	if r.client != nil {
		err = r.client.Close()
	}
	if r.db != nil {
		if cerr := r.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// openStore builds the cache.Store named by cfg.Backend. db is the shared
// Postgres handle, nil unless postgres is in use.
func openStore(cfg config.Config, db *sql.DB) (cache.Store, purger, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := cfg.Redis.RedisOptions()
		if err != nil {
			return nil, nil, err
		}
		return redis.NewStore(opts), nil, nil

	case config.BackendMemory:
		return memory.NewStore(memory.Options{
			Shards:          cfg.Memory.Shards,
			CleanupInterval: cfg.Memory.CleanupInterval,
		}), nil, nil

	case config.BackendBolt:
		st, err := bolt.Open(cfg.Bolt.Path, bolt.Options{Bucket: cfg.Bolt.Bucket})
		if err != nil {
			return nil, nil, err
		}
		return st, func(ctx context.Context) (int64, error) {
			n, err := st.PurgeExpired(ctx)
			return int64(n), err
		}, nil

	case config.BackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("postgres backend without a database handle")
		}
		st := pgcache.NewStore(db)
		return st, st.PurgeExpired, nil

	case config.BackendRemote:
		return remote.NewStore(remote.Options{
			BaseURL: cfg.Remote.URL,
			Token:   cfg.Remote.Token,
			Timeout: cfg.Remote.Timeout,
			Retries: cfg.Remote.Retries,
		}), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
}

// openDatabase connects and migrates Postgres when the backend or the user
// repository needs it.
func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.Backend != config.BackendPostgres && !cfg.Postgres.Users {
		return nil, nil
	}
	db, err := postgres.Open(ctx, postgres.WithDSN(cfg.Postgres.DSN), postgres.WithApplicationName("rakhkv"))
	if err != nil {
		return nil, err
	}
	var statements []string
	if cfg.Backend == config.BackendPostgres {
		statements = append(statements, pgcache.Schema...)
	}
	if cfg.Postgres.Users {
		statements = append(statements, postgres.UsersSchema...)
	}
	if err := postgres.ApplyMigrations(ctx, db, statements...); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// buildService opens the backend and returns the resources plus a server
// with every route registered.
func buildService(ctx context.Context, cfg config.Config, logger *log.Logger) (*resources, *httpx.Server, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	res := &resources{db: db}

	store, purge, err := openStore(cfg, db)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	res.purge = purge
	res.client = kv.New(store,
		kv.WithLogger(logger),
		kv.WithKeyPrefix(cfg.KV.KeyPrefix),
		kv.WithOpTimeout(cfg.KV.OpTimeout),
		kv.WithHealthInterval(cfg.KV.HealthInterval),
	)

	managerCfg := auth.ManagerConfig{
		Cache: res.client,
		SessionOptions: auth.SessionStoreOptions{
			Prefix:     cfg.Session.Prefix,
			DefaultTTL: cfg.Session.TTL,
		},
	}
	if cfg.Postgres.Users {
		managerCfg.UserRepository = postgres.NewUserRepository(db)
	}
	if cfg.Session.BcryptCost >= bcrypt.MinCost {
		managerCfg.PasswordHasher = auth.NewBcryptHasher(auth.WithBcryptCost(cfg.Session.BcryptCost))
	}
	manager, err := auth.NewManager(managerCfg)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("auth manager: %w", err)
	}

	var apiOpts []api.Option
	if cfg.Session.Sliding {
		ttl := cfg.Session.TTL
		if ttl <= 0 {
			ttl = auth.DefaultSessionTTL
		}
		apiOpts = append(apiOpts, api.WithSlidingSessions(ttl, nil))
	}
	handler, err := api.New(res.client, manager, apiOpts...)
	if err != nil {
		_ = res.Close()
		return nil, nil, err
	}

	server := httpx.NewServer(
		httpx.WithAddress(cfg.HTTP.Address),
		httpx.WithTimeouts(cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout),
		httpx.WithBodyLimit(cfg.HTTP.BodyLimit),
		httpx.WithLogger(logger),
	)
	server.RegisterRoutes(handler.Register)
	return res, server, nil
}

// runPurge removes expired entries every interval until ctx is done.
func runPurge(ctx context.Context, purge purger, interval time.Duration, logger *log.Logger) {
	if purge == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purge(ctx)
			if err != nil {
				logger.Warnf("purge expired: %v", err)
				continue
			}
			if n > 0 {
				logger.Debugf("purged %d expired entries", n)
			}
		}
	}
}
