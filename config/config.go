// Package config loads kvserver settings from a TOML file, then applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/adeilh/go-rakh-kv/cache/redis"
)

// Backend selects the cache.Store the server wraps.
type Backend string

const (
	BackendRedis    Backend = "redis"
	BackendMemory   Backend = "memory"
	BackendBolt     Backend = "bolt"
	BackendPostgres Backend = "postgres"
	BackendRemote   Backend = "remote"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Backend  Backend        `toml:"backend"`
	KV       KVConfig       `toml:"kv"`
	Redis    RedisConfig    `toml:"redis"`
	Memory   MemoryConfig   `toml:"memory"`
	Bolt     BoltConfig     `toml:"bolt"`
	Postgres PostgresConfig `toml:"postgres"`
	Remote   RemoteConfig   `toml:"remote"`
	HTTP     HTTPConfig     `toml:"http"`
	Log      LogConfig      `toml:"log"`
	Session  SessionConfig  `toml:"session"`
}

type KVConfig struct {
	KeyPrefix      string        `toml:"key_prefix"`
	OpTimeout      time.Duration `toml:"op_timeout"`
	HealthInterval time.Duration `toml:"health_interval"`
}

type RedisConfig struct {
	// URL takes precedence over the individual fields when set.
	URL         string        `toml:"url"`
	Addr        string        `toml:"addr"`
	Username    string        `toml:"username"`
	Password    string        `toml:"password"`
	DB          int           `toml:"db"`
	PoolSize    int           `toml:"pool_size"`
	DialTimeout time.Duration `toml:"dial_timeout"`
}

type MemoryConfig struct {
	Shards          int           `toml:"shards"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`
}

type BoltConfig struct {
	Path   string `toml:"path"`
	Bucket string `toml:"bucket"`
}

type PostgresConfig struct {
	DSN string `toml:"dsn"`
	// Users stores accounts in Postgres instead of process memory.
	Users bool `toml:"users"`
}

type RemoteConfig struct {
	URL     string        `toml:"url"`
	Token   string        `toml:"token"`
	Timeout time.Duration `toml:"timeout"`
	Retries int           `toml:"retries"`
}

type HTTPConfig struct {
	Address      string        `toml:"address"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	BodyLimit    string        `toml:"body_limit"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type SessionConfig struct {
	Prefix string        `toml:"prefix"`
	TTL    time.Duration `toml:"ttl"`
	// BcryptCost of 0 keeps the auth package default.
	BcryptCost int `toml:"bcrypt_cost"`
	// Sliding renews a session on use once half of TTL has passed.
	Sliding bool `toml:"sliding"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		Backend: BackendRedis,
		KV: KVConfig{
			OpTimeout:      2 * time.Second,
			HealthInterval: 5 * time.Second,
		},
		Redis: RedisConfig{Addr: "127.0.0.1:6379"},
		Bolt:  BoltConfig{Path: "rakhkv.db"},
		HTTP: HTTPConfig{
			Address:      ":5000",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			BodyLimit:    "4M",
		},
		Log:     LogConfig{Level: "info"},
		Session: SessionConfig{Prefix: "auth", TTL: 24 * time.Hour},
	}
}

// Load reads path over Default, applies the process environment and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return Config{}, fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup has the shape of
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}

	var backend string
	str("RAKHKV_BACKEND", &backend)
	if backend != "" {
		c.Backend = Backend(strings.ToLower(backend))
	}
	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_USERNAME", &c.Redis.Username)
	str("REDIS_PASSWORD", &c.Redis.Password)
	if v, ok := lookup("REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: REDIS_DB %q: %v", ErrInvalid, v, err)
		}
		c.Redis.DB = db
	}
	str("RAKHKV_BOLT_PATH", &c.Bolt.Path)
	str("RAKHKV_POSTGRES_DSN", &c.Postgres.DSN)
	str("RAKHKV_REMOTE_URL", &c.Remote.URL)
	str("RAKHKV_REMOTE_TOKEN", &c.Remote.Token)
	str("RAKHKV_HTTP_ADDR", &c.HTTP.Address)
	str("RAKHKV_LOG_LEVEL", &c.Log.Level)
	return nil
}

func (c Config) Validate() error {
	var problems []string
	switch c.Backend {
	case BackendRedis:
		if c.Redis.URL == "" && c.Redis.Addr == "" {
			problems = append(problems, "redis.addr or redis.url is required")
		}
		if c.Redis.URL != "" {
			if _, err := redis.ParseURL(c.Redis.URL); err != nil {
				problems = append(problems, fmt.Sprintf("redis.url: %v", err))
			}
		}
	case BackendMemory:
	case BackendBolt:
		if c.Bolt.Path == "" {
			problems = append(problems, "bolt.path is required")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			problems = append(problems, "postgres.dsn is required")
		}
	case BackendRemote:
		if c.Remote.URL == "" {
			problems = append(problems, "remote.url is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if c.Postgres.Users && c.Postgres.DSN == "" {
		problems = append(problems, "postgres.dsn is required when postgres.users is set")
	}
	if c.HTTP.Address == "" {
		problems = append(problems, "http.address is required")
	}
	if c.Session.TTL < 0 {
		problems = append(problems, "session.ttl must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error", "off":
	default:
		problems = append(problems, fmt.Sprintf("unknown log.level %q", c.Log.Level))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// RedisOptions converts the redis section. URL wins over Addr.
func (c RedisConfig) RedisOptions() (redis.Options, error) {
	if c.URL != "" {
		opts, err := redis.ParseURL(c.URL)
		if err != nil {
			return redis.Options{}, err
		}
		if c.PoolSize > 0 {
			opts.PoolSize = c.PoolSize
		}
		if c.DialTimeout > 0 {
			opts.DialTimeout = c.DialTimeout
		}
		return opts, nil
	}
	return redis.Options{
		Addr:        c.Addr,
		Username:    c.Username,
		Password:    c.Password,
		DB:          c.DB,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	}, nil
}
