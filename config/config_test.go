package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func envMap(values map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
backend = "bolt"

[kv]
key_prefix = "app:"
op_timeout = "750ms"
health_interval = "10s"

[bolt]
path = "/var/lib/rakhkv/data.db"
bucket = "entries"

[http]
address = ":9000"
body_limit = "1M"

[session]
ttl = "2h"
bcrypt_cost = 10
sliding = true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendBolt {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.KV.KeyPrefix != "app:" || cfg.KV.OpTimeout != 750*time.Millisecond || cfg.KV.HealthInterval != 10*time.Second {
		t.Fatalf("unexpected kv section: %+v", cfg.KV)
	}
	if cfg.Bolt.Path != "/var/lib/rakhkv/data.db" || cfg.Bolt.Bucket != "entries" {
		t.Fatalf("unexpected bolt section: %+v", cfg.Bolt)
	}
	if cfg.HTTP.Address != ":9000" || cfg.HTTP.BodyLimit != "1M" {
		t.Fatalf("unexpected http section: %+v", cfg.HTTP)
	}
	if cfg.HTTP.ReadTimeout != 15*time.Second {
		t.Fatalf("defaults should survive partial sections, got %v", cfg.HTTP.ReadTimeout)
	}
	if cfg.Session.TTL != 2*time.Hour || cfg.Session.BcryptCost != 10 || cfg.Session.Prefix != "auth" || !cfg.Session.Sliding {
		t.Fatalf("unexpected session section: %+v", cfg.Session)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	for _, name := range []string{"RAKHKV_BACKEND", "REDIS_URL", "REDIS_ADDR", "REDIS_DB", "RAKHKV_HTTP_ADDR", "RAKHKV_LOG_LEVEL"} {
		t.Setenv(name, "")
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendRedis || cfg.Redis.Addr != "127.0.0.1:6379" || cfg.HTTP.Address != ":5000" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Fatalf("session ttl = %v", cfg.Session.TTL)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "backend = \"memory\"\n[redis]\nadress = \"typo:6379\"\n")
	_, err := Load(path)
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "redis.adress") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadBadSyntax(t *testing.T) {
	path := writeFile(t, "backend = \n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"RAKHKV_BACKEND":      "Postgres",
		"RAKHKV_POSTGRES_DSN": "postgres://u:p@db/kv",
		"REDIS_ADDR":          "cache:6380",
		"REDIS_PASSWORD":      "secret",
		"REDIS_DB":            "3",
		"RAKHKV_HTTP_ADDR":    ":8081",
		"RAKHKV_LOG_LEVEL":    "",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Backend != BackendPostgres || cfg.Postgres.DSN != "postgres://u:p@db/kv" {
		t.Fatalf("unexpected backend: %+v", cfg)
	}
	if cfg.Redis.Addr != "cache:6380" || cfg.Redis.Password != "secret" || cfg.Redis.DB != 3 {
		t.Fatalf("unexpected redis section: %+v", cfg.Redis)
	}
	if cfg.HTTP.Address != ":8081" {
		t.Fatalf("http address = %q", cfg.HTTP.Address)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("empty env should not override, got %q", cfg.Log.Level)
	}

	if err := cfg.ApplyEnv(envMap(map[string]string{"REDIS_DB": "one"})); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected invalid REDIS_DB error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate func(*Config)
		want   string
	}{
		"unknown backend": {func(c *Config) { c.Backend = "etcd" }, `unknown backend "etcd"`},
		"bolt path":       {func(c *Config) { c.Backend = BackendBolt; c.Bolt.Path = "" }, "bolt.path"},
		"postgres dsn":    {func(c *Config) { c.Backend = BackendPostgres }, "postgres.dsn"},
		"remote url":      {func(c *Config) { c.Backend = BackendRemote }, "remote.url"},
		"users dsn":       {func(c *Config) { c.Postgres.Users = true }, "postgres.users"},
		"redis url":       {func(c *Config) { c.Redis.URL = "http://nope" }, "redis.url"},
		"http address":    {func(c *Config) { c.HTTP.Address = "" }, "http.address"},
		"session ttl":     {func(c *Config) { c.Session.TTL = -time.Second }, "session.ttl"},
		"log level":       {func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	memory := Default()
	memory.Backend = BackendMemory
	if err := memory.Validate(); err != nil {
		t.Fatalf("memory config invalid: %v", err)
	}
}

func TestRedisOptions(t *testing.T) {
	opts, err := RedisConfig{URL: "redis://:pw@example.com:6390/2", PoolSize: 16}.RedisOptions()
	if err != nil {
		t.Fatalf("redis options: %v", err)
	}
	if opts.Addr != "example.com:6390" || opts.Password != "pw" || opts.DB != 2 || opts.PoolSize != 16 {
		t.Fatalf("unexpected options from url: %+v", opts)
	}

	opts, err = RedisConfig{Addr: "localhost:6379", DB: 1}.RedisOptions()
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 1 {
		t.Fatalf("unexpected options from addr: %+v err=%v", opts, err)
	}

	if _, err := (RedisConfig{URL: "::bad"}).RedisOptions(); err == nil {
		t.Fatalf("expected url error")
	}
}
