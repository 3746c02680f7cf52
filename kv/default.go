package kv

import (
	"os"
	"strconv"
	"sync"

	"github.com/adeilh/go-rakh-kv/cache/redis"
)

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process-wide client, creating a Redis-backed one from
// the environment on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		logger := NewLogger("kv", os.Getenv("KV_LOG_LEVEL"))
		opts, err := RedisOptionsFromEnv()
		if err != nil {
			logger.Errorf("kv: %v; falling back to REDIS_ADDR", err)
		}
		defaultClient = New(redis.NewStore(opts), WithLogger(logger))
	}
	return defaultClient
}

// SetDefault replaces the process-wide client and returns the previous one,
// which the caller owns.
func SetDefault(c *Client) *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultClient
	defaultClient = c
	return prev
}

// RedisOptionsFromEnv reads REDIS_URL, or REDIS_ADDR, REDIS_USERNAME,
// REDIS_PASSWORD and REDIS_DB when no URL is set. On a malformed URL it
// returns the address-based options together with the parse error.
func RedisOptionsFromEnv() (redis.Options, error) {
	fallback := redis.Options{
		Addr:     os.Getenv("REDIS_ADDR"),
		Username: os.Getenv("REDIS_USERNAME"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		fallback.DB = db
	}
	raw := os.Getenv("REDIS_URL")
	if raw == "" {
		return fallback, nil
	}
	opts, err := redis.ParseURL(raw)
	if err != nil {
		return fallback, err
	}
	return opts, nil
}
