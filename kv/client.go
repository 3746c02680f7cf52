// Package kv wraps a cache.Store with the small API most callers need:
// get, set with expiry, delete, and a liveness flag. Every failure is
// logged and also returned, so callers can tell a miss from an outage.
package kv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/adeilh/go-rakh-kv/cache"
)

// ErrInvalidTTL reports an expiry that cannot be represented.
var ErrInvalidTTL = errors.New("kv: invalid expire time")

const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Client is safe for concurrent use.
type Client struct {
	store  cache.Store
	pinger cache.Pinger
	log    Logger

	prefix      string
	opTimeout   time.Duration
	pingTimeout time.Duration

	alive     atomic.Bool
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New wraps store. When the store implements cache.Pinger a background
// probe keeps IsAlive current; otherwise the store is assumed reachable
// until an operation fails with a connection error.
func New(store cache.Store, opts ...Option) *Client {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = NewLogger("kv", "info")
	}

	c := &Client{
		store:       store,
		log:         cfg.Logger,
		prefix:      cfg.KeyPrefix,
		opTimeout:   cfg.OpTimeout,
		pingTimeout: cfg.PingTimeout,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	c.pinger, _ = store.(cache.Pinger)
	if c.pinger == nil {
		c.alive.Store(true)
	}

	if c.pinger != nil && cfg.HealthInterval >= 0 {
		go c.healthLoop(cfg.HealthInterval)
	} else {
		close(c.done)
	}
	return c
}

// Get returns the value stored under key. A missing or expired key yields
// cache.ErrNotFound and is not logged.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, c.abandon("get", key, err)
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	value, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			c.observe(nil)
			return nil, err
		}
		return nil, c.fail("get", key, err)
	}
	c.observe(nil)
	return value, nil
}

// GetString is Get for string values.
func (c *Client) GetString(ctx context.Context, key string) (string, error) {
	value, err := c.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Set stores value under key for ttl. A ttl <= 0 stores it without expiry.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.CtxErr(ctx); err != nil {
		return c.abandon("set", key, err)
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Set(ctx, c.key(key), value, ttl); err != nil {
		return c.fail("set", key, err)
	}
	c.observe(nil)
	return nil
}

// SetString is Set for string values.
func (c *Client) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.Set(ctx, key, []byte(value), ttl)
}

// SetSeconds stores value with an expiry given in whole seconds, the way
// SET key value EX seconds does.
// Seconds past the range of time.Duration yield ErrInvalidTTL.
func (c *Client) SetSeconds(ctx context.Context, key, value string, seconds int) error {
	if int64(seconds) > maxTTLSeconds {
		return c.fail("set", key, fmt.Errorf("%w: %d seconds", ErrInvalidTTL, seconds))
	}
	return c.Set(ctx, key, []byte(value), time.Duration(seconds)*time.Second)
}

// Del removes key. Removing a key that does not exist is not an error.
func (c *Client) Del(ctx context.Context, key string) error {
	if err := c.Delete(ctx, key); err != nil && !errors.Is(err, cache.ErrNotFound) {
		return err
	}
	return nil
}

// Delete removes key and reports cache.ErrNotFound when it was absent,
// matching the cache.Store contract.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := cache.CtxErr(ctx); err != nil {
		return c.abandon("del", key, err)
	}
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	if err := c.store.Delete(ctx, c.key(key)); err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			c.observe(nil)
			return err
		}
		return c.fail("del", key, err)
	}
	c.observe(nil)
	return nil
}

// IsAlive reports the last observed connectivity of the store. It never
// blocks.
func (c *Client) IsAlive() bool {
	return c.alive.Load()
}

// Ping probes the store now and updates IsAlive.
func (c *Client) Ping(ctx context.Context) error {
	if c.pinger == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.pingTimeout)
	defer cancel()

	err := c.pinger.Ping(ctx)
	c.setAlive(err == nil, err)
	return err
}

// Close stops the health probe and closes the store when it is an
// io.Closer. It is safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		<-c.done
		if closer, ok := c.store.(io.Closer); ok {
			err = closer.Close()
		}
		c.alive.Store(false)
	})
	return err
}

func (c *Client) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + key
}

func (c *Client) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.opTimeout <= 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *Client) fail(op, key string, err error) error {
	wrapped := c.abandon(op, key, err)
	c.observe(err)
	return wrapped
}

// abandon logs and wraps err without touching the liveness flag. It is
// used when the caller's context ended before the store was contacted.
func (c *Client) abandon(op, key string, err error) error {
	c.log.Errorf("kv: %s %s: %v", op, strconv.Quote(key), err)
	return fmt.Errorf("kv: %s %s: %w", op, strconv.Quote(key), err)
}

// observe feeds operation outcomes into the liveness flag. Only connection
// failures and timeouts mark the store down; a successful round-trip marks
// it up.
func (c *Client) observe(err error) {
	if err == nil {
		c.setAlive(true, nil)
		return
	}
	if isConnError(err) {
		c.setAlive(false, err)
	}
}

func (c *Client) setAlive(alive bool, cause error) {
	if c.alive.Swap(alive) == alive {
		return
	}
	if alive {
		c.log.Infof("kv: store reachable")
		return
	}
	c.log.Warnf("kv: store unreachable: %v", cause)
}

func (c *Client) healthLoop(interval time.Duration) {
	defer close(c.done)
	_ = c.Ping(context.Background())
	if interval == 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			_ = c.Ping(context.Background())
		}
	}
}

func isConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
