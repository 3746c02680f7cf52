// Package remote is a cache.Store backed by another kvserver's /kv API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adeilh/go-rakh-kv/auth"
	"github.com/adeilh/go-rakh-kv/cache"
	"github.com/adeilh/go-rakh-kv/httpx"
)

// ErrStoreDown is returned by Ping when the server reports its own store
// as unreachable.
var ErrStoreDown = errors.New("remote: server store unavailable")

type Options struct {
	BaseURL string
	// Token is a session token from /connect, sent on /kv requests.
	Token   string
	Timeout time.Duration
	Retries int
}

type Store struct {
	client *httpx.Client
	token  string
}

func NewStore(opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	client := httpx.NewClient(
		httpx.WithBaseURL(opts.BaseURL),
		httpx.WithClientTimeout(opts.Timeout),
		httpx.WithRetries(opts.Retries, 0),
	)
	return &Store{client: client, token: opts.Token}
}

type entry struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

type putRequest struct {
	Value      []byte `json:"value"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

func (s *Store) opts(key string) []httpx.RequestOption {
	return []httpx.RequestOption{
		httpx.WithRequestHeaders(map[string]string{auth.TokenHeader: s.token}),
		httpx.WithPathParams(map[string]string{"key": key}),
	}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.CtxErr(ctx); err != nil {
		return nil, err
	}
	var out entry
	if _, err := s.client.Get(ctx, "/kv/{key}", &out, s.opts(key)...); err != nil {
		return nil, translate("get", err)
	}
	return out.Value, nil
}

// Set rounds ttl up to whole seconds; the API takes ttl_seconds.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	var seconds int64
	if ttl > 0 {
		seconds = int64((ttl + time.Second - 1) / time.Second)
	}
	body := putRequest{Value: value, TTLSeconds: seconds}
	if _, err := s.client.Put(ctx, "/kv/{key}", body, nil, s.opts(key)...); err != nil {
		return translate("set", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := cache.CtxErr(ctx); err != nil {
		return err
	}
	if _, err := s.client.Delete(ctx, "/kv/{key}", nil, s.opts(key)...); err != nil {
		return translate("delete", err)
	}
	return nil
}

// Ping succeeds only when the server answers /status with a live store.
func (s *Store) Ping(ctx context.Context) error {
	var out struct {
		Store bool `json:"store"`
	}
	_, err := s.client.Get(ctx, "/status", &out)
	if httpx.StatusCode(err) == httpx.StatusServiceUnavailable {
		return ErrStoreDown
	}
	if err != nil {
		return fmt.Errorf("remote: ping: %w", err)
	}
	if !out.Store {
		return ErrStoreDown
	}
	return nil
}

func translate(op string, err error) error {
	if httpx.StatusCode(err) == httpx.StatusNotFound {
		return cache.ErrNotFound
	}
	return fmt.Errorf("remote: %s: %w", op, err)
}
