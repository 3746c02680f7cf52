// Package api exposes a kv.Client and token sessions over HTTP:
//
//	GET    /status       store liveness
//	GET    /kv/:key      read a value          (token)
//	PUT    /kv/:key      write a value         (token)
//	DELETE /kv/:key      remove a value        (token)
//	POST   /users        register
//	GET    /connect      Basic auth -> token
//	GET    /disconnect   revoke token          (token)
//	GET    /users/me     current user          (token)
//
// The token travels in the X-Token header or as a bearer token.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/adeilh/go-rakh-kv/auth"
	"github.com/adeilh/go-rakh-kv/cache"
	"github.com/adeilh/go-rakh-kv/httpx"
	"github.com/adeilh/go-rakh-kv/kv"
)

// MaxTTL bounds ttl_seconds accepted by PUT /kv/:key.
const MaxTTL = 365 * 24 * time.Hour

type Handler struct {
	store    *kv.Client
	manager  *auth.Manager
	sessions *auth.Middleware
	reserved string
}

// Option configures a Handler.
type Option func(*handlerConfig)

type handlerConfig struct {
	slide time.Duration
	now   func() time.Time
}

// WithSlidingSessions renews a session to ttl from now when it is used
// with less than half of ttl left.
func WithSlidingSessions(ttl time.Duration, now func() time.Time) Option {
	return func(c *handlerConfig) { c.slide, c.now = ttl, now }
}

func New(store *kv.Client, manager *auth.Manager, opts ...Option) (*Handler, error) {
	if store == nil || manager == nil {
		return nil, errors.New("api: store and auth manager are required")
	}
	var cfg handlerConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	mw, err := auth.NewMiddleware(manager.Sessions(),
		auth.WithErrorHandler(writeAuthError),
		auth.WithSlidingExpiry(cfg.slide, cfg.now),
	)
	if err != nil {
		return nil, err
	}
	return &Handler{
		store:    store,
		manager:  manager,
		sessions: mw,
		reserved: manager.SessionKeyPrefix(),
	}, nil
}

// Register adds every route to a. It has the httpx.RouteRegistrar shape.
func (h *Handler) Register(a *httpx.App) {
	authed := httpx.AuthMiddleware(h.sessions)

	a.GET("/status", h.status)
	a.POST("/users", h.createUser)
	a.GET("/connect", h.connect)
	a.GET("/disconnect", h.disconnect, authed)
	a.GET("/users/me", h.me, authed)

	httpx.NewRouter(a, "/kv", authed).
		GET("/:key", h.getValue).
		PUT("/:key", h.putValue).
		DELETE("/:key", h.deleteValue)
}

type statusResponse struct {
	Store bool `json:"store"`
}

func (h *Handler) status(c httpx.Context) error {
	alive := h.store.IsAlive()
	code := httpx.StatusOK
	if !alive {
		code = httpx.StatusServiceUnavailable
	}
	return c.JSON(code, statusResponse{Store: alive})
}

// storeError maps a kv.Client failure onto an HTTP error. The client has
// already logged anything that is not a miss.
func storeError(err error) error {
	switch {
	case errors.Is(err, cache.ErrNotFound):
		return httpx.HTTPError(httpx.StatusNotFound, "Not found")
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.HTTPErrorWithCause(httpx.StatusGatewayTimeout, "Store timeout", err)
	default:
		return httpx.HTTPErrorWithCause(httpx.StatusServiceUnavailable, "Store unavailable", err)
	}
}

func writeAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	code := auth.StatusForError(err)
	msg := "Unauthorized"
	if code != httpx.StatusUnauthorized {
		msg = http.StatusText(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// keyParam returns the decoded :key. Echo matches on the raw path when the
// request carries escapes, so the value may still need unescaping.
func keyParam(c httpx.Context) (string, error) {
	raw := c.Param("key")
	key := raw
	if c.Request().URL.RawPath != "" {
		var err error
		if key, err = url.PathUnescape(raw); err != nil {
			return "", httpx.HTTPError(httpx.StatusBadRequest, "Invalid key")
		}
	}
	if strings.TrimSpace(key) == "" {
		return "", httpx.HTTPError(httpx.StatusBadRequest, "Missing key")
	}
	return key, nil
}

func (h *Handler) checkKey(key string) error {
	if h.reserved != "" && strings.HasPrefix(key, h.reserved) {
		return httpx.HTTPError(httpx.StatusForbidden, "Reserved key")
	}
	return nil
}

func sessionFrom(c httpx.Context) (auth.SessionToken, error) {
	session, ok := auth.SessionFromContext(c.Request().Context())
	if !ok {
		return nil, httpx.HTTPError(httpx.StatusUnauthorized, "Unauthorized")
	}
	return session, nil
}
