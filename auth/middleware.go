package auth

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// SessionLookup resolves a raw token into a live session. SessionStore
// satisfies it.
type SessionLookup interface {
	Get(ctx context.Context, id string) (SessionToken, error)
}

// Middleware rejects requests without a live session token and stores the
// session in the request context for SessionFromContext.
type Middleware struct {
	sessions SessionLookup
	extract  TokenExtractor
	skip     func(*http.Request) bool
	onError  func(http.ResponseWriter, *http.Request, error)

	slide time.Duration
	now   func() time.Time
}

type sessionToucher interface {
	Touch(ctx context.Context, id string, expiresAt time.Time) error
}

type MiddlewareOption func(*Middleware)

// WithTokenExtractor replaces DefaultTokenExtractor.
func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(m *Middleware) {
		if extractor != nil {
			m.extract = extractor
		}
	}
}

// WithSkipper lets requests for which skip returns true through unchecked.
func WithSkipper(skip func(*http.Request) bool) MiddlewareOption {
	return func(m *Middleware) {
		if skip != nil {
			m.skip = skip
		}
	}
}

// WithErrorHandler replaces the plain-text error response.
func WithErrorHandler(handler func(http.ResponseWriter, *http.Request, error)) MiddlewareOption {
	return func(m *Middleware) {
		if handler != nil {
			m.onError = handler
		}
	}
}

// WithSlidingExpiry pushes a session's expiry to now+ttl once less than
// half of ttl remains. It needs a lookup with a Touch method; a failed
// renewal leaves the current expiry in place and does not fail the request.
func WithSlidingExpiry(ttl time.Duration, now func() time.Time) MiddlewareOption {
	return func(m *Middleware) {
		if ttl > 0 {
			m.slide = ttl
		}
		if now != nil {
			m.now = now
		}
	}
}

func NewMiddleware(sessions SessionLookup, opts ...MiddlewareOption) (*Middleware, error) {
	if sessions == nil {
		return nil, errors.New("auth: middleware requires a session lookup")
	}
	m := &Middleware{
		sessions: sessions,
		extract:  DefaultTokenExtractor(),
		skip:     func(*http.Request) bool { return false },
		now:      time.Now,
		onError: func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), StatusForError(err))
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r) {
			next.ServeHTTP(w, r)
			return
		}
		session, err := m.authenticate(r)
		if err != nil {
			m.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), session)))
	})
}

func (m *Middleware) authenticate(r *http.Request) (SessionToken, error) {
	raw, err := m.extract(r)
	if err != nil {
		return nil, err
	}
	session, err := m.sessions.Get(r.Context(), raw)
	if err != nil {
		return nil, err
	}
	m.renew(r.Context(), session)
	return session, nil
}

func (m *Middleware) renew(ctx context.Context, session SessionToken) {
	toucher, ok := m.sessions.(sessionToucher)
	if m.slide <= 0 || !ok {
		return
	}
	desc := session.Descriptor()
	now := m.now()
	if desc.ExpiresAt.Sub(now) >= m.slide/2 {
		return
	}
	_ = toucher.Touch(ctx, desc.ID, now.Add(m.slide))
}

// StatusForError maps an authentication failure onto an HTTP status:
// caller mistakes are 401, store timeouts 504, other store failures 503.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrTokenNotFound), errors.Is(err, ErrTokenInvalidInput),
		errors.Is(err, ErrSessionExpired), errors.Is(err, ErrSessionInvalidDescriptor),
		errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserNotFound):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}

type sessionKey struct{}

func ContextWithSession(ctx context.Context, session SessionToken) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

func SessionFromContext(ctx context.Context) (SessionToken, bool) {
	session, ok := ctx.Value(sessionKey{}).(SessionToken)
	return session, ok
}
