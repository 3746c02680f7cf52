package httpx

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

type RouteRegistrar func(*App)

// Server runs an App on a TCP address with graceful shutdown.
type Server struct {
	app      *App
	address  string
	shutdown time.Duration
	srv      *http.Server
}

func NewServer(opts ...ServerOption) *Server {
	cfg := defaultServerConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	app := New()
	e := app.e
	if cfg.logger != nil {
		e.Logger = cfg.logger
	}
	e.HTTPErrorHandler = cfg.errorHandler
	e.Use(cfg.middleware...)
	if cfg.cors != nil {
		e.Use(CORSMiddleware(cfg.cors))
	}
	if cfg.bodyLimit != "" {
		e.Use(BodyLimitMiddleware(cfg.bodyLimit))
	}
	if len(cfg.validators) > 0 {
		e.Use(validatorMiddleware(cfg.validators))
	}

	return &Server{
		app:      app,
		address:  cfg.address,
		shutdown: cfg.shutdown,
		srv: &http.Server{
			Handler:      e,
			ReadTimeout:  cfg.readTimeout,
			WriteTimeout: cfg.writeTimeout,
		},
	}
}

func (s *Server) App() *App { return s.app }

func (s *Server) RegisterRoutes(reg RouteRegistrar) {
	if reg != nil {
		reg(s.app)
	}
}

func (s *Server) Handler() http.Handler { return s.app.e }

// Start listens on the configured address and serves until ctx is done,
// then drains in-flight requests. It returns ctx.Err() after a requested
// shutdown and the listen or serve error otherwise.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("httpx: listen %s: %w", s.address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := s.app.Logger()
	log.Infof("httpx: serving on %s", ln.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("httpx: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("httpx: shutdown: %v", err)
	}
	return ctx.Err()
}

// jsonErrorHandler renders errors as {"error": msg}. Anything that is not
// an *echo.HTTPError is a 500 with a generic message; 5xx are logged with
// their cause.
func jsonErrorHandler(err error, c echo.Context) {
	code, msg := StatusInternalError, http.StatusText(StatusInternalError)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		case nil:
			msg = http.StatusText(code)
		default:
			msg = fmt.Sprint(m)
		}
	}
	if code >= StatusInternalError {
		req := c.Request()
		c.Logger().Errorf("httpx: %s %s: %v", req.Method, req.URL.Path, err)
	}

	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]string{"error": msg})
}

func validatorMiddleware(validators []Validator) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			for _, v := range validators {
				if v == nil {
					continue
				}
				if err := v(c); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}
