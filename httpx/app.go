// Package httpx wraps echo for serving and resty for calling the kv HTTP API.
package httpx

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Context = echo.Context

type HandlerFunc = echo.HandlerFunc

type MiddlewareFunc = echo.MiddlewareFunc

// Logger is the leveled logger echo carries; *gommon/log.Logger satisfies it.
type Logger = echo.Logger

// App owns the echo instance routes are registered on.
type App struct{ e *echo.Echo }

// New creates an App with echo's banner and port output disabled.
func New() *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return &App{e: e}
}

func (a *App) Use(mw ...MiddlewareFunc) { a.e.Use(mw...) }

// Logger returns the logger handlers reach through c.Logger().
func (a *App) Logger() Logger { return a.e.Logger }

// Group creates a Router under prefix.
func (a *App) Group(prefix string, mw ...MiddlewareFunc) *Router {
	return NewRouter(a, prefix, mw...)
}

func (a *App) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.GET(path, h, mw...)
}

func (a *App) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.POST(path, h, mw...)
}

func (a *App) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.PUT(path, h, mw...)
}

func (a *App) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.DELETE(path, h, mw...)
}

func (a *App) PATCH(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.PATCH(path, h, mw...)
}

func RecoverMiddleware() MiddlewareFunc { return middleware.Recover() }

func LoggerMiddleware() MiddlewareFunc { return middleware.Logger() }

// BodyLimitMiddleware rejects request bodies larger than limit, e.g. "1M".
func BodyLimitMiddleware(limit string) MiddlewareFunc { return middleware.BodyLimit(limit) }

// CORSMiddleware builds a CORS middleware; nil uses echo's defaults.
func CORSMiddleware(cfg *middleware.CORSConfig) MiddlewareFunc {
	if cfg == nil {
		return middleware.CORSWithConfig(middleware.DefaultCORSConfig)
	}
	return middleware.CORSWithConfig(*cfg)
}

// HTTPError builds an error the server's error handler renders with code.
func HTTPError(code int, message any) error { return echo.NewHTTPError(code, message) }

var DefaultCORSConfig = middleware.DefaultCORSConfig

// HTTPErrorWithCause is HTTPError carrying cause for the server log. The
// client only sees message.
func HTTPErrorWithCause(code int, message any, cause error) error {
	return echo.NewHTTPError(code, message).SetInternal(cause)
}
