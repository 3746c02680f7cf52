package httpx

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Route describes one endpoint for RegisterRoutes.
type Route struct {
	Method     string
	Path       string
	Handler    HandlerFunc
	Middleware []MiddlewareFunc
}

func (r Route) complete() bool {
	return r.Method != "" && r.Path != "" && r.Handler != nil
}

// RegisterRoutes mounts routes at the root of a. Routes missing a method,
// path or handler are ignored.
func RegisterRoutes(a *App, routes ...Route) {
	if a == nil {
		return
	}
	root := &Router{g: a.e.Group("")}
	for _, rt := range routes {
		if rt.complete() {
			root.Handle(strings.ToUpper(rt.Method), rt.Path, rt.Handler, rt.Middleware...)
		}
	}
}

// Router registers routes under a shared prefix and middleware stack.
// Methods return the router so registrations can be chained.
type Router struct {
	g *echo.Group
}

func NewRouter(a *App, prefix string, mw ...MiddlewareFunc) *Router {
	if a == nil {
		return &Router{}
	}
	return &Router{g: a.e.Group(prefix, mw...)}
}

func (r *Router) Use(mw ...MiddlewareFunc) *Router {
	if r.g != nil {
		r.g.Use(mw...)
	}
	return r
}

// Handle registers h for method and path. A nil handler is a no-op.
func (r *Router) Handle(method, path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	if r.g != nil && h != nil {
		r.g.Add(method, path, h, mw...)
	}
	return r
}

func (r *Router) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.Handle(http.MethodGet, path, h, mw...)
}

func (r *Router) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.Handle(http.MethodPost, path, h, mw...)
}

func (r *Router) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.Handle(http.MethodPut, path, h, mw...)
}

func (r *Router) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) *Router {
	return r.Handle(http.MethodDelete, path, h, mw...)
}
