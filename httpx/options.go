package httpx

import (
	"time"

	"github.com/labstack/echo/v4/middleware"
)

// Validator runs before route handlers; a non-nil error ends the request.
type Validator func(Context) error

type serverConfig struct {
	address      string
	readTimeout  time.Duration
	writeTimeout time.Duration
	shutdown     time.Duration
	bodyLimit    string
	logger       Logger
	middleware   []MiddlewareFunc
	errorHandler func(error, Context)
	validators   []Validator
	cors         *middleware.CORSConfig
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		address:      ":8080",
		readTimeout:  15 * time.Second,
		writeTimeout: 15 * time.Second,
		shutdown:     5 * time.Second,
		middleware:   []MiddlewareFunc{RecoverMiddleware(), LoggerMiddleware()},
		errorHandler: jsonErrorHandler,
	}
}

type ServerOption func(*serverConfig)

func WithAddress(addr string) ServerOption {
	return func(c *serverConfig) {
		if addr != "" {
			c.address = addr
		}
	}
}

// WithTimeouts sets the read and write timeouts; zero keeps the default.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(c *serverConfig) {
		if read > 0 {
			c.readTimeout = read
		}
		if write > 0 {
			c.writeTimeout = write
		}
	}
}

// WithShutdownTimeout bounds how long Start waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) {
		if d > 0 {
			c.shutdown = d
		}
	}
}

// WithBodyLimit caps request bodies, e.g. "4M". Empty disables the check.
func WithBodyLimit(limit string) ServerOption {
	return func(c *serverConfig) { c.bodyLimit = limit }
}

// WithLogger replaces echo's logger, e.g. with kv.NewLogger.
func WithLogger(l Logger) ServerOption {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMiddlewares replaces the default recover and request-log stack.
func WithMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(c *serverConfig) { c.middleware = append([]MiddlewareFunc(nil), mw...) }
}

func AppendMiddlewares(mw ...MiddlewareFunc) ServerOption {
	return func(c *serverConfig) { c.middleware = append(c.middleware, mw...) }
}

func WithErrorHandler(handler func(error, Context)) ServerOption {
	return func(c *serverConfig) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

func WithValidators(v ...Validator) ServerOption {
	return func(c *serverConfig) { c.validators = append(c.validators, v...) }
}

// WithCORS enables CORS; nil uses echo's default config.
func WithCORS(cfg *middleware.CORSConfig) ServerOption {
	return func(c *serverConfig) {
		if cfg == nil {
			def := middleware.DefaultCORSConfig
			cfg = &def
		}
		c.cors = cfg
	}
}
