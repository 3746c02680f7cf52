package kv

import (
	"strings"
	"time"

	"github.com/labstack/gommon/log"
)

// Logger is the subset of gommon's *log.Logger the client writes to. The
// echo server's logger satisfies it, so both can share one sink.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Options tunes a Client.
type Options struct {
	Logger Logger
	// KeyPrefix is prepended to every key, e.g. "files:".
	KeyPrefix string
	// OpTimeout bounds each call whose context carries no deadline.
	// Zero disables it.
	OpTimeout time.Duration
	// HealthInterval controls the background probe that feeds IsAlive.
	// Zero probes once at startup; a negative value disables the probe.
	HealthInterval time.Duration
	PingTimeout    time.Duration
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		OpTimeout:      2 * time.Second,
		HealthInterval: 5 * time.Second,
		PingTimeout:    time.Second,
	}
}

// NewLogger returns a gommon logger with the given prefix and level name
// (debug, info, warn, error, off).
func NewLogger(prefix, level string) *log.Logger {
	l := log.New(prefix)
	l.SetLevel(ParseLevel(level))
	return l
}

// ParseLevel maps a level name onto gommon levels, defaulting to INFO.
func ParseLevel(level string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.INFO
	}
}

// WithLogger replaces the default gommon logger.
func WithLogger(l Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

func WithKeyPrefix(prefix string) Option {
	return func(o *Options) {
		o.KeyPrefix = prefix
	}
}

func WithOpTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.OpTimeout = d
		}
	}
}

func WithHealthInterval(d time.Duration) Option {
	return func(o *Options) {
		o.HealthInterval = d
	}
}

func WithPingTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PingTimeout = d
		}
	}
}
