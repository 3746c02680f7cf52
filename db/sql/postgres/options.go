package postgres

import (
	"database/sql"
	"time"
)

// Options configures the connection and the database/sql pool.
type Options struct {
	// DSN is a lib/pq connection string in URL or key=value form.
	DSN             string
	ApplicationName string
	// ConnectTimeout is rounded to whole seconds, the unit lib/pq accepts.
	ConnectTimeout  time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

func (o Options) applyPool(db *sql.DB) {
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)
}

func WithDSN(dsn string) Option {
	return func(o *Options) { o.DSN = dsn }
}

// WithApplicationName tags connections in pg_stat_activity.
func WithApplicationName(name string) Option {
	return func(o *Options) { o.ApplicationName = name }
}

func WithConnectTimeout(d time.Duration) Option {
	return func(o *Options) { o.ConnectTimeout = d }
}

// WithPool sets the pool limits; zero values keep the defaults.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(o *Options) {
		if maxOpen > 0 {
			o.MaxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			o.MaxIdleConns = maxIdle
		}
		if maxLifetime > 0 {
			o.ConnMaxLifetime = maxLifetime
		}
	}
}
