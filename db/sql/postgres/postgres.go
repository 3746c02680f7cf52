// Package postgres opens lib/pq connection pools, applies schema
// statements and stores auth users.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

var ErrMissingDSN = errors.New("postgres: DSN is required")

// Open builds a pool from opts and pings it before returning.
func Open(ctx context.Context, opts ...Option) (*sql.DB, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.DSN == "" {
		return nil, ErrMissingDSN
	}

	dsn, err := cfg.dataSource()
	if err != nil {
		return nil, err
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connector: %w", err)
	}
	db := sql.OpenDB(connector)
	cfg.applyPool(db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// dataSource returns the DSN in key=value form with ApplicationName and
// ConnectTimeout added, unless the DSN already sets them.
func (o Options) dataSource() (string, error) {
	dsn := o.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		converted, err := pq.ParseURL(dsn)
		if err != nil {
			return "", fmt.Errorf("postgres: parse dsn: %w", err)
		}
		dsn = converted
	}

	extra := [][2]string{{"application_name", o.ApplicationName}}
	if o.ConnectTimeout > 0 {
		secs := max(int(o.ConnectTimeout.Round(time.Second)/time.Second), 1)
		extra = append(extra, [2]string{"connect_timeout", strconv.Itoa(secs)})
	}

	var b strings.Builder
	b.WriteString(dsn)
	for _, kv := range extra {
		key, value := kv[0], kv[1]
		if value == "" || strings.Contains(dsn, key+"=") {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s='%s'", key, strings.ReplaceAll(value, "'", `\'`))
	}
	return b.String(), nil
}
