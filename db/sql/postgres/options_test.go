package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background()); !errors.Is(err, ErrMissingDSN) {
		t.Fatalf("expected ErrMissingDSN, got %v", err)
	}
}

func TestOpenRejectsMalformedDSN(t *testing.T) {
	if _, err := Open(context.Background(), WithDSN("postgres://%zz")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDataSourceURL(t *testing.T) {
	o := Options{
		DSN:             "postgres://u:p@localhost:5432/db?sslmode=disable",
		ApplicationName: "rakhkv",
		ConnectTimeout:  1500 * time.Millisecond,
	}
	got, err := o.dataSource()
	if err != nil {
		t.Fatalf("dataSource() error: %v", err)
	}
	for _, want := range []string{"host=localhost", "dbname=db", "sslmode=disable", "application_name='rakhkv'", "connect_timeout='2'"} {
		if !strings.Contains(got, want) {
			t.Fatalf("dataSource() = %q, missing %q", got, want)
		}
	}
}

func TestDataSourceKeyValue(t *testing.T) {
	o := Options{DSN: "host=localhost dbname=db application_name=mine", ApplicationName: "rakhkv", ConnectTimeout: time.Millisecond}
	got, err := o.dataSource()
	if err != nil {
		t.Fatalf("dataSource() error: %v", err)
	}
	if strings.Contains(got, "rakhkv") {
		t.Fatalf("explicit application_name must win, got %q", got)
	}
	if !strings.HasSuffix(got, "connect_timeout='1'") {
		t.Fatalf("dataSource() = %q, want connect_timeout appended", got)
	}
}

func TestDataSourceUnchanged(t *testing.T) {
	got, err := Options{DSN: "host=localhost"}.dataSource()
	if err != nil || got != "host=localhost" {
		t.Fatalf("dataSource() = %q, %v", got, err)
	}
}

func TestWithPoolKeepsDefaults(t *testing.T) {
	o := defaultOptions()
	WithPool(20, 0, 0)(&o)
	if o.MaxOpenConns != 20 || o.MaxIdleConns != 5 || o.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("unexpected pool options: %+v", o)
	}
}
