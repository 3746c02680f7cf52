package httpx

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

func TestRequestOptionsReachServer(t *testing.T) {
	client := serve(t, func(a *App) {
		a.GET("/echo/:name", func(c Context) error {
			user, pass, _ := c.Request().BasicAuth()
			return c.JSON(StatusOK, map[string]string{
				"header": c.Request().Header.Get("X-Trace"),
				"query":  c.QueryParam("page"),
				"name":   c.Param("name"),
				"user":   user,
				"pass":   pass,
			})
		})
	})

	var got map[string]string
	_, err := client.Get(context.Background(), "/echo/{name}", &got,
		WithBasicAuth("ops@example.com", "hunter22"),
		WithRequestHeaders(map[string]string{"X-Trace": "abc"}),
		WithQuery(map[string]string{"page": "2"}),
		WithPathParams(map[string]string{"name": "a b"}),
	)
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"header": "abc",
		"query":  "2",
		"name":   "a b",
		"user":   "ops@example.com",
		"pass":   "hunter22",
	}, got)
}

func TestRetriesOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	handler := func(c Context) error {
		if hits.Add(1) < 3 {
			return HTTPError(StatusServiceUnavailable, "warming up")
		}
		return c.NoContent(StatusOK)
	}
	ts := NewAppTestServer(func() *App { a := New(); a.GET("/flaky", handler); return a }())
	defer ts.Close()

	_, err := NewClient(WithBaseURL(ts.BaseURL()), WithRetries(3, time.Millisecond)).Get(context.Background(), "/flaky", nil)
	require.NoError(t, err)
	require.EqualValues(t, 3, hits.Load())

	hits.Store(0)
	_, err = NewClient(WithBaseURL(ts.BaseURL())).Get(context.Background(), "/flaky", nil)
	require.Equal(t, StatusServiceUnavailable, StatusCode(err))
	require.EqualValues(t, 1, hits.Load())
}

func TestRestyHookAndDefaultHeaders(t *testing.T) {
	ts := NewAppTestServer(func() *App {
		a := New()
		a.GET("/headers", func(c Context) error {
			h := c.Request().Header
			return c.JSON(StatusOK, map[string]string{"hook": h.Get("X-Hook"), "static": h.Get("X-Static")})
		})
		return a
	}())
	defer ts.Close()

	client := NewClient(
		WithBaseURL(ts.BaseURL()),
		WithHeaders(map[string]string{"X-Static": "on"}),
		WithRestyHook(func(rc *resty.Client) { rc.SetHeader("X-Hook", "ran") }),
	)
	var got map[string]string
	_, err := client.Get(context.Background(), "/headers", &got)
	require.NoError(t, err)
	require.Equal(t, "ran", got["hook"])
	require.Equal(t, "on", got["static"])
}

func TestStatusCodeOfTransportError(t *testing.T) {
	_, err := NewClient(WithBaseURL("http://127.0.0.1:1"), WithClientTimeout(time.Second)).Get(context.Background(), "/", nil)
	require.Error(t, err)
	require.Zero(t, StatusCode(err))
}
