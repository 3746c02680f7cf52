package httpx

import (
	"net/http"
	"net/http/httptest"
)

// TestServer is an httptest.Server exposing BaseURL for NewClient.
type TestServer struct{ *httptest.Server }

func NewTestServer(handler http.Handler) *TestServer {
	return &TestServer{httptest.NewServer(handler)}
}

// BaseURL is empty for a nil server.
func (ts *TestServer) BaseURL() string {
	if ts == nil || ts.Server == nil {
		return ""
	}
	return ts.URL
}

// NewAppTestServer serves a directly, without the Server middleware stack.
func NewAppTestServer(a *App) *TestServer {
	if a == nil {
		return nil
	}
	return NewTestServer(a.e)
}
