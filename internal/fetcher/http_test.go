package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestFetcher() *HTTPFetcher {
	return NewHTTPFetcher(HTTPOptions{
		UserAgent:   "test-agent",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		HostRate:    1000,
		HostBurst:   100,
		BackoffBase: time.Millisecond,
	})
}

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.True(t, page.OK())
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, page.ContentType, "text/html")
	assert.Equal(t, "<html><body>hello</body></html>", string(page.Body))
	assert.Equal(t, srv.URL+"/article", page.URL)
}

func TestFetch_ClientErrorReturnedAsPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, page.OK())
	assert.Equal(t, http.StatusForbidden, page.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	page, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(page.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestFetch_BodyCapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(HTTPOptions{MaxBytes: 100, HostRate: 1000, HostBurst: 10})
	page, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, page.Body, 100)
}

func TestFetch_InvalidURL(t *testing.T) {
	_, err := newTestFetcher().Fetch(context.Background(), "://bad")
	require.Error(t, err)
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(HTTPOptions{})
	assert.Equal(t, DefaultUserAgent, f.opts.UserAgent)
	assert.Equal(t, 15*time.Second, f.opts.Timeout)
	assert.Equal(t, 2, f.opts.MaxRetries)
	assert.Equal(t, int64(2<<20), f.opts.MaxBytes)
}

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	a := NewAdaptiveLimiter(10, 10)
	for i := 0; i < 20; i++ {
		a.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), a.Limit())

	for i := 0; i < 20; i++ {
		a.OnRateLimit("example.com")
	}
	assert.Equal(t, rate.Limit(2.5), a.Limit())
}

func TestHostLimiters_PerHost(t *testing.T) {
	h := newHostLimiters(5, 5)
	a := h.get("a.example")
	assert.Same(t, a, h.get("a.example"))
	assert.NotSame(t, a, h.get("b.example"))
}
