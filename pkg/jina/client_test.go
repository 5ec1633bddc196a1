package jina

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(base string, opts ...Option) Client {
	opts = append([]Option{WithBaseURL(base), WithSearchBaseURL(base), WithRetry(3, time.Millisecond)}, opts...)
	return NewClient("test-key", opts...)
}

func TestRead_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "text", r.Header.Get("X-Return-Format"))
		assert.Equal(t, "/https://news.example.com/story", r.URL.Path)

		_ = json.NewEncoder(w).Encode(ReadResponse{
			Code: 200,
			Data: ReadData{Title: "Story", URL: "https://news.example.com/story", Content: "Body text"},
		})
	}))
	defer srv.Close()

	got, err := fastClient(srv.URL).Read(context.Background(), "https://news.example.com/story", WithFormat("text"))
	require.NoError(t, err)
	assert.Equal(t, "Story", got.Data.Title)
	assert.Equal(t, "Body text", got.Data.Content)
}

func TestRead_DefaultsToMarkdown(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "markdown", r.Header.Get("X-Return-Format"))
		_, _ = w.Write([]byte(`{"code":200,"data":{"content":"x"}}`))
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Read(context.Background(), "https://a.example")
	require.NoError(t, err)
}

func TestRead_RetriesThenFails(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Read(context.Background(), "https://a.example")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(3), calls.Load())
}

func TestRead_RetryRecovers(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"content":"ok"}}`))
	}))
	defer srv.Close()

	got, err := fastClient(srv.URL).Read(context.Background(), "https://a.example")
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Data.Content)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRead_NotFoundNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := fastClient(srv.URL).Read(context.Background(), "https://a.example")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRead_AnonymousOmitsAuth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"code":200,"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.Read(context.Background(), "https://a.example")
	require.NoError(t, err)
}

func TestSearch_SiteFilter(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/\"Jane Doe\"", r.URL.Path)
		assert.Equal(t, "bbc.com", r.URL.Query().Get("site"))
		_, _ = w.Write([]byte(`{"code":200,"data":[{"title":"A","url":"https://bbc.com/a","description":"d"}]}`))
	}))
	defer srv.Close()

	hits, err := fastClient(srv.URL).Search(context.Background(), `"Jane Doe"`, WithSiteFilter("bbc.com"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "https://bbc.com/a", hits[0].URL)
}

func TestSearch_NoResults(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	hits, err := fastClient(srv.URL).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}
