package factcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/claims:search", r.URL.Path)
		assert.Equal(t, "vaccines cause autism", r.URL.Query().Get("query"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"claims":[{"text":"Vaccines cause autism","claimant":"Facebook post",
			"claimReview":[{"publisher":{"name":"PolitiFact","site":"politifact.com"},
			"url":"https://politifact.com/x","textualRating":"False"}]}]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	claims, err := c.Search(context.Background(), "vaccines cause autism")
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "Vaccines cause autism", claims[0].Text)
	assert.Equal(t, "Facebook post", claims[0].Claimant)
	require.Len(t, claims[0].ClaimReview, 1)
	assert.Equal(t, "PolitiFact", claims[0].ClaimReview[0].Publisher.Name)
	assert.Equal(t, "False", claims[0].ClaimReview[0].TextualRating)
}

func TestSearch_NoClaims(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	claims, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), "q")
	require.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Empty(t, claims)
}

func TestSearch_Language(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("languageCode"))
		w.Write([]byte(`{"claims":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL), WithLanguage("en")).Search(context.Background(), "q")
	require.NoError(t, err)
}

func TestSearch_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := NewClient("bad", WithBaseURL(srv.URL)).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSearch_BadJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}
