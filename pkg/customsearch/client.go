// Package customsearch provides a client for the Google Programmable Search
// (Custom Search JSON) API.
package customsearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
)

// Client runs web searches against one search engine.
type Client interface {
	Search(ctx context.Context, query string, opts ...SearchOption) ([]Item, error)
}

// Item is a single search result.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Snippet     string `json:"snippet"`
	DisplayLink string `json:"displayLink"`
}

type searchResponse struct {
	Items []Item `json:"items"`
}

// SearchOption configures a single search.
type SearchOption func(*searchOpts)

type searchOpts struct {
	num int
}

// WithNum sets the number of results (1-10). The API default is 10.
func WithNum(n int) SearchOption {
	return func(o *searchOpts) { o.num = n }
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey   string
	engineID string
	baseURL  string
	http     *http.Client
}

// NewClient creates a client for the search engine cx.
func NewClient(apiKey, cx string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		engineID: cx,
		baseURL:  "https://www.googleapis.com/customsearch/v1",
		http:     &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) ([]Item, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	if so.num > 0 {
		params.Set("num", strconv.Itoa(so.num))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "customsearch: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "customsearch: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "customsearch: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("customsearch: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "customsearch: unmarshal response")
	}
	if out.Items == nil {
		return []Item{}, nil
	}
	return out.Items, nil
}
