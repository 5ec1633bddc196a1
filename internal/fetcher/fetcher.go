// Package fetcher retrieves web pages for content extraction and author
// attribution with per-host adaptive rate limiting and retry.
package fetcher

import (
	"context"
	"net/http"
)

// Page is a fetched document. Body is capped at the fetcher's size limit.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// OK reports a 2xx status.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher retrieves a page. Non-2xx responses other than 429 and 5xx are
// returned as pages, not errors, so callers can inspect the status.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}
