// Package trending lists current headlines from the Google News RSS feed.
package trending

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed/rss"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/cache"
)

// Defaults.
const (
	DefaultBaseURL = "https://news.google.com/rss"
	DefaultHL      = "en-IN"
	DefaultGL      = "IN"
	MaxItems       = 10
	CacheTTL       = 5 * time.Minute
	cachePrefix    = "misintel:trending:"
)

// Item is one headline.
type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	PublishedAt string `json:"publishedAt"`
	Source      string `json:"source"`
}

// Query selects a feed. An empty Q lists top stories.
type Query struct {
	Q  string
	HL string
	GL string
}

// UpstreamError is a non-2xx response from the feed.
type UpstreamError struct {
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Upstream %d", e.StatusCode)
}

// Option configures a Feed.
type Option func(*Feed)

// WithBaseURL sets a custom feed root (for testing).
func WithBaseURL(u string) Option {
	return func(f *Feed) { f.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Feed) { f.http = hc }
}

// WithStore caches feed results for CacheTTL.
func WithStore(s cache.Store) Option {
	return func(f *Feed) { f.store = s }
}

// WithDefaults sets the locale used when a query leaves it empty.
func WithDefaults(hl, gl string) Option {
	return func(f *Feed) {
		if hl != "" {
			f.hl = hl
		}
		if gl != "" {
			f.gl = gl
		}
	}
}

// Feed fetches and parses Google News RSS.
type Feed struct {
	baseURL string
	hl, gl  string
	http    *http.Client
	store   cache.Store
	parser  *rss.Parser
}

// New creates a Feed.
func New(opts ...Option) *Feed {
	f := &Feed{
		baseURL: DefaultBaseURL,
		hl:      DefaultHL,
		gl:      DefaultGL,
		http:    &http.Client{Timeout: 15 * time.Second},
		parser:  &rss.Parser{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL builds the feed address for q.
func (f *Feed) URL(q Query) string {
	hl, gl := q.HL, q.GL
	if hl == "" {
		hl = f.hl
	}
	if gl == "" {
		gl = f.gl
	}
	params := url.Values{}
	params.Set("hl", hl)
	params.Set("gl", gl)
	params.Set("ceid", gl+":en")

	q.Q = strings.TrimSpace(q.Q)
	if q.Q == "" {
		return f.baseURL + "?" + params.Encode()
	}
	params.Set("q", q.Q)
	return f.baseURL + "/search?" + params.Encode()
}

// Top returns up to MaxItems headlines with a title and link.
func (f *Feed) Top(ctx context.Context, q Query) ([]Item, error) {
	feedURL := f.URL(q)
	if items, ok := f.cached(ctx, feedURL); ok {
		return items, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "trending: create request")
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "trending: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{StatusCode: resp.StatusCode}
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "trending: parse feed")
	}

	items := make([]Item, 0, MaxItems)
	for _, it := range feed.Items {
		if len(items) == MaxItems {
			break
		}
		item := Item{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			PublishedAt: strings.TrimSpace(it.PubDate),
		}
		if it.Source != nil {
			item.Source = strings.TrimSpace(it.Source.Title)
		}
		if item.Title == "" || item.Link == "" {
			continue
		}
		items = append(items, item)
	}

	f.remember(ctx, feedURL, items)
	return items, nil
}

func (f *Feed) cached(ctx context.Context, feedURL string) ([]Item, bool) {
	if f.store == nil {
		return nil, false
	}
	b, ok, err := f.store.Get(ctx, cachePrefix+feedURL)
	if err != nil || !ok {
		return nil, false
	}
	var items []Item
	if err := json.Unmarshal(b, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (f *Feed) remember(ctx context.Context, feedURL string, items []Item) {
	if f.store == nil {
		return
	}
	b, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := f.store.Set(ctx, cachePrefix+feedURL, b, CacheTTL); err != nil {
		zap.L().Warn("trending: cache write failed", zap.Error(err))
	}
}
