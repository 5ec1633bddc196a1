// Package newsapi provides a client for the NewsAPI.org "everything" and
// "top-headlines" endpoints.
package newsapi

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

// Client searches recent news articles.
type Client interface {
	Everything(ctx context.Context, params EverythingParams) ([]Article, error)
	TopHeadlines(ctx context.Context, params HeadlinesParams) ([]Article, error)
}

// EverythingParams are the query parameters of /v2/everything.
type EverythingParams struct {
	Query    string
	From     time.Time
	SortBy   string
	Language string
	PageSize int
}

// HeadlinesParams are the query parameters of /v2/top-headlines.
type HeadlinesParams struct {
	Country  string
	Category string
	PageSize int
}

// Article is a news article.
type Article struct {
	Source      Source `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

// Source is the publishing outlet.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type articlesResponse struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
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
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a NewsAPI client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://newsapi.org/v2",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Everything(ctx context.Context, p EverythingParams) ([]Article, error) {
	params := url.Values{}
	params.Set("q", p.Query)
	if !p.From.IsZero() {
		params.Set("from", p.From.UTC().Format("2006-01-02"))
	}
	if p.SortBy != "" {
		params.Set("sortBy", p.SortBy)
	}
	if p.Language != "" {
		params.Set("language", p.Language)
	}
	if p.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	return c.articles(ctx, "/everything", params)
}

func (c *httpClient) TopHeadlines(ctx context.Context, p HeadlinesParams) ([]Article, error) {
	params := url.Values{}
	if p.Country != "" {
		params.Set("country", p.Country)
	}
	if p.Category != "" {
		params.Set("category", p.Category)
	}
	if p.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	return c.articles(ctx, "/top-headlines", params)
}

func (c *httpClient) articles(ctx context.Context, path string, params url.Values) ([]Article, error) {
	params.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "newsapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "newsapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "newsapi: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("newsapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var out articlesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "newsapi: unmarshal response")
	}
	if out.Status == "error" {
		return nil, eris.Errorf("newsapi: %s: %s", out.Code, out.Message)
	}
	if out.Articles == nil {
		return []Article{}, nil
	}
	return out.Articles, nil
}
