// Package factcheck provides a client for the Google Fact Check Tools API.
package factcheck

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Client searches published fact-checks.
type Client interface {
	// Search returns claims matching query. An empty result is not an error.
	Search(ctx context.Context, query string) ([]Claim, error)
}

// Claim is a claim found in the fact-check index.
type Claim struct {
	Text        string        `json:"text"`
	Claimant    string        `json:"claimant"`
	ClaimDate   string        `json:"claimDate"`
	ClaimReview []ClaimReview `json:"claimReview"`
}

// ClaimReview is one publisher's review of a claim.
type ClaimReview struct {
	Publisher     Publisher `json:"publisher"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	ReviewDate    string    `json:"reviewDate"`
	TextualRating string    `json:"textualRating"`
	LanguageCode  string    `json:"languageCode"`
}

// Publisher identifies the fact-checking organization.
type Publisher struct {
	Name string `json:"name"`
	Site string `json:"site"`
}

type searchResponse struct {
	Claims        []Claim `json:"claims"`
	NextPageToken string  `json:"nextPageToken"`
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

// WithLanguage restricts results to a BCP-47 language code.
func WithLanguage(code string) Option {
	return func(c *httpClient) { c.language = code }
}

type httpClient struct {
	apiKey   string
	baseURL  string
	language string
	http     *http.Client
}

// NewClient creates a Fact Check Tools client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://factchecktools.googleapis.com/v1alpha1",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string) ([]Claim, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)
	if c.language != "" {
		params.Set("languageCode", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/claims:search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "factcheck: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "factcheck: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "factcheck: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("factcheck: unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var out searchResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "factcheck: unmarshal response")
	}
	if out.Claims == nil {
		return []Claim{}, nil
	}
	return out.Claims, nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
