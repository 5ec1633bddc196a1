// Package safebrowsing provides a client for the Google Safe Browsing v4
// threat-match lookup.
package safebrowsing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// Threat types checked on every lookup.
var ThreatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"POTENTIALLY_HARMFUL_APPLICATION",
	"UNWANTED_SOFTWARE",
}

// Client looks up URLs in the Safe Browsing lists.
type Client interface {
	// Lookup returns the matches for urls. No matches means no known threat.
	Lookup(ctx context.Context, urls ...string) ([]Match, error)
}

// Match is a threat list hit.
type Match struct {
	ThreatType      string      `json:"threatType"`
	PlatformType    string      `json:"platformType"`
	ThreatEntryType string      `json:"threatEntryType"`
	Threat          ThreatEntry `json:"threat"`
	CacheDuration   string      `json:"cacheDuration"`
}

// ThreatEntry is the matched URL.
type ThreatEntry struct {
	URL string `json:"url"`
}

type clientInfo struct {
	ClientID      string `json:"clientId"`
	ClientVersion string `json:"clientVersion"`
}

type threatInfo struct {
	ThreatTypes      []string      `json:"threatTypes"`
	PlatformTypes    []string      `json:"platformTypes"`
	ThreatEntryTypes []string      `json:"threatEntryTypes"`
	ThreatEntries    []ThreatEntry `json:"threatEntries"`
}

type findRequest struct {
	Client     clientInfo `json:"client"`
	ThreatInfo threatInfo `json:"threatInfo"`
}

type findResponse struct {
	Matches []Match `json:"matches"`
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

// WithClientInfo overrides the client id and version reported to Google.
func WithClientInfo(id, version string) Option {
	return func(c *httpClient) {
		c.clientID = id
		c.clientVersion = version
	}
}

type httpClient struct {
	apiKey        string
	baseURL       string
	clientID      string
	clientVersion string
	http          *http.Client
}

// NewClient creates a Safe Browsing client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:        apiKey,
		baseURL:       "https://safebrowsing.googleapis.com/v4",
		clientID:      "misintel",
		clientVersion: "1.0.0",
		http:          &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, urls ...string) ([]Match, error) {
	entries := make([]ThreatEntry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, ThreatEntry{URL: u})
	}
	payload := findRequest{
		Client: clientInfo{ClientID: c.clientID, ClientVersion: c.clientVersion},
		ThreatInfo: threatInfo{
			ThreatTypes:      ThreatTypes,
			PlatformTypes:    []string{"ALL_PLATFORMS"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries:    entries,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "safebrowsing: marshal request")
	}

	endpoint := c.baseURL + "/threatMatches:find?key=" + url.QueryEscape(c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "safebrowsing: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "safebrowsing: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "safebrowsing: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("safebrowsing: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out findResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, eris.Wrap(err, "safebrowsing: unmarshal response")
	}
	if out.Matches == nil {
		return []Match{}, nil
	}
	return out.Matches, nil
}
