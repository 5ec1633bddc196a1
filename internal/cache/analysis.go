package cache

import (
	"context"
	"encoding/json"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/misintel/misintel/internal/model"
)

// KeyPrefix namespaces analysis entries in shared stores.
const KeyPrefix = "misintel:url:"

// TTL policy bounds.
const (
	DefaultBaseTTL = 24 * time.Hour
	LowConfTTL     = 12 * time.Hour
	HighConfTTL    = 14 * 24 * time.Hour
	UnsafeTTL      = 6 * time.Hour
)

// Key returns the store key for a URL: scheme and host lowercased, default
// port dropped, one trailing slash removed from the path, query kept and
// fragment discarded. Unparseable input is used verbatim.
func Key(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return KeyPrefix + raw
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !defaultPort(scheme, port) {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	key := scheme + "://" + host + path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return KeyPrefix + key
}

func defaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}

// TTLFor picks the lifetime for a freshly computed result. An unsafe URL
// always gets the shortest TTL regardless of confidence.
func TTLFor(base time.Duration, confidence int, safe bool) time.Duration {
	if base <= 0 {
		base = DefaultBaseTTL
	}
	switch {
	case !safe:
		return UnsafeTTL
	case confidence >= 90:
		return HighConfTTL
	case confidence < 70:
		return LowConfTTL
	default:
		return base
	}
}

// Stats describes a cached entry.
type Stats struct {
	Key       string     `json:"key"`
	Exists    bool       `json:"exists"`
	TTL       *int64     `json:"ttl"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// AnalysisCache stores AnalysisResult values for URL checks.
type AnalysisCache struct {
	store   Store
	baseTTL time.Duration
	now     func() time.Time
}

// NewAnalysisCache wraps store. A non-positive baseTTL selects DefaultBaseTTL.
func NewAnalysisCache(store Store, baseTTL time.Duration) *AnalysisCache {
	if baseTTL <= 0 {
		baseTTL = DefaultBaseTTL
	}
	return &AnalysisCache{store: store, baseTTL: baseTTL, now: time.Now}
}

// Get returns the cached result for rawURL, or nil on a miss.
func (c *AnalysisCache) Get(ctx context.Context, rawURL string) (*model.AnalysisResult, error) {
	b, ok, err := c.store.Get(ctx, Key(rawURL))
	if err != nil {
		return nil, eris.Wrap(err, "cache: get")
	}
	if !ok {
		return nil, nil
	}
	var res model.AnalysisResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, eris.Wrap(err, "cache: decode entry")
	}
	return &res, nil
}

// Put stores res under rawURL with a TTL chosen from its confidence and
// safety verdict, stamping CachedAt. It returns the TTL used.
func (c *AnalysisCache) Put(ctx context.Context, rawURL string, res model.AnalysisResult) (time.Duration, error) {
	ttl := TTLFor(c.baseTTL, res.Confidence, res.SafetyCheck.Safe)
	at := c.now().UTC()
	res.CachedAt = &at
	res.FromCache = false

	b, err := json.Marshal(res)
	if err != nil {
		return 0, eris.Wrap(err, "cache: encode entry")
	}
	if err := c.store.Set(ctx, Key(rawURL), b, ttl); err != nil {
		return 0, eris.Wrap(err, "cache: set")
	}
	return ttl, nil
}

// Invalidate removes the entry for rawURL.
func (c *AnalysisCache) Invalidate(ctx context.Context, rawURL string) error {
	return eris.Wrap(c.store.Delete(ctx, Key(rawURL)), "cache: invalidate")
}

// Stats reports whether rawURL is cached and when it expires.
func (c *AnalysisCache) Stats(ctx context.Context, rawURL string) (Stats, error) {
	key := Key(rawURL)
	st := Stats{Key: key}
	ttl, ok, err := c.store.TTL(ctx, key)
	if err != nil {
		return st, eris.Wrap(err, "cache: stats")
	}
	if !ok {
		return st, nil
	}
	st.Exists = true
	secs := int64(ttl / time.Second)
	if secs > 0 {
		exp := c.now().Add(ttl).UTC()
		st.TTL = &secs
		st.ExpiresAt = &exp
	}
	return st, nil
}

// Purge removes expired entries when the backend needs it. Backends that
// expire on their own report zero.
func (c *AnalysisCache) Purge(ctx context.Context) (int, error) {
	p, ok := c.store.(Purger)
	if !ok {
		return 0, nil
	}
	n, err := p.DeleteExpired(ctx)
	return n, eris.Wrap(err, "cache: purge")
}
