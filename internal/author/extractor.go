package author

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/fetcher"
	"github.com/misintel/misintel/internal/model"
)

// DefaultFetchTimeout bounds the article fetch.
const DefaultFetchTimeout = 10 * time.Second

// Option configures an Extractor.
type Option func(*Extractor)

// WithMatchers replaces the default matcher chain.
func WithMatchers(m ...Matcher) Option {
	return func(e *Extractor) { e.matchers = m }
}

// WithReputation replaces the default domain table.
func WithReputation(r *Reputation) Option {
	return func(e *Extractor) { e.reputation = r }
}

// WithSearcher enables the prior-article search.
func WithSearcher(s Searcher) Option {
	return func(e *Extractor) { e.searcher = s }
}

// WithFetchTimeout overrides DefaultFetchTimeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// Extractor attributes articles to authors. It never fails: every error
// path yields a domain-derived fallback author.
type Extractor struct {
	fetcher    fetcher.Fetcher
	matchers   []Matcher
	reputation *Reputation
	searcher   Searcher
	timeout    time.Duration
}

// NewExtractor creates an Extractor that fetches pages with f.
func NewExtractor(f fetcher.Fetcher, opts ...Option) *Extractor {
	e := &Extractor{
		fetcher:    f,
		matchers:   DefaultMatchers(),
		reputation: DefaultReputation(),
		timeout:    DefaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the author of the article at rawURL.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (info model.AuthorInfo) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return e.fallback("", "")
	}
	host := hostOf(u)

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("author: extraction panicked",
				zap.String("url", rawURL),
				zap.String("panic", fmt.Sprint(r)),
			)
			info = e.fallback(host, "")
		}
	}()

	page, err := e.fetch(ctx, rawURL)
	if err != nil {
		zap.L().Warn("author: fetch failed, using fallback",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return e.fallback(host, "")
	}
	if !page.OK() {
		if (page.StatusCode == 401 || page.StatusCode == 403) && hostIn(host, AcademicDomains) {
			return e.fallback(host, ResearchAuthors)
		}
		zap.L().Debug("author: non-2xx page, using fallback",
			zap.String("url", rawURL),
			zap.Int("status", page.StatusCode),
		)
		return e.fallback(host, "")
	}

	p := NewPage(u, string(page.Body))
	name, matcher := e.match(p)
	if name == "" {
		return e.fallback(host, "")
	}

	zap.L().Debug("author: byline found",
		zap.String("url", rawURL),
		zap.String("matcher", matcher),
		zap.String("author", name),
	)

	count, prior := e.prior(ctx, name, host, rawURL)
	return model.AuthorInfo{
		Name:             name,
		CredibilityScore: Credibility(e.reputation.Score(host), count),
		PriorArticles:    prior,
	}
}

// match runs the matcher chain over p and returns the first name found and
// the matcher that produced it.
func (e *Extractor) match(p *Page) (string, string) {
	for _, m := range e.matchers {
		if name, ok := m.Match(p); ok {
			return name, m.Name()
		}
	}
	return "", ""
}

func (e *Extractor) fetch(ctx context.Context, rawURL string) (*fetcher.Page, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.fetcher.Fetch(ctx, rawURL)
}

func (e *Extractor) prior(ctx context.Context, name, host, self string) (int, []model.PriorArticle) {
	if e.searcher == nil || host == "" {
		return 0, []model.PriorArticle{}
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	hits, err := e.searcher.SearchSite(ctx, name, host)
	if err != nil {
		zap.L().Warn("author: prior-article search failed",
			zap.String("author", name),
			zap.String("domain", host),
			zap.Error(err),
		)
		return 0, []model.PriorArticle{}
	}
	return priorArticles(hits, self)
}

func (e *Extractor) fallback(host, name string) model.AuthorInfo {
	if name == "" {
		name = FallbackName(host)
	}
	return model.AuthorInfo{
		Name:             name,
		CredibilityScore: Credibility(e.reputation.Score(host), 0),
		PriorArticles:    []model.PriorArticle{},
	}
}
