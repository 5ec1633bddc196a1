// Package evidence gathers fact-check, search, news and URL-safety evidence
// for one piece of content. Every call degrades to a neutral value: nothing
// in this package returns an error to the pipeline.
package evidence

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/internal/resilience"
	"github.com/misintel/misintel/pkg/customsearch"
	"github.com/misintel/misintel/pkg/factcheck"
	"github.com/misintel/misintel/pkg/newsapi"
	"github.com/misintel/misintel/pkg/safebrowsing"
)

// Service names used for breakers, logs and metrics.
const (
	ServiceFactCheck = "factcheck"
	ServiceSearch    = "customsearch"
	ServiceSafety    = "safebrowsing"
	ServiceNews      = "newsapi"
)

// Query limits and upstream parameters.
const (
	FactCheckQueryChars = 500
	SearchQueryChars    = 200
	SearchResults       = 5
	NewsWindow          = 7 * 24 * time.Hour
	NewsPageSize        = 10
)

// Clients holds the upstream clients. A nil client is treated as not
// configured and is never called.
type Clients struct {
	FactCheck factcheck.Client
	Search    customsearch.Client
	Safety    safebrowsing.Client
	News      newsapi.Client
}

// Observer is told how every upstream call ended.
type Observer func(service string, status model.OutcomeStatus, elapsed time.Duration)

// Option configures a Gatherer.
type Option func(*Gatherer)

// WithTimeout bounds each upstream call. Default 10s.
func WithTimeout(d time.Duration) Option {
	return func(g *Gatherer) { g.timeout = d }
}

// WithObserver registers a callback for call outcomes.
func WithObserver(o Observer) Option {
	return func(g *Gatherer) { g.observe = o }
}

// WithClock overrides time.Now (for the news date window).
func WithClock(now func() time.Time) Option {
	return func(g *Gatherer) { g.now = now }
}

// Gatherer calls the evidence clients behind per-service circuit breakers.
type Gatherer struct {
	clients  Clients
	breakers *resilience.Breakers
	timeout  time.Duration
	observe  Observer
	now      func() time.Time
}

// NewGatherer creates a Gatherer. breakers may be nil to disable breaking.
func NewGatherer(clients Clients, breakers *resilience.Breakers, opts ...Option) *Gatherer {
	g := &Gatherer{
		clients:  clients,
		breakers: breakers,
		timeout:  10 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Gather runs all applicable clients concurrently. The safety lookup only
// runs when targetURL is set. One client's failure never affects another.
func (g *Gatherer) Gather(ctx context.Context, content, targetURL string) model.Evidence {
	ev := model.EmptyEvidence()

	var eg errgroup.Group
	eg.Go(func() error {
		ev.FactChecks = g.FactChecks(ctx, content)
		return nil
	})
	eg.Go(func() error {
		ev.Search = g.Search(ctx, content)
		return nil
	})
	eg.Go(func() error {
		ev.News = g.News(ctx, content)
		return nil
	})
	if targetURL != "" {
		eg.Go(func() error {
			ev.Safety = g.Safety(ctx, targetURL)
			return nil
		})
	}
	_ = eg.Wait()

	return ev
}

// FactChecks searches the fact-check index with the first 500 characters.
func (g *Gatherer) FactChecks(ctx context.Context, content string) model.Outcome[[]model.ClaimReview] {
	empty := []model.ClaimReview{}
	if g.clients.FactCheck == nil {
		return skip(g, ServiceFactCheck, model.NotConfigured(empty))
	}

	claims, err := call(ctx, g, ServiceFactCheck, func(ctx context.Context) ([]factcheck.Claim, error) {
		return g.clients.FactCheck.Search(ctx, firstN(content, FactCheckQueryChars))
	})
	if err != nil {
		return model.Unavailable(empty)
	}

	out := make([]model.ClaimReview, 0, len(claims))
	for _, c := range claims {
		cr := model.ClaimReview{
			ClaimText: c.Text,
			Claimant:  c.Claimant,
			Reviews:   make([]model.Review, 0, len(c.ClaimReview)),
		}
		for _, r := range c.ClaimReview {
			cr.Reviews = append(cr.Reviews, model.Review{
				PublisherName: r.Publisher.Name,
				TextualRating: r.TextualRating,
				URL:           r.URL,
			})
		}
		out = append(out, cr)
	}
	return model.OK(out)
}

// Search runs a web search with the first 200 characters.
func (g *Gatherer) Search(ctx context.Context, content string) model.Outcome[[]model.SearchHit] {
	empty := []model.SearchHit{}
	if g.clients.Search == nil {
		return skip(g, ServiceSearch, model.NotConfigured(empty))
	}

	items, err := call(ctx, g, ServiceSearch, func(ctx context.Context) ([]customsearch.Item, error) {
		return g.clients.Search.Search(ctx, firstN(content, SearchQueryChars), customsearch.WithNum(SearchResults))
	})
	if err != nil {
		return model.Unavailable(empty)
	}

	out := make([]model.SearchHit, 0, len(items))
	for _, it := range items {
		out = append(out, model.SearchHit{
			Title:   it.Title,
			Snippet: it.Snippet,
			Link:    it.Link,
			Source:  it.DisplayLink,
		})
	}
	return model.OK(out)
}

// News searches English articles from the last 7 days, newest first.
func (g *Gatherer) News(ctx context.Context, content string) model.Outcome[[]model.NewsHit] {
	empty := []model.NewsHit{}
	if g.clients.News == nil {
		return skip(g, ServiceNews, model.NotConfigured(empty))
	}

	articles, err := call(ctx, g, ServiceNews, func(ctx context.Context) ([]newsapi.Article, error) {
		return g.clients.News.Everything(ctx, newsapi.EverythingParams{
			Query:    firstN(content, SearchQueryChars),
			From:     g.now().Add(-NewsWindow),
			SortBy:   "publishedAt",
			Language: "en",
			PageSize: NewsPageSize,
		})
	})
	if err != nil {
		return model.Unavailable(empty)
	}

	out := make([]model.NewsHit, 0, len(articles))
	for _, a := range articles {
		out = append(out, model.NewsHit{
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
			Source:      a.Source.Name,
			PublishedAt: a.PublishedAt,
		})
	}
	return model.OK(out)
}

// Safety looks targetURL up in the threat lists. Any failure yields the safe
// verdict: the check fails open.
func (g *Gatherer) Safety(ctx context.Context, targetURL string) model.Outcome[model.SafetyVerdict] {
	if g.clients.Safety == nil {
		return skip(g, ServiceSafety, model.NotConfigured(model.SafeVerdict()))
	}

	matches, err := call(ctx, g, ServiceSafety, func(ctx context.Context) ([]safebrowsing.Match, error) {
		return g.clients.Safety.Lookup(ctx, targetURL)
	})
	if err != nil {
		return model.Unavailable(model.SafeVerdict())
	}

	v := model.SafeVerdict()
	for _, m := range matches {
		v.Threats = append(v.Threats, model.Threat{
			ThreatType:   m.ThreatType,
			PlatformType: m.PlatformType,
			URL:          m.Threat.URL,
		})
	}
	v.Safe = len(v.Threats) == 0
	return model.OK(v)
}

func skip[T any](g *Gatherer, service string, o model.Outcome[T]) model.Outcome[T] {
	if g.observe != nil {
		g.observe(service, o.Status, 0)
	}
	return o
}
