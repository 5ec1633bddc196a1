package author

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/pkg/customsearch"
	"github.com/misintel/misintel/pkg/jina"
)

// MaxPriorArticles caps the prior articles attached to an author.
const MaxPriorArticles = 5

// Hit is one site-scoped search result.
type Hit struct {
	Title   string
	URL     string
	Snippet string
}

// Searcher runs a site-scoped search for an author's other articles.
type Searcher interface {
	SearchSite(ctx context.Context, name, domain string) ([]Hit, error)
}

// CustomSearch searches with the `"name" site:domain` query.
type CustomSearch struct {
	Client customsearch.Client
}

func (s CustomSearch) SearchSite(ctx context.Context, name, domain string) ([]Hit, error) {
	items, err := s.Client.Search(ctx, `"`+name+`" site:`+domain, customsearch.WithNum(10))
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(items))
	for _, it := range items {
		hits = append(hits, Hit{Title: it.Title, URL: it.Link, Snippet: it.Snippet})
	}
	return hits, nil
}

// JinaSearch searches through the Jina search endpoint with a site filter.
type JinaSearch struct {
	Client jina.Client
}

func (s JinaSearch) SearchSite(ctx context.Context, name, domain string) ([]Hit, error) {
	results, err := s.Client.Search(ctx, `"`+name+`"`, jina.WithSiteFilter(domain))
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		hits = append(hits, Hit{Title: r.Title, URL: r.URL, Snippet: snippet})
	}
	return hits, nil
}

var snippetDateRes = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?,?\s+\d{4}\b`),
	regexp.MustCompile(`\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
}

// SnippetDate pulls a date out of a search snippet, or "Recent".
func SnippetDate(snippet string) string {
	for _, re := range snippetDateRes {
		if m := re.FindString(snippet); m != "" {
			return m
		}
	}
	return "Recent"
}

// priorArticles converts hits to articles, skipping the article itself.
// It returns the number of other articles found and the first few.
func priorArticles(hits []Hit, self string) (int, []model.PriorArticle) {
	selfKey := articleKey(self)
	out := []model.PriorArticle{}
	count := 0
	for _, h := range hits {
		if h.URL == "" || articleKey(h.URL) == selfKey {
			continue
		}
		count++
		if len(out) < MaxPriorArticles {
			out = append(out, model.PriorArticle{
				Title: h.Title,
				URL:   h.URL,
				Date:  SnippetDate(h.Snippet),
			})
		}
	}
	return count, out
}

func articleKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	return hostOf(u) + strings.TrimSuffix(u.EscapedPath(), "/") + "?" + u.RawQuery
}
