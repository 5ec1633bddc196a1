package scrape

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/misintel/misintel/internal/fetcher"
)

// LocalScraper fetches HTML directly and converts it to plain text.
type LocalScraper struct {
	fetcher fetcher.Fetcher
}

// NewLocalScraper creates a LocalScraper on f.
func NewLocalScraper(f fetcher.Fetcher) *LocalScraper {
	return &LocalScraper{fetcher: f}
}

func (l *LocalScraper) Name() string           { return "local_http" }
func (l *LocalScraper) Supports(_ string) bool { return true }

// Scrape fetches targetURL and strips it to text. Non-2xx statuses, anti-bot
// walls and pages without text are errors so the chain can fall through.
func (l *LocalScraper) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	page, err := l.fetcher.Fetch(ctx, targetURL)
	if err != nil {
		return nil, eris.Wrap(err, "local_http: fetch")
	}

	if blocked, kind := DetectBlock(page); blocked {
		return nil, eris.Errorf("local_http: blocked (%s)", kind)
	}
	if !page.OK() {
		return nil, eris.Errorf("local_http: status %d", page.StatusCode)
	}

	text := StripHTML(string(page.Body))
	if text == "" {
		return nil, eris.New("local_http: empty page")
	}

	return &Result{
		URL:    page.URL,
		Title:  extractTitle(page.Body),
		Text:   text,
		Source: l.Name(),
	}, nil
}
