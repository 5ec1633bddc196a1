package scrape

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Chain tries scrapers in order and returns the first success.
type Chain struct {
	scrapers []Scraper
}

// NewChain creates a Chain over scrapers, in priority order.
func NewChain(scrapers ...Scraper) *Chain {
	return &Chain{scrapers: scrapers}
}

// Scrape returns the first successful result, or the last error.
func (c *Chain) Scrape(ctx context.Context, targetURL string) (*Result, error) {
	var lastErr error
	for _, s := range c.scrapers {
		if !s.Supports(targetURL) {
			continue
		}
		res, err := s.Scrape(ctx, targetURL)
		if err == nil && res != nil && res.Text != "" {
			return res, nil
		}
		if err != nil {
			zap.L().Debug("scrape: scraper failed, trying next",
				zap.String("scraper", s.Name()),
				zap.String("url", targetURL),
				zap.Error(err),
			)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, eris.Wrap(lastErr, "scrape: all scrapers failed")
	}
	return nil, eris.Errorf("scrape: no text extracted from %s", targetURL)
}

// Extract returns up to MaxTextChars of text for targetURL, or "" when
// nothing could be extracted. It never fails.
func (c *Chain) Extract(ctx context.Context, targetURL string) string {
	res, err := c.Scrape(ctx, targetURL)
	if err != nil {
		zap.L().Warn("scrape: url content extraction failed",
			zap.String("url", targetURL),
			zap.Error(err),
		)
		return ""
	}
	return Truncate(res.Text, MaxTextChars)
}

// Placeholder is the analyzable content used when a URL yields no text.
func Placeholder(targetURL string) string {
	return "URL content analysis: " + targetURL
}
