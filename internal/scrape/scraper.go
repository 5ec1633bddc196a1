// Package scrape turns article URLs into plain text for analysis, trying a
// direct fetch first and a reader service second.
package scrape

import "context"

// Result is the extracted text of one page.
type Result struct {
	URL    string
	Title  string
	Text   string
	Source string
}

// Scraper fetches a single URL and returns its text.
type Scraper interface {
	Scrape(ctx context.Context, url string) (*Result, error)
	Name() string
	// Supports reports whether the scraper should be tried for url right now.
	Supports(url string) bool
}
