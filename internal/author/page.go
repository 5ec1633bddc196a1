// Package author attributes a web article to a byline and scores the
// author's credibility from the domain and their other articles on it.
package author

import (
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Page is a fetched article handed to each Matcher.
type Page struct {
	URL  *url.URL
	HTML string

	once sync.Once
	doc  *goquery.Document
}

// NewPage wraps html fetched from u.
func NewPage(u *url.URL, html string) *Page {
	return &Page{URL: u, HTML: html}
}

// Doc returns the parsed DOM, or nil if the HTML could not be parsed.
func (p *Page) Doc() *goquery.Document {
	p.once.Do(func() {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
		if err == nil {
			p.doc = doc
		}
	})
	return p.doc
}

// Host returns the lowercased hostname without a leading "www.".
func (p *Page) Host() string {
	if p.URL == nil {
		return ""
	}
	return hostOf(p.URL)
}

func hostOf(u *url.URL) string {
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// hostMatches reports whether host is domain or a subdomain of it.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func hostIn(host string, domains []string) bool {
	for _, d := range domains {
		if hostMatches(host, d) {
			return true
		}
	}
	return false
}
