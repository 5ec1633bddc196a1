package author

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/misintel/misintel/internal/scrape"
)

// Matcher is one byline extraction strategy. Match returns a cleaned, valid
// name or false.
type Matcher interface {
	Name() string
	Match(p *Page) (string, bool)
}

// DefaultMatchers returns the strategies in precedence order; the first
// match wins.
func DefaultMatchers() []Matcher {
	return []Matcher{
		JSONLDMatcher{},
		MetaMatcher{},
		AcademicMatcher{Domains: AcademicDomains},
		RelAuthorMatcher{},
		ElementMatcher{},
		SiteMatcher{Patterns: SitePatterns},
		TextMatcher{},
	}
}

// JSONLDMatcher reads the author of embedded schema.org JSON-LD, including
// @graph arrays.
type JSONLDMatcher struct{}

func (JSONLDMatcher) Name() string { return "json_ld" }

func (JSONLDMatcher) Match(p *Page) (string, bool) {
	doc := p.Doc()
	if doc == nil {
		return "", false
	}
	var names []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		ldAuthors(v, &names)
	})
	return firstValid(names...)
}

func ldAuthors(v any, out *[]string) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			ldAuthors(item, out)
		}
	case map[string]any:
		if a, ok := t["author"]; ok {
			ldNames(a, out)
		}
		if g, ok := t["@graph"]; ok {
			ldAuthors(g, out)
		}
	}
}

func ldNames(v any, out *[]string) {
	switch t := v.(type) {
	case string:
		*out = append(*out, t)
	case map[string]any:
		if n, ok := t["name"].(string); ok {
			*out = append(*out, n)
		}
	case []any:
		for _, item := range t {
			ldNames(item, out)
		}
	}
}

// MetaMatcher reads author meta tags. Several citation_author tags are
// joined as "First et al.".
type MetaMatcher struct{}

func (MetaMatcher) Name() string { return "meta" }

func (MetaMatcher) Match(p *Page) (string, bool) {
	doc := p.Doc()
	if doc == nil {
		return "", false
	}

	var authors, articleAuthors, citations, dc []string
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		name := strings.ToLower(s.AttrOr("name", ""))
		prop := strings.ToLower(s.AttrOr("property", ""))
		switch {
		case name == "author":
			authors = append(authors, content)
		case prop == "article:author" || name == "article:author":
			articleAuthors = append(articleAuthors, content)
		case name == "citation_author":
			citations = append(citations, content)
		case name == "dc.creator" || name == "dcterms.creator":
			dc = append(dc, content)
		}
	})

	if n, ok := firstValid(authors...); ok {
		return n, true
	}
	if n, ok := firstValid(articleAuthors...); ok {
		return n, true
	}
	if valid := validNames(citations); len(valid) > 0 {
		return joinAuthors(valid), true
	}
	return firstValid(dc...)
}

func validNames(candidates []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range candidates {
		c = CleanName(c)
		if ValidName(c) && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// AcademicDomains are publishers whose author lists get block extraction.
var AcademicDomains = []string{
	"arxiv.org", "nature.com", "sciencedirect.com", "springer.com",
	"ieee.org", "wiley.com", "tandfonline.com", "jstor.org",
	"ncbi.nlm.nih.gov", "researchgate.net", "acm.org", "plos.org",
	"frontiersin.org", "mdpi.com", "sagepub.com", "cambridge.org",
	"oup.com", "science.org", "thelancet.com", "bmj.com", "nejm.org",
}

const academicSectionChars = 3000

var (
	academicSections = []string{
		".c-article-author-list", ".author-list", ".authors-list", ".authors",
		"#author-list", "#authors", `[class*="authors"]`, `[class*="contrib"]`,
	}
	tagSepRe    = regexp.MustCompile(`<[^>]*>`)
	nameTokenRe = regexp.MustCompile(`[A-Z][a-z]+(?:[-'][A-Z][a-z]+)*(?:\s+(?:[A-Z]\.|[A-Z][a-z]+(?:[-'][A-Z][a-z]+)*)){1,3}`)
	nonNameRe   = regexp.MustCompile(`\b(?:Department|University|Institute|Abstract|Authors?|Affiliations?|Email|Show|More|View|Open|Access|Received|Accepted|Published|Journal|Article|Research|Science|School|College|Centre|Center|Laboratory|Hospital|Faculty|Corresponding|Correspondence|Contributors?|Download|Citation|Cite)\b`)
)

// AcademicMatcher extracts name-shaped tokens from a bounded author section
// on academic publisher pages.
type AcademicMatcher struct {
	Domains []string
}

func (AcademicMatcher) Name() string { return "academic" }

func (m AcademicMatcher) Match(p *Page) (string, bool) {
	if !hostIn(p.Host(), m.Domains) {
		return "", false
	}
	doc := p.Doc()
	if doc == nil {
		return "", false
	}

	for _, sel := range academicSections {
		section := doc.Find(sel).First()
		if section.Length() == 0 {
			continue
		}
		inner, err := section.Html()
		if err != nil {
			continue
		}
		text := scrape.Truncate(tagSepRe.ReplaceAllString(inner, ", "), academicSectionChars)

		var names []string
		seen := map[string]bool{}
		for _, tok := range nameTokenRe.FindAllString(text, -1) {
			tok = wsRe.ReplaceAllString(tok, " ")
			if nonNameRe.MatchString(tok) || seen[tok] || !ValidName(tok) {
				continue
			}
			seen[tok] = true
			names = append(names, tok)
		}
		if len(names) > 0 {
			return joinAuthors(names), true
		}
	}
	return "", false
}

// RelAuthorMatcher reads the text of rel="author" links.
type RelAuthorMatcher struct{}

func (RelAuthorMatcher) Name() string { return "rel_author" }

func (RelAuthorMatcher) Match(p *Page) (string, bool) {
	doc := p.Doc()
	if doc == nil {
		return "", false
	}
	var candidates []string
	doc.Find(`a[rel~="author"]`).Each(func(_ int, s *goquery.Selection) {
		candidates = append(candidates, s.Text())
	})
	return firstValid(candidates...)
}

// ElementMatcher scans itemprop="author" elements, then span/div/p elements
// whose class mentions author or byline.
type ElementMatcher struct{}

func (ElementMatcher) Name() string { return "element" }

func (ElementMatcher) Match(p *Page) (string, bool) {
	doc := p.Doc()
	if doc == nil {
		return "", false
	}

	var candidates []string
	doc.Find(`[itemprop="author"]`).Each(func(_ int, s *goquery.Selection) {
		if c, ok := s.Attr("content"); ok {
			candidates = append(candidates, c)
			return
		}
		if n := s.Find(`[itemprop="name"]`).First(); n.Length() > 0 {
			candidates = append(candidates, n.AttrOr("content", n.Text()))
			return
		}
		candidates = append(candidates, s.Text())
	})
	if n, ok := firstValid(candidates...); ok {
		return n, true
	}

	candidates = candidates[:0]
	doc.Find(`span[class*="author"], div[class*="author"], p[class*="author"], span[class*="byline"], div[class*="byline"], p[class*="byline"]`).
		Each(func(_ int, s *goquery.Selection) {
			candidates = append(candidates, s.Text())
		})
	return firstValid(candidates...)
}

// SitePatterns are byline formats of specific outlets, keyed by domain.
var SitePatterns = map[string]*regexp.Regexp{
	"bbc.co.uk": regexp.MustCompile(`(?is)data-testid="byline-name"[^>]*>\s*(?:<[^>]+>\s*)*(?:By\s+)?([^<]+)<`),
	"bbc.com":   regexp.MustCompile(`(?is)data-testid="byline-name"[^>]*>\s*(?:<[^>]+>\s*)*(?:By\s+)?([^<]+)<`),
	"cnn.com":   regexp.MustCompile(`(?is)class="[^"]*byline__name[^"]*"[^>]*>\s*([^<]+)<`),
	"ndtv.com":  regexp.MustCompile(`(?is)class="[^"]*pst-by_lnk[^"]*"[^>]*>\s*(?:<[^>]+>\s*)*([^<]+)<`),
}

// SiteMatcher applies the pattern registered for the page's domain.
type SiteMatcher struct {
	Patterns map[string]*regexp.Regexp
}

func (SiteMatcher) Name() string { return "site" }

func (m SiteMatcher) Match(p *Page) (string, bool) {
	host := p.Host()
	for domain, re := range m.Patterns {
		if !hostMatches(host, domain) {
			continue
		}
		var candidates []string
		for _, sm := range re.FindAllStringSubmatch(p.HTML, 5) {
			candidates = append(candidates, sm[1])
		}
		if n, ok := firstValid(candidates...); ok {
			return n, true
		}
	}
	return "", false
}

const textScanChars = 5000

var bylineTextRe = regexp.MustCompile(`\b(?:Written by|By)\s+([A-Z][A-Za-z'\-]+(?:\s+[A-Z]\.)?(?:\s+[A-Z][A-Za-z'\-]+){1,2})`)

// TextMatcher looks for "By Name" or "Written by Name" in the opening text.
type TextMatcher struct{}

func (TextMatcher) Name() string { return "text" }

func (TextMatcher) Match(p *Page) (string, bool) {
	text := scrape.Truncate(scrape.StripHTML(p.HTML), textScanChars)
	var candidates []string
	for _, sm := range bylineTextRe.FindAllStringSubmatch(text, 5) {
		candidates = append(candidates, sm[1])
	}
	return firstValid(candidates...)
}
