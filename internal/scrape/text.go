package scrape

import (
	"html"
	"regexp"
	"strings"
)

// MaxTextChars is the longest text handed to analysis for a URL.
const MaxTextChars = 2000

var (
	scriptRe = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`<[^>]*>`)
	spaceRe  = regexp.MustCompile(`\s+`)
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// StripHTML drops script and style blocks, replaces every remaining tag with
// a space and collapses whitespace runs to one space. Entities pass through
// undecoded.
func StripHTML(doc string) string {
	doc = scriptRe.ReplaceAllString(doc, "")
	doc = styleRe.ReplaceAllString(doc, "")
	doc = tagRe.ReplaceAllString(doc, " ")
	doc = spaceRe.ReplaceAllString(doc, " ")
	return strings.TrimSpace(doc)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(html.UnescapeString(string(m[1])))
	}
	return ""
}
