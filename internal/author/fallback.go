package author

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ResearchAuthors names the author of a paywalled academic page.
const ResearchAuthors = "Research Authors"

var (
	titleCaser = cases.Title(language.English)
	// second-level labels under which the registrable name sits one deeper.
	secondLevel = map[string]bool{"co": true, "com": true, "ac": true, "gov": true, "org": true, "net": true, "edu": true}
)

// DomainLabel returns the capitalized site name of host: "news.bbc.co.uk"
// gives "Bbc", "www.reuters.com" gives "Reuters".
func DomainLabel(host string) string {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	labels := strings.Split(host, ".")
	var label string
	switch n := len(labels); {
	case n >= 3 && len(labels[n-1]) == 2 && secondLevel[labels[n-2]]:
		label = labels[n-3]
	case n >= 2:
		label = labels[n-2]
	default:
		label = labels[0]
	}
	return titleCaser.String(label)
}

// FallbackName is the generic byline used when no author is found.
func FallbackName(host string) string {
	if label := DomainLabel(host); label != "" {
		return label + " Editorial Team"
	}
	return "Editorial Team"
}
