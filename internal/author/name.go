package author

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	byPrefixRe = regexp.MustCompile(`(?i)^(?:written\s+)?by[:\s]+`)
	wsRe       = regexp.MustCompile(`\s+`)
	chromeRe   = regexp.MustCompile(`(?i)\b(?:login|log in|sign in|sign up|subscribe|subscription|menu|newsletter|cookies?|privacy|advertisement|sponsored|share|follow us|skip to|navigation|search|home|contact us|copyright|all rights reserved|terms of)\b`)
)

// CleanName normalizes a byline candidate: collapses whitespace, drops a
// leading "By " and trailing separators.
func CleanName(s string) string {
	s = wsRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = byPrefixRe.ReplaceAllString(s, "")
	s = strings.TrimRight(s, " ,|-–:;")
	return strings.TrimSpace(s)
}

// ValidName rejects candidates that are too short or long, contain no
// letters, look like URLs or contain site-chrome words.
func ValidName(s string) bool {
	n := len([]rune(s))
	if n < 3 || n > 60 {
		return false
	}
	if !strings.ContainsFunc(s, unicode.IsLetter) {
		return false
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "://") || strings.HasPrefix(lower, "www.") || strings.Contains(lower, "@") {
		return false
	}
	return !chromeRe.MatchString(s)
}

// firstValid returns the first candidate that survives CleanName and ValidName.
func firstValid(candidates ...string) (string, bool) {
	for _, c := range candidates {
		c = CleanName(c)
		if ValidName(c) {
			return c, true
		}
	}
	return "", false
}

// joinAuthors renders one name as-is and several as "First et al.".
func joinAuthors(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return names[0] + " et al."
	}
}
