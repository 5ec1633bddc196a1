package scrape

import (
	"net/http"
	"strings"

	"github.com/misintel/misintel/internal/fetcher"
)

// BlockType describes why a fetched page has no usable article text.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
	BlockPaywall    BlockType = "paywall"
)

// Bodies under these sizes are too small to hold an article past the wall.
const (
	shellMaxBytes   = 2000
	paywallMaxBytes = 20000
)

var (
	cloudflareMarkers = []string{"checking your browser", "cf-browser-verification"}
	captchaMarkers    = []string{"g-recaptcha", "h-captcha", "captcha-container"}
	paywallMarkers    = []string{
		"subscribe to continue reading",
		"subscribe to read",
		"this article is for subscribers",
		"already a subscriber? sign in",
		`class="paywall"`,
	}
)

// DetectBlock reports anti-bot walls, JavaScript-only shells and short
// paywall pages, so the chain can fall through to a rendering scraper.
func DetectBlock(page *fetcher.Page) (bool, BlockType) {
	if page == nil {
		return false, BlockNone
	}
	if cloudflareHeaders(page) {
		return true, BlockCloudflare
	}

	lower := strings.ToLower(string(page.Body))
	switch {
	case containsAny(lower, cloudflareMarkers),
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge"):
		return true, BlockCloudflare
	case containsAny(lower, captchaMarkers):
		return true, BlockCaptcha
	case len(page.Body) < shellMaxBytes &&
		(strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") ||
			strings.Contains(lower, `meta http-equiv="refresh"`)):
		return true, BlockJSShell
	case len(page.Body) < paywallMaxBytes && containsAny(lower, paywallMarkers):
		return true, BlockPaywall
	}
	return false, BlockNone
}

func cloudflareHeaders(page *fetcher.Page) bool {
	if page.StatusCode != http.StatusForbidden && page.StatusCode != http.StatusServiceUnavailable {
		return false
	}
	h := page.Header
	return h != nil && (h.Get("cf-ray") != "" || h.Get("cf-cache-status") != "" || strings.EqualFold(h.Get("server"), "cloudflare"))
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
