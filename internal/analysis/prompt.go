// Package analysis turns gathered evidence into a verdict: it builds the
// model prompt, parses and normalizes the model's JSON, and falls back to
// a rule-based heuristic when the model cannot be used.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/misintel/misintel/internal/model"
)

// Prompt truncation limits.
const (
	PromptContentChars = 1500
	PromptMaxItems     = 5
)

// PromptInput is everything the prompt embeds.
type PromptInput struct {
	Content  string
	URL      string
	Evidence model.Evidence
	Now      time.Time
}

var instructions = []string{
	"**ALWAYS compare article dates with today's date (%[1]s) to determine if they are past events or future predictions**",
	"Prioritize recent news articles from reputable sources (within last 48 hours)",
	"Cross-reference with fact-check database results",
	"Evaluate source credibility from search results",
	"Consider URL safety if applicable",
	"Look for common misinformation patterns",
	"If recent news from 2+ trusted sources confirms a claim, increase confidence",
	"**If articles are dated in the future (after %[1]s), they are SPECULATIVE, not factual**",
	"Provide reasoning based on evidence from all sources",
}

const responseSchema = `Return ONLY a valid JSON response with no additional text:

{
  "isFake": boolean (true if likely misinformation),
  "confidence": number (60-95, based on evidence strength),
  "summary": "Comprehensive analysis summary in 2-3 sentences",
  "reasons": ["Specific reason 1", "Specific reason 2", "Specific reason 3"],
  "sources": ["Source URL 1", "Source URL 2"] (from fact-check, news, or search results)
}`

// BuildPrompt renders the analysis prompt. It is a pure function of in.
func BuildPrompt(in PromptInput) string {
	today := in.Now.Format("Monday, January 2, 2006")
	iso := in.Now.UTC().Format("2006-01-02T15:04:05.000Z")
	ev := in.Evidence

	var b strings.Builder
	b.WriteString("You are an expert fact-checker analyzing content for misinformation. \n\n")

	b.WriteString("⏰ CRITICAL: TODAY'S DATE AND TIME\n")
	fmt.Fprintf(&b, "Current Date: %s\n", today)
	fmt.Fprintf(&b, "ISO Timestamp: %s\n", iso)
	b.WriteString("**IMPORTANT: Any article dated AFTER this timestamp is from the FUTURE and is speculative/prediction, NOT a confirmed fact. Any article dated BEFORE this timestamp is from the PAST and may be confirmed news.**\n\n")

	fmt.Fprintf(&b, "CONTENT TO ANALYZE:\n\"%s\"\n\n", truncateRunes(in.Content, PromptContentChars))

	b.WriteString("RECENT NEWS ARTICLES (Last 7 days):\n")
	b.WriteString(section(ev.NewsHits(), "No recent news articles found"))
	b.WriteString("\n\nFACT-CHECK DATABASE RESULTS:\n")
	b.WriteString(section(ev.Claims(), "No direct fact-check matches found"))
	b.WriteString("\n\nSEARCH VERIFICATION RESULTS:\n")
	b.WriteString(section(ev.SearchHits(), "No verification sources found"))

	b.WriteString("\n\nURL SAFETY CHECK:\n")
	if in.URL != "" {
		status := "Safe"
		if !ev.SafetyVerdict().Safe {
			status = "Potentially Unsafe"
		}
		fmt.Fprintf(&b, "URL: %s - Safety Status: %s", in.URL, status)
	} else {
		b.WriteString("No URL provided")
	}

	b.WriteString("\n\nANALYSIS INSTRUCTIONS:\n")
	for i, line := range instructions {
		fmt.Fprintf(&b, "%d. ", i+1)
		if strings.Contains(line, "%[1]s") {
			fmt.Fprintf(&b, line, today)
		} else {
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(responseSchema)
	return b.String()
}

// section renders up to PromptMaxItems items as indented JSON, or empty.
func section[T any](items []T, empty string) string {
	if len(items) == 0 {
		return empty
	}
	if len(items) > PromptMaxItems {
		items = items[:PromptMaxItems]
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return empty
	}
	return strings.TrimRight(buf.String(), "\n")
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
