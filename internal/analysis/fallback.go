package analysis

import (
	"regexp"
	"strings"

	"github.com/misintel/misintel/internal/model"
)

// Confidence values of the degraded paths.
const (
	FallbackConfidence       = 75
	PartialFlaggedConfidence = 70
	PartialPlainConfidence   = 60
)

// PartialFailureError marks a result produced without any analysis narrative.
const PartialFailureError = "AI Analysis partially failed"

var sensationalRe = regexp.MustCompile(`(?i)shocking|unbelievable|doctors hate|miracle|secret|breaking|urgent|click here|you won't believe|this will amaze`)

// Fallback is the rule-based verdict used when the model call or its JSON
// parse fails.
func Fallback(content string, ev model.Evidence) model.AnalysisResult {
	negative := hasRating(ev.Claims(), "false", "misleading")
	spammy := sensationalRe.MatchString(content)
	unsafe := !ev.SafetyVerdict().Safe
	fake := negative || spammy || unsafe

	res := model.AnalysisResult{
		IsFake:     fake,
		Confidence: FallbackConfidence,
		Reasons:    []string{},
	}
	if fake {
		res.Summary = "Content flagged by multiple verification systems as potentially misleading"
	} else {
		res.Summary = "Content passed basic verification checks across multiple sources"
	}

	if negative {
		res.Reasons = append(res.Reasons, "Similar claims fact-checked as false or misleading")
	}
	if spammy {
		res.Reasons = append(res.Reasons, "Contains typical misinformation language patterns")
	}
	if unsafe {
		res.Reasons = append(res.Reasons, "URL flagged by security systems")
	}
	if !fake {
		res.Reasons = append(res.Reasons, "No obvious red flags detected", "Multiple verification sources consulted")
	}

	var sources []string
	for _, c := range head(ev.Claims(), 2) {
		sources = append(sources, c.FirstReviewURL())
	}
	sources = append(sources, ReferenceSources[0])
	res.Sources = dedupe(sources, 3)

	res.AttachEvidence(ev)
	res.Fill()
	return res
}

// PartialFailure is the last-resort result carrying only the evidence.
func PartialFailure(ev model.Evidence) model.AnalysisResult {
	negative := hasRating(ev.Claims(), "false")
	unsafe := !ev.SafetyVerdict().Safe

	res := model.AnalysisResult{
		Error:      PartialFailureError,
		IsFake:     negative || unsafe,
		Confidence: PartialPlainConfidence,
		Reasons:    []string{},
	}
	if res.IsFake {
		res.Confidence = PartialFlaggedConfidence
	}

	switch {
	case negative:
		res.Summary = "Fact-checking databases found similar false claims"
	case unsafe:
		res.Summary = "URL flagged as unsafe"
	default:
		res.Summary = "Basic verification completed, AI analysis unavailable"
	}

	if negative {
		res.Reasons = append(res.Reasons, "Similar claims previously debunked")
	}
	if unsafe {
		res.Reasons = append(res.Reasons, "URL security concerns")
	}
	res.Reasons = append(res.Reasons, "AI analysis service temporarily unavailable")

	res.AttachEvidence(ev)
	res.Fill()
	return res
}

// hasRating reports whether any review rating contains one of words.
func hasRating(claims []model.ClaimReview, words ...string) bool {
	for _, c := range claims {
		for _, r := range c.Reviews {
			rating := strings.ToLower(r.TextualRating)
			for _, w := range words {
				if strings.Contains(rating, w) {
					return true
				}
			}
		}
	}
	return false
}
