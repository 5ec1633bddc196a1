package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/misintel/misintel/internal/model"
)

// Confidence bounds applied to model output.
const (
	MinConfidence     = 60
	MaxConfidence     = 95
	DefaultConfidence = 75
)

// Fixed texts used when the model omits a field.
const (
	DefaultSummary = "Multi-source analysis completed"
	DefaultReason  = "Analysis completed using multiple verification sources"
	UnsafeReason   = "URL flagged as potentially unsafe by security systems"
)

// ReferenceSources are always offered when the model cites nothing.
var ReferenceSources = []string{"https://www.factcheck.org", "https://www.snopes.com"}

// Normalize coerces a parsed model object into an AnalysisResult with the
// evidence attached.
func Normalize(parsed map[string]any, ev model.Evidence) model.AnalysisResult {
	res := model.AnalysisResult{
		IsFake:     truthy(parsed["isFake"]),
		Confidence: coerceConfidence(parsed["confidence"]),
		Summary:    coerceSummary(parsed["summary"]),
	}

	if list, ok := parsed["reasons"].([]any); ok {
		res.Reasons = stringList(list)
	} else {
		res.Reasons = []string{DefaultReason}
	}

	if list, ok := parsed["sources"].([]any); ok && len(list) > 0 {
		res.Sources = dedupe(stringList(list), model.MaxSources)
	} else {
		res.Sources = evidenceSources(ev)
	}

	res.AttachEvidence(ev)
	res.Fill()
	return res
}

// ApplySafetyOverride marks a result fake with at least 85 confidence when
// the URL was flagged. Applying it twice has no further effect.
func ApplySafetyOverride(res *model.AnalysisResult, safety model.SafetyVerdict) {
	if !safety.Flagged() {
		return
	}
	if len(res.Reasons) == 0 || res.Reasons[0] != UnsafeReason {
		res.Reasons = append([]string{UnsafeReason}, res.Reasons...)
	}
	res.IsFake = true
	res.Confidence = max(res.Confidence, 85)
}

// coerceConfidence accepts a number or numeric string. Missing, zero and
// non-numeric values become 75; the result is clamped to [60,95].
func coerceConfidence(v any) int {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			f = parsed
		}
	}
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		f = DefaultConfidence
	}
	f = math.Min(MaxConfidence, math.Max(MinConfidence, f))
	return int(math.Round(f))
}

func coerceSummary(v any) string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return t
		}
	case float64:
		if t != 0 {
			return strconv.FormatFloat(t, 'f', -1, 64)
		}
	case bool:
		if t {
			return "true"
		}
	}
	return DefaultSummary
}

// truthy interprets the model's isFake. Strings "true"/"false" are read
// literally; other values follow the usual truthiness rules.
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true
		case "false", "no", "":
			return false
		}
		return true
	case nil:
		return false
	default:
		return true
	}
}

func stringList(list []any) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		switch t := item.(type) {
		case string:
			out = append(out, t)
		case nil:
		default:
			if b, err := json.Marshal(t); err == nil {
				out = append(out, string(b))
			} else {
				out = append(out, fmt.Sprint(t))
			}
		}
	}
	return out
}

// evidenceSources is the fallback citation list: up to two URLs each from
// news, fact-checks and search, then the reference sites, deduped and
// capped at MaxSources.
func evidenceSources(ev model.Evidence) []string {
	var urls []string
	for _, n := range head(ev.NewsHits(), 2) {
		urls = append(urls, n.URL)
	}
	for _, c := range head(ev.Claims(), 2) {
		urls = append(urls, c.FirstReviewURL())
	}
	for _, s := range head(ev.SearchHits(), 2) {
		urls = append(urls, s.Link)
	}
	urls = append(urls, ReferenceSources...)
	return dedupe(urls, model.MaxSources)
}

func dedupe(in []string, limit int) []string {
	out := make([]string, 0, min(len(in), limit))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func head[T any](in []T, n int) []T {
	if len(in) > n {
		return in[:n]
	}
	return in
}
