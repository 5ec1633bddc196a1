package model

import "time"

// Limits applied when evidence is embedded in a result.
const (
	MaxResultItems = 3
	MaxSources     = 6
)

// AnalysisResult is the externally visible verdict for one request.
//
// Confidence 0 means no analysis was produced (input rejected or analysis
// failed) and must be checked before IsFake is interpreted.
type AnalysisResult struct {
	Error               string        `json:"error,omitempty"`
	IsFake              bool          `json:"isFake"`
	Confidence          int           `json:"confidence"`
	Summary             string        `json:"summary"`
	Reasons             []string      `json:"reasons"`
	Sources             []string      `json:"sources"`
	FactCheckResults    []ClaimReview `json:"factCheckResults"`
	SafetyCheck         SafetyVerdict `json:"safetyCheck"`
	CustomSearchResults []SearchHit   `json:"customSearchResults"`
	NewsResults         []NewsHit     `json:"newsResults"`
	Author              *AuthorInfo   `json:"author"`
	InputText           string        `json:"inputText,omitempty"`
	InputURL            string        `json:"inputUrl,omitempty"`
	ExtractedText       string        `json:"extractedText,omitempty"`
	Timestamp           time.Time     `json:"timestamp"`
	FromCache           bool          `json:"fromCache"`
	CachedAt            *time.Time    `json:"cachedAt,omitempty"`
}

// AttachEvidence copies the evidence lists into the result, trimmed to
// MaxResultItems each, with non-nil slices so they encode as [].
func (r *AnalysisResult) AttachEvidence(ev Evidence) {
	r.FactCheckResults = trim(ev.Claims(), MaxResultItems)
	r.CustomSearchResults = trim(ev.SearchHits(), MaxResultItems)
	r.NewsResults = trim(ev.NewsHits(), MaxResultItems)
	r.SafetyCheck = ev.SafetyVerdict()
}

// Fill replaces nil slices with empty ones.
func (r *AnalysisResult) Fill() {
	if r.Reasons == nil {
		r.Reasons = []string{}
	}
	if r.Sources == nil {
		r.Sources = []string{}
	}
	if r.FactCheckResults == nil {
		r.FactCheckResults = []ClaimReview{}
	}
	if r.CustomSearchResults == nil {
		r.CustomSearchResults = []SearchHit{}
	}
	if r.NewsResults == nil {
		r.NewsResults = []NewsHit{}
	}
	if r.SafetyCheck.Threats == nil {
		r.SafetyCheck.Threats = []Threat{}
	}
}

func trim[T any](in []T, n int) []T {
	if len(in) <= n {
		out := make([]T, len(in))
		copy(out, in)
		return out
	}
	out := make([]T, n)
	copy(out, in[:n])
	return out
}
