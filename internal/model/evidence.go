package model

// OutcomeStatus tags how an evidence client call ended.
type OutcomeStatus string

const (
	// StatusOK means the upstream answered; the value may still be empty.
	StatusOK OutcomeStatus = "ok"
	// StatusUnavailable means the upstream failed (transport, non-2xx, decode).
	StatusUnavailable OutcomeStatus = "unavailable"
	// StatusNotConfigured means the call was skipped for lack of credentials.
	StatusNotConfigured OutcomeStatus = "not_configured"
)

// Outcome is the tagged result of one evidence client call. Value is always
// usable: on failure it holds the neutral default for the evidence type.
type Outcome[T any] struct {
	Value  T             `json:"value"`
	Status OutcomeStatus `json:"status"`
}

// OK wraps a successful value.
func OK[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Status: StatusOK}
}

// Unavailable wraps the neutral value returned when an upstream failed.
func Unavailable[T any](neutral T) Outcome[T] {
	return Outcome[T]{Value: neutral, Status: StatusUnavailable}
}

// NotConfigured wraps the neutral value returned when a call was skipped.
func NotConfigured[T any](neutral T) Outcome[T] {
	return Outcome[T]{Value: neutral, Status: StatusNotConfigured}
}

// Available reports whether the upstream actually answered.
func (o Outcome[T]) Available() bool { return o.Status == StatusOK }

// Review is a single publisher's verdict on a claim.
type Review struct {
	PublisherName string `json:"publisher"`
	TextualRating string `json:"rating"`
	URL           string `json:"url"`
}

// ClaimReview is a claim found in the fact-check database with its reviews.
type ClaimReview struct {
	ClaimText string   `json:"claim"`
	Claimant  string   `json:"claimant"`
	Reviews   []Review `json:"reviewers"`
}

// FirstReviewURL returns the URL of the first review, or "".
func (c ClaimReview) FirstReviewURL() string {
	if len(c.Reviews) == 0 {
		return ""
	}
	return c.Reviews[0].URL
}

// SearchHit is a web search result.
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
	Source  string `json:"source"`
}

// NewsHit is a recent news article.
type NewsHit struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"publishedAt"`
}

// Threat is one URL-safety match.
type Threat struct {
	ThreatType   string `json:"threatType"`
	PlatformType string `json:"platformType"`
	URL          string `json:"url"`
}

// SafetyVerdict is the URL-safety result. The zero-threat verdict is safe.
type SafetyVerdict struct {
	Safe    bool     `json:"safe"`
	Threats []Threat `json:"threats"`
}

// SafeVerdict is the neutral verdict used when no check ran or the check failed.
func SafeVerdict() SafetyVerdict {
	return SafetyVerdict{Safe: true, Threats: []Threat{}}
}

// Flagged reports whether the verdict is unsafe with at least one threat.
func (s SafetyVerdict) Flagged() bool {
	return !s.Safe && len(s.Threats) > 0
}

// Evidence is everything gathered before AI analysis. Any subset may be
// unavailable; the pipeline always proceeds with what it has.
type Evidence struct {
	FactChecks Outcome[[]ClaimReview] `json:"factChecks"`
	Search     Outcome[[]SearchHit]   `json:"search"`
	News       Outcome[[]NewsHit]     `json:"news"`
	Safety     Outcome[SafetyVerdict] `json:"safety"`
}

// EmptyEvidence returns evidence with every source marked not configured.
func EmptyEvidence() Evidence {
	return Evidence{
		FactChecks: NotConfigured([]ClaimReview{}),
		Search:     NotConfigured([]SearchHit{}),
		News:       NotConfigured([]NewsHit{}),
		Safety:     NotConfigured(SafeVerdict()),
	}
}

// Claims returns the fact-check claims, never nil.
func (e Evidence) Claims() []ClaimReview {
	if e.FactChecks.Value == nil {
		return []ClaimReview{}
	}
	return e.FactChecks.Value
}

// SearchHits returns the search results, never nil.
func (e Evidence) SearchHits() []SearchHit {
	if e.Search.Value == nil {
		return []SearchHit{}
	}
	return e.Search.Value
}

// NewsHits returns the news articles, never nil.
func (e Evidence) NewsHits() []NewsHit {
	if e.News.Value == nil {
		return []NewsHit{}
	}
	return e.News.Value
}

// SafetyVerdict returns the safety verdict with a non-nil threat list.
func (e Evidence) SafetyVerdict() SafetyVerdict {
	v := e.Safety.Value
	if v.Threats == nil {
		v.Threats = []Threat{}
	}
	if len(v.Threats) == 0 && e.Safety.Status != StatusOK {
		v.Safe = true
	}
	return v
}
