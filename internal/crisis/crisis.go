// Package crisis scans current top headlines for surges of election,
// disaster, health or unrest coverage, the periods when misinformation
// spreads fastest.
package crisis

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/cache"
	"github.com/misintel/misintel/pkg/newsapi"
)

// Defaults.
const (
	DefaultCountry  = "in"
	DefaultPageSize = 15
	HeadlinesTTL    = 5 * time.Minute
	MaxKeywords     = 5
	cachePrefix     = "misintel:crisis:"
)

// Crisis types.
const (
	TypeElection = "election"
	TypeDisaster = "disaster"
	TypeHealth   = "health"
	TypeGeneral  = "general"
)

// Severities.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Event is an active crisis.
type Event struct {
	Active    bool      `json:"active"`
	Type      string    `json:"type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	StartDate time.Time `json:"start_date"`
	Keywords  []string  `json:"keywords"`
}

// Pattern triggers a crisis of Type once Threshold keyword hits are seen.
type Pattern struct {
	Type      string
	Severity  string
	Threshold int
	Keywords  []string

	res []*regexp.Regexp
}

// Patterns are evaluated in order; the first to reach its threshold wins.
var Patterns = compile([]Pattern{
	{
		Type: TypeElection, Severity: SeverityCritical, Threshold: 2,
		Keywords: []string{
			"election", "vote", "polling", "results", "campaign", "candidate",
			"ballot", "voting", "elections", "poll", "result", "counting",
		},
	},
	{
		Type: TypeDisaster, Severity: SeverityHigh, Threshold: 3,
		Keywords: []string{
			"flood", "earthquake", "cyclone", "landslide", "disaster", "rescue",
			"emergency", "rain", "storm", "floods", "damage", "affected", "victims",
		},
	},
	{
		Type: TypeHealth, Severity: SeverityHigh, Threshold: 3,
		Keywords: []string{
			"covid", "virus", "outbreak", "disease", "hospital", "vaccine",
			"health", "cases", "infected", "pandemic", "wave", "variant",
		},
	},
	{
		Type: TypeGeneral, Severity: SeverityMedium, Threshold: 3,
		Keywords: []string{
			"protest", "strike", "violence", "attack", "crisis", "emergency",
			"alert", "tension", "clash", "demonstration", "rally",
		},
	},
})

func compile(ps []Pattern) []Pattern {
	for i := range ps {
		ps[i].res = make([]*regexp.Regexp, len(ps[i].Keywords))
		for j, kw := range ps[i].Keywords {
			ps[i].res[j] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		}
	}
	return ps
}

// Detect returns the first pattern the articles trip, or nil.
func Detect(articles []newsapi.Article, now time.Time) *Event {
	if len(articles) == 0 {
		return nil
	}
	titles := make([]string, len(articles))
	descs := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
		descs[i] = a.Description
	}
	text := strings.ToLower(strings.Join(titles, " ") + " " + strings.Join(descs, " "))

	for _, p := range Patterns {
		count := 0
		var found []string
		for i, re := range p.res {
			if n := len(re.FindAllStringIndex(text, -1)); n > 0 {
				count += n
				found = append(found, p.Keywords[i])
			}
		}
		if count < p.Threshold {
			continue
		}
		if len(found) > MaxKeywords {
			found = found[:MaxKeywords]
		}
		return &Event{
			Active:    true,
			Type:      p.Type,
			Severity:  p.Severity,
			Message:   Message(p.Type, p.Severity, count),
			StartDate: now.UTC(),
			Keywords:  found,
		}
	}
	return nil
}

var messages = map[string]map[string]string{
	TypeElection: {
		SeverityCritical: "Critical election misinformation surge detected (%d indicators). Verify all voting information and candidate claims.",
		SeverityHigh:     "High election misinformation risk. Fact-check political claims before sharing.",
		SeverityMedium:   "Election period: Verify political information from official sources.",
	},
	TypeDisaster: {
		SeverityCritical: "Emergency disaster situation detected. Verify all rescue reports and damage claims.",
		SeverityHigh:     "Disaster alert: High risk of false emergency information. Confirm reports with authorities.",
		SeverityMedium:   "Weather/disaster warnings: Verify emergency information from trusted sources.",
	},
	TypeHealth: {
		SeverityCritical: "Health crisis: Medical misinformation surge detected. Verify health advice and outbreak reports.",
		SeverityHigh:     "Health alert: Increased medical misinformation. Consult official health authorities.",
		SeverityMedium:   "Health information: Verify medical claims with certified sources.",
	},
	TypeGeneral: {
		SeverityCritical: "Crisis detected: High misinformation risk. Verify all breaking news and emergency alerts.",
		SeverityHigh:     "Alert: Increased misinformation activity. Double-check information before sharing.",
		SeverityMedium:   "Trending news: Verify information from multiple sources.",
	},
}

// Message is the user-facing banner text for a crisis.
func Message(typ, severity string, count int) string {
	msg, ok := messages[typ][severity]
	if !ok {
		return "Increased " + typ + " misinformation risk detected. Verify information carefully."
	}
	return strings.Replace(msg, "%d", strconv.Itoa(count), 1)
}

// Option configures a Detector.
type Option func(*Detector)

// WithCountry selects the headlines edition.
func WithCountry(c string) Option {
	return func(d *Detector) {
		if c != "" {
			d.country = c
		}
	}
}

// WithStore caches fetched headlines for HeadlinesTTL.
func WithStore(s cache.Store) Option {
	return func(d *Detector) { d.store = s }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// Detector checks live headlines for an ongoing crisis.
type Detector struct {
	news    newsapi.Client
	store   cache.Store
	country string
	now     func() time.Time
}

// NewDetector creates a Detector. A nil client never reports a crisis.
func NewDetector(news newsapi.Client, opts ...Option) *Detector {
	d := &Detector{news: news, country: DefaultCountry, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Status returns the active crisis, or nil when none is detected. Headline
// failures are logged and reported as no crisis.
func (d *Detector) Status(ctx context.Context) (*Event, error) {
	if d.news == nil {
		return nil, nil
	}
	articles, ok := d.cached(ctx)
	if !ok {
		var err error
		articles, err = d.news.TopHeadlines(ctx, newsapi.HeadlinesParams{Country: d.country, PageSize: DefaultPageSize})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			zap.L().Warn("crisis: headlines unavailable", zap.Error(err))
			return nil, nil
		}
		d.remember(ctx, articles)
	}

	ev := Detect(articles, d.now())
	if ev != nil {
		zap.L().Info("crisis: detected",
			zap.String("type", ev.Type),
			zap.String("severity", ev.Severity),
			zap.Strings("keywords", ev.Keywords),
		)
	}
	return ev, nil
}

func (d *Detector) cached(ctx context.Context) ([]newsapi.Article, bool) {
	if d.store == nil {
		return nil, false
	}
	b, ok, err := d.store.Get(ctx, cachePrefix+d.country)
	if err != nil || !ok {
		return nil, false
	}
	var articles []newsapi.Article
	if err := json.Unmarshal(b, &articles); err != nil {
		return nil, false
	}
	return articles, true
}

func (d *Detector) remember(ctx context.Context, articles []newsapi.Article) {
	if d.store == nil {
		return
	}
	b, err := json.Marshal(articles)
	if err != nil {
		return
	}
	if err := d.store.Set(ctx, cachePrefix+d.country, b, HeadlinesTTL); err != nil {
		zap.L().Warn("crisis: cache write failed", zap.Error(err))
	}
}
