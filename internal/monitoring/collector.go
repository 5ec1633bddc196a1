package monitoring

import (
	"slices"
	"sync"
	"time"

	"github.com/misintel/misintel/internal/analysis"
	"github.com/misintel/misintel/internal/model"
)

// MetricsSnapshot holds the pipeline activity seen since the previous collect.
type MetricsSnapshot struct {
	ChecksTotal    int     `json:"checks_total"`
	ChecksModel    int     `json:"checks_model"`
	ChecksFallback int     `json:"checks_fallback"`
	ChecksPartial  int     `json:"checks_partial"`
	ChecksCached   int     `json:"checks_cached"`
	DegradedRate   float64 `json:"degraded_rate"`

	// EvidenceFailures counts unavailable outcomes per service.
	EvidenceFailures map[string]int `json:"evidence_failures"`
	// OpenedBreakers lists services whose breaker opened in the window.
	OpenedBreakers []string `json:"opened_breakers"`

	WindowStart time.Time `json:"window_start"`
	CollectedAt time.Time `json:"collected_at"`
}

// Collector tallies check outcomes between collects.
type Collector struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	byPath  map[analysis.Path]int
	failed  map[string]int
	opened  map[string]struct{}
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	c := &Collector{now: time.Now}
	c.reset()
	return c
}

func (c *Collector) reset() {
	c.started = c.now().UTC()
	c.byPath = make(map[analysis.Path]int)
	c.failed = make(map[string]int)
	c.opened = make(map[string]struct{})
}

// RecordCheck counts a completed check by the stage that produced it.
func (c *Collector) RecordCheck(path analysis.Path) {
	c.mu.Lock()
	c.byPath[path]++
	c.mu.Unlock()
}

// RecordEvidence counts evidence failures.
func (c *Collector) RecordEvidence(service string, status model.OutcomeStatus) {
	if status != model.StatusUnavailable {
		return
	}
	c.mu.Lock()
	c.failed[service]++
	c.mu.Unlock()
}

// RecordBreakerOpen notes that a service's breaker opened.
func (c *Collector) RecordBreakerOpen(service string) {
	c.mu.Lock()
	c.opened[service] = struct{}{}
	c.mu.Unlock()
}

// Collect returns the current window and starts a new one. Cached checks are
// excluded from the degraded rate.
func (c *Collector) Collect() *MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := &MetricsSnapshot{
		ChecksModel:      c.byPath[analysis.PathModel],
		ChecksFallback:   c.byPath[analysis.PathFallback],
		ChecksPartial:    c.byPath[analysis.PathPartial],
		ChecksCached:     c.byPath[analysis.PathCache],
		EvidenceFailures: c.failed,
		WindowStart:      c.started,
		CollectedAt:      c.now().UTC(),
	}
	for _, n := range c.byPath {
		snap.ChecksTotal += n
	}
	if analysed := snap.ChecksModel + snap.ChecksFallback + snap.ChecksPartial; analysed > 0 {
		snap.DegradedRate = float64(snap.ChecksFallback+snap.ChecksPartial) / float64(analysed)
	}
	for svc := range c.opened {
		snap.OpenedBreakers = append(snap.OpenedBreakers, svc)
	}
	slices.Sort(snap.OpenedBreakers)

	c.reset()
	return snap
}
