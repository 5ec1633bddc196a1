package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter that speeds up on success and backs
// off on 429. The rate stays within [initial/4, initial*2].
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(a.currentRate * 1.2)
}

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.set(a.currentRate * 0.5)
	zap.L().Warn("fetcher: reducing rate after 429",
		zap.String("host", host),
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

func (a *AdaptiveLimiter) set(r rate.Limit) {
	if r > a.maxRate {
		r = a.maxRate
	}
	if r < a.minRate {
		r = a.minRate
	}
	a.currentRate = r
	a.limiter.SetLimit(r)
}

// hostLimiters lazily creates one AdaptiveLimiter per host.
type hostLimiters struct {
	mu     sync.Mutex
	rate   rate.Limit
	burst  int
	byHost map[string]*AdaptiveLimiter
}

func newHostLimiters(r rate.Limit, burst int) *hostLimiters {
	return &hostLimiters{rate: r, burst: burst, byHost: make(map[string]*AdaptiveLimiter)}
}

func (h *hostLimiters) get(host string) *AdaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.byHost[host]
	if !ok {
		l = NewAdaptiveLimiter(h.rate, h.burst)
		h.byHost[host] = l
	}
	return l
}
