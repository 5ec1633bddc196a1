// Package ratelimit throttles inbound checks per client with a sliding window.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// Defaults for the advanced-check endpoint.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 6
)

// UnknownClient is the shared bucket for requests that carry no client address
// header. Every unidentifiable caller draws from the same quota.
const UnknownClient = "unknown"

// Decision is the outcome of a single Allow call.
type Decision struct {
	Limited           bool
	RetryAfterSeconds int
}

// Limiter admits at most max requests per client within any trailing window.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	now     func() time.Time
	clients map[string][]time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter. Non-positive arguments fall back to the defaults.
func New(window time.Duration, max int, opts ...Option) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	l := &Limiter{
		window:  window,
		max:     max,
		now:     time.Now,
		clients: make(map[string][]time.Time),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow records a request for clientID unless the client is over quota.
// Rejected requests are not recorded.
func (l *Limiter) Allow(clientID string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := l.prune(clientID, now)

	if len(recent) >= l.max {
		wait := recent[0].Add(l.window).Sub(now)
		secs := int((wait + time.Second - 1) / time.Second)
		if secs < 1 {
			secs = 1
		}
		return Decision{Limited: true, RetryAfterSeconds: secs}
	}

	l.clients[clientID] = append(recent, now)
	return Decision{}
}

// prune drops timestamps outside the window. Caller holds mu.
func (l *Limiter) prune(clientID string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	ts := l.clients[clientID]
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	recent := append(ts[:0:0], ts[i:]...)
	if len(recent) == 0 {
		delete(l.clients, clientID)
		return nil
	}
	l.clients[clientID] = recent
	return recent
}

// Sweep removes clients whose windows have fully expired and returns how many
// were dropped.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	before := len(l.clients)
	for id := range l.clients {
		l.prune(id, now)
	}
	return before - len(l.clients)
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

var clientHeaders = []string{"X-Real-IP", "CF-Connecting-IP", "Fastly-Client-IP"}

// ClientID derives the rate-limit key from proxy headers: the first hop of
// X-Forwarded-For, then X-Real-IP, CF-Connecting-IP, Fastly-Client-IP. If none
// is present the request lands in the UnknownClient bucket.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	for _, h := range clientHeaders {
		if v := strings.TrimSpace(r.Header.Get(h)); v != "" {
			return v
		}
	}
	return UnknownClient
}
