package resilience

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"go.uber.org/zap"
)

// StatusError carries the HTTP status of a failed upstream call so retry
// decisions can be made without string matching.
type StatusError struct {
	Err        error
	StatusCode int
}

func (e *StatusError) Error() string { return e.Err.Error() }

func (e *StatusError) Unwrap() error { return e.Err }

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

// IsTransient reports whether err looks like a temporary upstream failure:
// a StatusError with a retryable code or a network timeout.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return RetryableStatus(se.StatusCode)
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// RetryConfig bounds Retry.
type RetryConfig struct {
	Attempts    int
	Backoff     time.Duration
	MaxBackoff  time.Duration
	ShouldRetry func(error) bool
	// Service labels retry log lines.
	Service string
}

// Retry calls fn until it succeeds, returns a non-retryable error, ctx ends or
// the attempts run out. Delays double from Backoff with up to 25% jitter.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	delay := cfg.Backoff
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= cfg.Attempts || ctx.Err() != nil || !shouldRetry(err) {
			return zero, err
		}

		zap.L().Warn("resilience: retrying",
			zap.String("service", cfg.Service),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		wait := delay + time.Duration(rand.Int64N(int64(delay)/4+1))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
		delay *= 2
		if delay > cfg.MaxBackoff {
			delay = cfg.MaxBackoff
		}
	}
}
