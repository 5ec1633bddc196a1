package evidence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/internal/resilience"
)

// call runs fn under the service's breaker and timeout, logging and
// reporting the outcome. The returned error is for control flow only.
func call[T any](ctx context.Context, g *Gatherer, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	var (
		v   T
		err error
	)
	if g.breakers != nil {
		v, err = resilience.Call(ctx, g.breakers.Get(service), fn)
	} else {
		v, err = fn(ctx)
	}
	elapsed := time.Since(start)

	status := model.StatusOK
	if err != nil {
		status = model.StatusUnavailable
		zap.L().Warn("evidence: upstream unavailable, degrading to empty",
			zap.String("service", service),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	if g.observe != nil {
		g.observe(service, status, elapsed)
	}
	return v, err
}

// firstN returns at most n runes of s.
func firstN(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
