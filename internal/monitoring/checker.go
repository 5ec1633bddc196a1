package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/config"
)

// DefaultCheckInterval is used when the config leaves the interval unset.
const DefaultCheckInterval = 5 * time.Minute

// WindowSource returns the observations since the previous call and starts a
// new window.
type WindowSource interface {
	Collect() *MetricsSnapshot
}

// Checker evaluates the observation window on a ticker and posts alerts.
type Checker struct {
	window   WindowSource
	alerter  *Alerter
	interval time.Duration
}

// NewChecker creates a Checker over window. *Collector satisfies WindowSource.
func NewChecker(window WindowSource, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	return &Checker{window: window, alerter: alerter, interval: interval}
}

// Run blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().Named("monitoring")
	log.Info("monitoring: alert checker started", zap.Duration("interval", c.interval))

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("monitoring: alert checker stopped")
			return
		case <-t.C:
			c.check(ctx, log)
		}
	}
}

// check evaluates one window and returns how many alerts were delivered.
func (c *Checker) check(ctx context.Context, log *zap.Logger) int {
	snap := c.window.Collect()
	alerts := c.alerter.Evaluate(snap)
	log.Debug("monitoring: window evaluated",
		zap.Int("checks", snap.ChecksTotal),
		zap.Float64("degraded_rate", snap.DegradedRate),
		zap.Strings("opened_breakers", snap.OpenedBreakers),
		zap.Int("alerts", len(alerts)),
	)
	if len(alerts) == 0 {
		return 0
	}
	return c.alerter.SendAlerts(ctx, alerts)
}
