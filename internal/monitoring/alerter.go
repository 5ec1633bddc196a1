package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/config"
	"github.com/misintel/misintel/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDegradedRate AlertType = "degraded_rate"
	AlertBreakerOpen  AlertType = "breaker_open"
)

// Alert is the webhook payload.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a window snapshot into alerts and delivers them.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	retry   resilience.RetryConfig
	nowFunc func() time.Time
}

// NewAlerter creates an Alerter. MinChecks defaults to 5.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	if cfg.MinChecks <= 0 {
		cfg.MinChecks = 5
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			Attempts: 2,
			Backoff:  100 * time.Millisecond,
			Service:  "alert_webhook",
		},
		nowFunc: time.Now,
	}
}

// Evaluate returns the alerts a snapshot warrants, degraded rate first.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	now := a.nowFunc().UTC()
	window := snap.CollectedAt.Sub(snap.WindowStart).Round(time.Second)

	var alerts []Alert
	if al, ok := a.degraded(snap, window); ok {
		al.Timestamp = now
		alerts = append(alerts, al)
	}
	for _, al := range breakerAlerts(snap, window) {
		al.Timestamp = now
		alerts = append(alerts, al)
	}
	return alerts
}

func (a *Alerter) degraded(snap *MetricsSnapshot, window time.Duration) (Alert, bool) {
	analysed := snap.ChecksModel + snap.ChecksFallback + snap.ChecksPartial
	if analysed < a.cfg.MinChecks || snap.DegradedRate <= a.cfg.DegradedRateThreshold {
		return Alert{}, false
	}
	return Alert{
		Type:     AlertDegradedRate,
		Severity: "high",
		Message: fmt.Sprintf(
			"Model analysis degraded for %.1f%% of checks, threshold %.1f%% (%d fallback, %d partial of %d in %s)",
			snap.DegradedRate*100, a.cfg.DegradedRateThreshold*100,
			snap.ChecksFallback, snap.ChecksPartial, analysed, window,
		),
		Details: map[string]any{
			"degraded_rate": snap.DegradedRate,
			"threshold":     a.cfg.DegradedRateThreshold,
			"fallback":      snap.ChecksFallback,
			"partial":       snap.ChecksPartial,
			"analysed":      analysed,
		},
	}, true
}

func breakerAlerts(snap *MetricsSnapshot, window time.Duration) []Alert {
	out := make([]Alert, 0, len(snap.OpenedBreakers))
	for _, svc := range snap.OpenedBreakers {
		out = append(out, Alert{
			Type:     AlertBreakerOpen,
			Severity: "medium",
			Message:  fmt.Sprintf("Circuit breaker for %s opened in the last %s", svc, window),
			Details: map[string]any{
				"service":  svc,
				"failures": snap.EvidenceFailures[svc],
			},
		})
	}
	return out
}

// SendAlerts posts each alert to the webhook and returns how many were
// accepted. Without a webhook nothing is sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		_, err := resilience.Retry(ctx, a.retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.post(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: alert delivery failed",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return &resilience.StatusError{
			Err:        eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}
