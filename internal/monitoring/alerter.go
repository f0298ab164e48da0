package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/payrecon-ocr/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQueueBacklog AlertType = "queue_backlog"
	AlertJobErrors    AlertType = "job_errors"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds, logs what it
// finds and optionally posts alerts to a webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// A zero threshold disables its check.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.BacklogThreshold > 0 && snap.Queued > a.cfg.BacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertQueueBacklog,
			Severity: "warning",
			Message: fmt.Sprintf(
				"OCR queue backlog %d exceeds threshold %d",
				snap.Queued, a.cfg.BacklogThreshold,
			),
			Details: map[string]any{
				"queued":    snap.Queued,
				"running":   snap.Running,
				"threshold": a.cfg.BacklogThreshold,
			},
			Timestamp: now,
		})
	}

	failed := snap.Error + snap.Exhausted
	if a.cfg.ErrorThreshold > 0 && failed > a.cfg.ErrorThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertJobErrors,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d OCR jobs failed (%d error, %d exhausted), threshold %d",
				failed, snap.Error, snap.Exhausted, a.cfg.ErrorThreshold,
			),
			Details: map[string]any{
				"error":     snap.Error,
				"exhausted": snap.Exhausted,
				"threshold": a.cfg.ErrorThreshold,
			},
			Timestamp: now,
		})
	}

	for _, al := range alerts {
		alertsTotal.WithLabelValues(string(al.Type)).Inc()
	}
	return alerts
}

// SendAlerts logs each alert and delivers it to the configured webhook URL,
// if any. Returns the number of alerts successfully posted.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	for _, alert := range alerts {
		zap.L().Warn("monitoring: "+alert.Message,
			zap.String("type", string(alert.Type)),
			zap.Any("details", alert.Details),
		)
	}
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
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

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
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

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
