// Package notify delivers run summaries to tenant-configured webhook
// endpoints. Delivery is best effort and never blocks or fails a sync run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/infrastructure/config"
)

// RunSummary is the wire shape posted to a tenant's notify endpoint when a
// run reaches a terminal state.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	CorrelationID string         `json:"correlation_id"`
	TenantID      string         `json:"tenant_id"`
	FlowType      sync.FlowType  `json:"flow_type"`
	Status        sync.RunStatus `json:"status"`
	Counts        sync.RunCounts `json:"counts"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	DurationMs    int64          `json:"duration_ms"`
}

// WebhookNotifier delivers run summaries over plain HTTP POST.
type WebhookNotifier struct {
	httpClient *http.Client
	cfg        config.NotifyConfig
	logger     *zap.Logger
}

// NewWebhookNotifier creates a notifier with the configured delivery timeout.
func NewWebhookNotifier(cfg config.NotifyConfig, logger *zap.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cfg:        cfg,
		logger:     logger.Named("notify"),
	}
}

// SummaryFromEntry builds a RunSummary from a finished execution log entry.
func SummaryFromEntry(entry *sync.ExecutionLogEntry) RunSummary {
	return RunSummary{
		RunID:         entry.ID.String(),
		CorrelationID: entry.CorrelationID.String(),
		TenantID:      entry.TenantID.String(),
		FlowType:      entry.FlowType,
		Status:        entry.Status,
		Counts:        entry.Counts,
		StartedAt:     entry.StartedAt,
		CompletedAt:   entry.CompletedAt,
		DurationMs:    entry.Duration.Milliseconds(),
	}
}

// NotifyRunFinished delivers a summary of the finished run. Failures are
// logged and dropped, the caller's run outcome is already decided.
func (n *WebhookNotifier) NotifyRunFinished(ctx context.Context, url string, entry *sync.ExecutionLogEntry) {
	if !n.cfg.Enabled || url == "" {
		return
	}
	summary := SummaryFromEntry(entry)

	log := n.logger.With(
		zap.String("run_id", summary.RunID),
		zap.String("tenant_id", summary.TenantID),
		zap.String("url", url),
	)

	body, err := json.Marshal(summary)
	if err != nil {
		log.Error("failed to encode run summary", zap.Error(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create notify request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		log.Warn("run summary delivery failed", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("notify endpoint rejected run summary",
			zap.String("status", fmt.Sprintf("HTTP %d", resp.StatusCode)),
		)
		return
	}
	log.Debug("run summary delivered")
}
