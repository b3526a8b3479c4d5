package dto

import (
	"time"

	"github.com/shopsync/backend/internal/domain/sync"
)

// TriggerSyncRequest is the body of a manual sync trigger
type TriggerSyncRequest struct {
	TenantID string `json:"tenant_id" binding:"required,uuid"`
	FlowType string `json:"flow_type" binding:"required,oneof=FETCH_ORDERS FETCH_PRODUCTS TRANSFORM_ORDERS TRANSFORM_PRODUCTS FULL_SYNC INCREMENTAL_SYNC"`
}

// ListRunsRequest is the query for listing recent runs of a tenant
type ListRunsRequest struct {
	TenantID string `form:"tenant_id" binding:"required,uuid"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

// RunCountsResponse mirrors a run's record counters
type RunCountsResponse struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Updated int `json:"updated"`
}

// RunErrorDetailResponse is one aggregated failure group of a run
type RunErrorDetailResponse struct {
	Class       string   `json:"class"`
	ExternalIDs []string `json:"external_ids,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// RunResponse is the API shape of one execution log entry
type RunResponse struct {
	ID            string                   `json:"id"`
	TenantID      string                   `json:"tenant_id"`
	FlowName      string                   `json:"flow_name"`
	FlowType      string                   `json:"flow_type"`
	Status        string                   `json:"status"`
	StartedAt     *time.Time               `json:"started_at,omitempty"`
	CompletedAt   *time.Time               `json:"completed_at,omitempty"`
	DurationMs    int64                    `json:"duration_ms"`
	Counts        RunCountsResponse        `json:"counts"`
	ErrorMsg      string                   `json:"error,omitempty"`
	ErrorDetails  []RunErrorDetailResponse `json:"error_details,omitempty"`
	RetryCount    int                      `json:"retry_count"`
	NextRetryAt   *time.Time               `json:"next_retry_at,omitempty"`
	CorrelationID string                   `json:"correlation_id"`
	ParentLogID   *string                  `json:"parent_log_id,omitempty"`
	CreatedAt     time.Time                `json:"created_at"`
}

// RunResponseFromEntry maps a domain entry to its API shape
func RunResponseFromEntry(entry *sync.ExecutionLogEntry) RunResponse {
	resp := RunResponse{
		ID:          entry.ID.String(),
		TenantID:    entry.TenantID.String(),
		FlowName:    entry.FlowName,
		FlowType:    entry.FlowType.String(),
		Status:      entry.Status.String(),
		StartedAt:   entry.StartedAt,
		CompletedAt: entry.CompletedAt,
		DurationMs:  entry.Duration.Milliseconds(),
		Counts: RunCountsResponse{
			Total:   entry.Counts.Total,
			Success: entry.Counts.Success,
			Failed:  entry.Counts.Failed,
			Skipped: entry.Counts.Skipped,
			Updated: entry.Counts.Updated,
		},
		ErrorMsg:      entry.ErrorMsg,
		RetryCount:    entry.RetryCount,
		NextRetryAt:   entry.NextRetryAt,
		CorrelationID: entry.CorrelationID.String(),
		CreatedAt:     entry.CreatedAt,
	}
	if entry.ParentLogID != nil {
		parentID := entry.ParentLogID.String()
		resp.ParentLogID = &parentID
	}
	for _, d := range entry.ErrorDetails {
		resp.ErrorDetails = append(resp.ErrorDetails, RunErrorDetailResponse{
			Class:       string(d.Class),
			ExternalIDs: d.ExternalIDs,
			Message:     d.Message,
		})
	}
	return resp
}

// RunListResponse wraps a page of runs
type RunListResponse struct {
	Runs []RunResponse `json:"runs"`
}

// RunListFromEntries maps a slice of entries
func RunListFromEntries(entries []sync.ExecutionLogEntry) RunListResponse {
	out := RunListResponse{Runs: make([]RunResponse, 0, len(entries))}
	for i := range entries {
		out.Runs = append(out.Runs, RunResponseFromEntry(&entries[i]))
	}
	return out
}
