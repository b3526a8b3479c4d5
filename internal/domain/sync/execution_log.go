package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunCounts aggregates per-record outcomes for one run or step.
type RunCounts struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Updated int `json:"updated"`
}

// Add merges another set of counts into this one.
func (c *RunCounts) Add(other RunCounts) {
	c.Total += other.Total
	c.Success += other.Success
	c.Failed += other.Failed
	c.Skipped += other.Skipped
	c.Updated += other.Updated
}

// ErrorDetail is the structured error payload persisted with a run, queryable
// by error class.
type ErrorDetail struct {
	Class ErrorClass `json:"class"`
	// ExternalIDs lists the offending record ids for per-record failures
	ExternalIDs []string `json:"external_ids,omitempty"`
	Message     string   `json:"message,omitempty"`
}

// ExecutionLogEntry records one pipeline run. A full-sync run is the parent
// of one child entry per step, linked via CorrelationID and ParentLogID.
type ExecutionLogEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	FlowName      string
	FlowType      FlowType
	Status        RunStatus
	StartedAt     *time.Time
	CompletedAt   *time.Time
	Duration      time.Duration
	Counts        RunCounts
	ErrorMsg      string
	ErrorDetails  []ErrorDetail
	RetryCount    int
	MaxRetries    int
	NextRetryAt   *time.Time
	CorrelationID uuid.UUID
	ParentLogID   *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewExecutionLogEntry creates a pending entry for a scheduled run.
func NewExecutionLogEntry(tenantID uuid.UUID, flowName string, flowType FlowType, correlationID uuid.UUID, maxRetries int) *ExecutionLogEntry {
	now := time.Now().UTC()
	return &ExecutionLogEntry{
		ID:            uuid.New(),
		TenantID:      tenantID,
		FlowName:      flowName,
		FlowType:      flowType,
		Status:        RunStatusPending,
		CorrelationID: correlationID,
		MaxRetries:    maxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ChildEntry creates a step entry correlated to this parent run.
func (e *ExecutionLogEntry) ChildEntry(flowName string, flowType FlowType) *ExecutionLogEntry {
	child := NewExecutionLogEntry(e.TenantID, flowName, flowType, e.CorrelationID, e.MaxRetries)
	parentID := e.ID
	child.ParentLogID = &parentID
	return child
}

// Start transitions the entry to running. Terminal entries are immutable.
func (e *ExecutionLogEntry) Start() error {
	if e.Status.IsTerminal() {
		return ErrTerminalState
	}
	now := time.Now().UTC()
	e.Status = RunStatusRunning
	e.StartedAt = &now
	e.UpdatedAt = now
	return nil
}

// Complete finalizes the entry from its counts: success when nothing failed,
// partial when some records succeeded and some failed, failed when nothing
// succeeded.
func (e *ExecutionLogEntry) Complete(counts RunCounts) error {
	if e.Status.IsTerminal() {
		return ErrTerminalState
	}
	e.Counts = counts
	// A retried attempt that lands here supersedes the earlier failure.
	e.ErrorMsg = ""
	e.NextRetryAt = nil
	switch {
	case counts.Failed == 0:
		e.Status = RunStatusSuccess
	case counts.Success > 0 || counts.Updated > 0:
		e.Status = RunStatusPartial
	default:
		e.Status = RunStatusFailed
	}
	e.finish()
	return nil
}

// Fail marks the entry failed, or retrying when the error class is transient
// and the retry budget allows another attempt.
func (e *ExecutionLogEntry) Fail(errMsg string, details []ErrorDetail, backoff Backoff) error {
	if e.Status.IsTerminal() {
		return ErrTerminalState
	}
	e.ErrorMsg = errMsg
	e.ErrorDetails = details

	retryable := false
	for _, d := range details {
		if d.Class.Retryable() {
			retryable = true
			break
		}
	}
	if retryable && e.RetryCount < e.MaxRetries {
		e.RetryCount++
		next := backoff.NextRetryAt(time.Now().UTC(), e.RetryCount-1)
		e.NextRetryAt = &next
		e.Status = RunStatusRetrying
		e.UpdatedAt = time.Now().UTC()
		return nil
	}
	e.Status = RunStatusFailed
	e.finish()
	return nil
}

// Cancel marks the entry cancelled; reachable only via an explicit external
// signal, never from an internal failure path.
func (e *ExecutionLogEntry) Cancel() error {
	if e.Status.IsTerminal() {
		return ErrTerminalState
	}
	e.Status = RunStatusCancelled
	e.finish()
	return nil
}

func (e *ExecutionLogEntry) finish() {
	now := time.Now().UTC()
	e.CompletedAt = &now
	if e.StartedAt != nil {
		e.Duration = now.Sub(*e.StartedAt)
	}
	e.UpdatedAt = now
}

// ExecutionLogRepository defines the persistence port for execution logs.
type ExecutionLogRepository interface {
	// Save creates or updates a log entry.
	Save(ctx context.Context, entry *ExecutionLogEntry) error

	// FindByID retrieves one entry.
	FindByID(ctx context.Context, id uuid.UUID) (*ExecutionLogEntry, error)

	// FindByCorrelation returns all entries of one orchestrated cycle,
	// parent first, children in creation order.
	FindByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]ExecutionLogEntry, error)

	// FindRecentByTenant returns the most recent runs for a tenant.
	FindRecentByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]ExecutionLogEntry, error)

	// FindRetryable returns runs in retrying state whose next retry is due.
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]ExecutionLogEntry, error)
}
