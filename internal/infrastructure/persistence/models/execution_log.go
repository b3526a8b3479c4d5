package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/sync"
)

// ExecutionLogModel is the persistence model for the ExecutionLogEntry domain entity.
type ExecutionLogModel struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index:idx_execution_logs_tenant,priority:1"`
	FlowName      string         `gorm:"type:varchar(100);not null"`
	FlowType      sync.FlowType  `gorm:"type:varchar(30);not null"`
	Status        sync.RunStatus `gorm:"type:varchar(20);not null;index"`
	StartedAt     *time.Time
	CompletedAt   *time.Time
	DurationMs    int64  `gorm:"not null;default:0"`
	CountsJSON    string `gorm:"type:jsonb;column:counts"`
	ErrorMsg      string `gorm:"type:text"`
	ErrorsJSON    string `gorm:"type:jsonb;column:error_details"`
	RetryCount    int    `gorm:"not null;default:0"`
	MaxRetries    int    `gorm:"not null;default:0"`
	NextRetryAt   *time.Time `gorm:"index"`
	CorrelationID uuid.UUID  `gorm:"type:uuid;not null;index"`
	ParentLogID   *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt     time.Time  `gorm:"not null;index:idx_execution_logs_tenant,priority:2"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ExecutionLogModel) TableName() string {
	return "execution_logs"
}

// ToDomain converts the persistence model to a domain ExecutionLogEntry.
func (m *ExecutionLogModel) ToDomain() *sync.ExecutionLogEntry {
	entry := &sync.ExecutionLogEntry{
		ID:            m.ID,
		TenantID:      m.TenantID,
		FlowName:      m.FlowName,
		FlowType:      m.FlowType,
		Status:        m.Status,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		Duration:      time.Duration(m.DurationMs) * time.Millisecond,
		ErrorMsg:      m.ErrorMsg,
		RetryCount:    m.RetryCount,
		MaxRetries:    m.MaxRetries,
		NextRetryAt:   m.NextRetryAt,
		CorrelationID: m.CorrelationID,
		ParentLogID:   m.ParentLogID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}

	if m.CountsJSON != "" {
		var counts sync.RunCounts
		if err := json.Unmarshal([]byte(m.CountsJSON), &counts); err == nil {
			entry.Counts = counts
		}
	}
	if m.ErrorsJSON != "" {
		var details []sync.ErrorDetail
		if err := json.Unmarshal([]byte(m.ErrorsJSON), &details); err == nil {
			entry.ErrorDetails = details
		}
	}

	return entry
}

// FromDomain populates the persistence model from a domain ExecutionLogEntry.
func (m *ExecutionLogModel) FromDomain(e *sync.ExecutionLogEntry) {
	m.ID = e.ID
	m.TenantID = e.TenantID
	m.FlowName = e.FlowName
	m.FlowType = e.FlowType
	m.Status = e.Status
	m.StartedAt = e.StartedAt
	m.CompletedAt = e.CompletedAt
	m.DurationMs = e.Duration.Milliseconds()
	m.ErrorMsg = e.ErrorMsg
	m.RetryCount = e.RetryCount
	m.MaxRetries = e.MaxRetries
	m.NextRetryAt = e.NextRetryAt
	m.CorrelationID = e.CorrelationID
	m.ParentLogID = e.ParentLogID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt

	if countsJSON, err := json.Marshal(e.Counts); err == nil {
		m.CountsJSON = string(countsJSON)
	}
	if len(e.ErrorDetails) > 0 {
		if errorsJSON, err := json.Marshal(e.ErrorDetails); err == nil {
			m.ErrorsJSON = string(errorsJSON)
		}
	} else {
		m.ErrorsJSON = "[]"
	}
}

// ExecutionLogModelFromDomain creates a new persistence model from a domain ExecutionLogEntry.
func ExecutionLogModelFromDomain(e *sync.ExecutionLogEntry) *ExecutionLogModel {
	m := &ExecutionLogModel{}
	m.FromDomain(e)
	return m
}
