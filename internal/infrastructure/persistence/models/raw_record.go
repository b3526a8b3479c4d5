package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/sync"
)

// RawRecordModel is the persistence model for the RawRecord domain entity.
type RawRecordModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_raw_records_natural_key,priority:1;index:idx_raw_records_claim,priority:1"`
	SourceSystem sync.SourceSystem `gorm:"type:varchar(30);not null;uniqueIndex:idx_raw_records_natural_key,priority:2"`
	EntityType   sync.EntityType `gorm:"type:varchar(20);not null;uniqueIndex:idx_raw_records_natural_key,priority:3;index:idx_raw_records_claim,priority:2"`
	ExternalID   string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_raw_records_natural_key,priority:4"`
	Payload      []byte          `gorm:"type:jsonb;not null"`
	PayloadHash  string          `gorm:"type:varchar(64);not null"`
	ReceivedAt   time.Time       `gorm:"not null;index"`
	Processed    bool            `gorm:"not null;default:false;index:idx_raw_records_claim,priority:3"`
	ProcessedAt  *time.Time
	ClaimedBy    *uuid.UUID `gorm:"type:uuid;index"`
	ClaimedAt    *time.Time
	ErrorMsg     string `gorm:"type:text"`
	RetryCount   int    `gorm:"not null;default:0"`
	MaxRetries   int    `gorm:"not null;default:3"`
	NextRetryAt  *time.Time
	Exhausted    bool `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (RawRecordModel) TableName() string {
	return "raw_records"
}

// ToDomain converts the persistence model to a domain RawRecord entity.
func (m *RawRecordModel) ToDomain() *sync.RawRecord {
	return &sync.RawRecord{
		ID:           m.ID,
		TenantID:     m.TenantID,
		SourceSystem: m.SourceSystem,
		ExternalID:   m.ExternalID,
		EntityType:   m.EntityType,
		Payload:      m.Payload,
		PayloadHash:  m.PayloadHash,
		ReceivedAt:   m.ReceivedAt,
		Processed:    m.Processed,
		ProcessedAt:  m.ProcessedAt,
		ClaimedBy:    m.ClaimedBy,
		ClaimedAt:    m.ClaimedAt,
		ErrorMsg:     m.ErrorMsg,
		RetryCount:   m.RetryCount,
		MaxRetries:   m.MaxRetries,
		NextRetryAt:  m.NextRetryAt,
		Exhausted:    m.Exhausted,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain RawRecord entity.
func (m *RawRecordModel) FromDomain(r *sync.RawRecord) {
	m.ID = r.ID
	m.TenantID = r.TenantID
	m.SourceSystem = r.SourceSystem
	m.ExternalID = r.ExternalID
	m.EntityType = r.EntityType
	m.Payload = r.Payload
	m.PayloadHash = r.PayloadHash
	m.ReceivedAt = r.ReceivedAt
	m.Processed = r.Processed
	m.ProcessedAt = r.ProcessedAt
	m.ClaimedBy = r.ClaimedBy
	m.ClaimedAt = r.ClaimedAt
	m.ErrorMsg = r.ErrorMsg
	m.RetryCount = r.RetryCount
	m.MaxRetries = r.MaxRetries
	m.NextRetryAt = r.NextRetryAt
	m.Exhausted = r.Exhausted
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}

// RawRecordModelFromDomain creates a new persistence model from a domain RawRecord entity.
func RawRecordModelFromDomain(r *sync.RawRecord) *RawRecordModel {
	m := &RawRecordModel{}
	m.FromDomain(r)
	return m
}
