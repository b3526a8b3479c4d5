package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// SourceSystem tags which upstream platform a raw record came from.
type SourceSystem string

const (
	// SourceShopCommerce is the primary upstream e-commerce platform
	SourceShopCommerce SourceSystem = "SHOP_COMMERCE"
)

// RawRecord is the immutable audit copy of one upstream payload. Fetch
// creates it; Transform mutates only the processing bookkeeping fields.
// Raw records are never deleted.
type RawRecord struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	SourceSystem SourceSystem
	ExternalID   string
	EntityType   EntityType
	// Payload is the verbatim upstream JSON document
	Payload []byte
	// PayloadHash lets Upsert detect no-op writes without comparing bytes in SQL
	PayloadHash string
	ReceivedAt  time.Time
	Processed   bool
	ProcessedAt *time.Time
	// ClaimedBy marks the transform cycle currently holding this record
	ClaimedBy *uuid.UUID
	ClaimedAt *time.Time
	ErrorMsg  string
	RetryCount int
	MaxRetries int
	NextRetryAt *time.Time
	// Exhausted marks records past their retry budget; they stay
	// processed=false for the audit trail but are excluded from claims.
	Exhausted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewRawRecord builds a record for a freshly fetched payload.
func NewRawRecord(tenantID uuid.UUID, source SourceSystem, externalID string, entityType EntityType, payload []byte, maxRetries int) *RawRecord {
	now := time.Now().UTC()
	return &RawRecord{
		ID:           uuid.New(),
		TenantID:     tenantID,
		SourceSystem: source,
		ExternalID:   externalID,
		EntityType:   entityType,
		Payload:      payload,
		PayloadHash:  HashPayload(payload),
		ReceivedAt:   now,
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HashPayload returns the hex SHA-256 of a payload, used for no-op detection
// on upsert.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// MarkProcessed records a successful transform.
func (r *RawRecord) MarkProcessed() {
	now := time.Now().UTC()
	r.Processed = true
	r.ProcessedAt = &now
	r.ErrorMsg = ""
	r.ClaimedBy = nil
	r.ClaimedAt = nil
	r.NextRetryAt = nil
	r.UpdatedAt = now
}

// MarkFailed records a failed transform attempt. The retry count increments
// and the next retry is scheduled via the shared backoff policy; once the
// budget is spent the record is marked exhausted and never claimed again.
func (r *RawRecord) MarkFailed(errMsg string, backoff Backoff) {
	now := time.Now().UTC()
	r.RetryCount++
	r.ErrorMsg = errMsg
	r.ClaimedBy = nil
	r.ClaimedAt = nil
	r.UpdatedAt = now

	if r.RetryCount >= r.MaxRetries {
		r.Exhausted = true
		r.NextRetryAt = nil
		return
	}
	next := backoff.NextRetryAt(now, r.RetryCount-1)
	r.NextRetryAt = &next
}

// Claimable reports whether a transform cycle may claim this record at the
// given instant.
func (r *RawRecord) Claimable(now time.Time) bool {
	if r.Processed || r.Exhausted || r.ClaimedBy != nil {
		return false
	}
	if r.RetryCount == 0 {
		return true
	}
	return r.NextRetryAt != nil && !now.Before(*r.NextRetryAt)
}

// RawRecordRepository defines the persistence port for raw records.
type RawRecordRepository interface {
	// Upsert inserts the record or, when the natural key
	// (tenant, source, entity type, external id) exists, replaces
	// payload/received timestamp and resets the processed flag -- but only
	// if the incoming payload differs from the stored one. Identical
	// payloads are a no-op. Returns the row id.
	Upsert(ctx context.Context, record *RawRecord) (uuid.UUID, error)

	// ClaimBatch atomically claims up to batchSize unprocessed, retry-due,
	// non-exhausted records for the tenant and entity type, oldest first.
	// Two concurrent callers never receive overlapping rows.
	ClaimBatch(ctx context.Context, tenantID uuid.UUID, entityType EntityType, batchSize int, claimToken uuid.UUID) ([]RawRecord, error)

	// MarkProcessed records a successful transform for the row.
	MarkProcessed(ctx context.Context, id uuid.UUID) error

	// MarkFailed records a failed attempt, schedules the next retry, and
	// marks the record exhausted once the budget is spent.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, backoff Backoff) error

	// ReleaseClaims clears claims held by the given token, used when a
	// transform cycle aborts between claim and outcome.
	ReleaseClaims(ctx context.Context, claimToken uuid.UUID) error

	// CountExhausted counts records past their retry budget for a tenant and
	// entity type, surfaced in the run's error aggregate.
	CountExhausted(ctx context.Context, tenantID uuid.UUID, entityType EntityType) (int64, error)

	// FindByExternalID retrieves one record by its natural key. The entity
	// type is part of the key, upstream ids are only unique per entity.
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, source SourceSystem, entityType EntityType) (*RawRecord, error)
}
