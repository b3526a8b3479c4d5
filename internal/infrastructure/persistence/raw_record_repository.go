package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormRawRecordRepository implements sync.RawRecordRepository using GORM
type GormRawRecordRepository struct {
	db *gorm.DB
}

var _ sync.RawRecordRepository = (*GormRawRecordRepository)(nil)

// NewGormRawRecordRepository creates a new GormRawRecordRepository
func NewGormRawRecordRepository(db *gorm.DB) *GormRawRecordRepository {
	return &GormRawRecordRepository{db: db}
}

// Upsert inserts the record, or refreshes the stored payload when the natural
// key exists and the incoming payload differs. An identical payload leaves
// the row untouched so the processed flag survives re-fetches.
func (r *GormRawRecordRepository) Upsert(ctx context.Context, record *sync.RawRecord) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.RawRecordModel
		err := tx.Where(
			"tenant_id = ? AND source_system = ? AND entity_type = ? AND external_id = ?",
			record.TenantID, record.SourceSystem, record.EntityType, record.ExternalID,
		).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			model := models.RawRecordModelFromDomain(record)
			if err := tx.Create(model).Error; err != nil {
				return err
			}
			id = model.ID
			return nil
		}
		if err != nil {
			return err
		}

		id = existing.ID
		if existing.PayloadHash == record.PayloadHash {
			// No-op: same payload seen again
			return nil
		}

		now := time.Now().UTC()
		return tx.Model(&models.RawRecordModel{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"payload":       record.Payload,
				"payload_hash":  record.PayloadHash,
				"received_at":   record.ReceivedAt,
				"processed":     false,
				"processed_at":  nil,
				"claimed_by":    nil,
				"claimed_at":    nil,
				"error_msg":     "",
				"retry_count":   0,
				"next_retry_at": nil,
				"exhausted":     false,
				"updated_at":    now,
			}).Error
	})
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ClaimBatch claims up to batchSize eligible records for the given token.
// The claim is a compare-and-set on claimed_by, so two concurrent cycles
// never receive overlapping rows.
func (r *GormRawRecordRepository) ClaimBatch(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType, batchSize int, claimToken uuid.UUID) ([]sync.RawRecord, error) {
	now := time.Now().UTC()

	err := r.db.WithContext(ctx).Exec(`
		UPDATE raw_records
		SET claimed_by = ?, claimed_at = ?, updated_at = ?
		WHERE id IN (
			SELECT id FROM raw_records
			WHERE tenant_id = ?
			  AND entity_type = ?
			  AND processed = ?
			  AND exhausted = ?
			  AND claimed_by IS NULL
			  AND (next_retry_at IS NULL OR next_retry_at <= ?)
			ORDER BY received_at ASC
			LIMIT ?
		) AND claimed_by IS NULL`,
		claimToken, now, now,
		tenantID, entityType, false, false, now, batchSize,
	).Error
	if err != nil {
		return nil, err
	}

	var rows []models.RawRecordModel
	if err := r.db.WithContext(ctx).
		Where("claimed_by = ?", claimToken).
		Order("received_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	records := make([]sync.RawRecord, len(rows))
	for i, row := range rows {
		records[i] = *row.ToDomain()
	}
	return records, nil
}

// MarkProcessed records a successful transform for the row.
func (r *GormRawRecordRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).Model(&models.RawRecordModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"processed":     true,
			"processed_at":  now,
			"claimed_by":    nil,
			"claimed_at":    nil,
			"error_msg":     "",
			"next_retry_at": nil,
			"updated_at":    now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrRawRecordNotFound
	}
	return nil
}

// MarkFailed records a failed transform attempt, schedules the next retry,
// and marks the record exhausted once its budget is spent.
func (r *GormRawRecordRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, backoff sync.Backoff) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.RawRecordModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return sync.ErrRawRecordNotFound
			}
			return err
		}

		record := model.ToDomain()
		record.MarkFailed(errMsg, backoff)

		return tx.Model(&models.RawRecordModel{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"retry_count":   record.RetryCount,
				"error_msg":     record.ErrorMsg,
				"claimed_by":    nil,
				"claimed_at":    nil,
				"next_retry_at": record.NextRetryAt,
				"exhausted":     record.Exhausted,
				"updated_at":    record.UpdatedAt,
			}).Error
	})
}

// ReleaseClaims clears claims held by the given token.
func (r *GormRawRecordRepository) ReleaseClaims(ctx context.Context, claimToken uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.RawRecordModel{}).
		Where("claimed_by = ?", claimToken).
		Updates(map[string]any{
			"claimed_by": nil,
			"claimed_at": nil,
			"updated_at": time.Now().UTC(),
		}).Error
}

// CountExhausted counts records past their retry budget for a tenant and entity type.
func (r *GormRawRecordRepository) CountExhausted(ctx context.Context, tenantID uuid.UUID, entityType sync.EntityType) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.RawRecordModel{}).
		Where("tenant_id = ? AND entity_type = ? AND exhausted = ?", tenantID, entityType, true).
		Count(&count).Error
	return count, err
}

// FindByExternalID retrieves one record by its natural key.
func (r *GormRawRecordRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, source sync.SourceSystem, entityType sync.EntityType) (*sync.RawRecord, error) {
	var model models.RawRecordModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_system = ? AND entity_type = ? AND external_id = ?", tenantID, source, entityType, externalID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrRawRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}
