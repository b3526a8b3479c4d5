package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormExecutionLogRepository implements sync.ExecutionLogRepository using GORM
type GormExecutionLogRepository struct {
	db *gorm.DB
}

var _ sync.ExecutionLogRepository = (*GormExecutionLogRepository)(nil)

// NewGormExecutionLogRepository creates a new GormExecutionLogRepository
func NewGormExecutionLogRepository(db *gorm.DB) *GormExecutionLogRepository {
	return &GormExecutionLogRepository{db: db}
}

// Save creates or updates a log entry.
func (r *GormExecutionLogRepository) Save(ctx context.Context, entry *sync.ExecutionLogEntry) error {
	model := models.ExecutionLogModelFromDomain(entry)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByID retrieves one entry.
func (r *GormExecutionLogRepository) FindByID(ctx context.Context, id uuid.UUID) (*sync.ExecutionLogEntry, error) {
	var model models.ExecutionLogModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrLogEntryNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCorrelation returns all entries of one orchestrated cycle, parent
// first, children in creation order.
func (r *GormExecutionLogRepository) FindByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]sync.ExecutionLogEntry, error) {
	var rows []models.ExecutionLogModel
	if err := r.db.WithContext(ctx).
		Where("correlation_id = ?", correlationID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]sync.ExecutionLogEntry, 0, len(rows))
	// Parent entries (no parent_log_id) sort ahead of their children.
	for _, row := range rows {
		if row.ParentLogID == nil {
			entries = append(entries, *row.ToDomain())
		}
	}
	for _, row := range rows {
		if row.ParentLogID != nil {
			entries = append(entries, *row.ToDomain())
		}
	}
	return entries, nil
}

// FindRecentByTenant returns the most recent runs for a tenant.
func (r *GormExecutionLogRepository) FindRecentByTenant(ctx context.Context, tenantID uuid.UUID, limit int) ([]sync.ExecutionLogEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.ExecutionLogModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]sync.ExecutionLogEntry, len(rows))
	for i, row := range rows {
		entries[i] = *row.ToDomain()
	}
	return entries, nil
}

// FindRetryable returns parent runs in retrying state whose next retry is
// due. Child step entries are excluded, they are re-run inside their parent.
func (r *GormExecutionLogRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]sync.ExecutionLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.ExecutionLogModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND parent_log_id IS NULL AND next_retry_at IS NOT NULL AND next_retry_at <= ?", sync.RunStatusRetrying, before).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]sync.ExecutionLogEntry, len(rows))
	for i, row := range rows {
		entries[i] = *row.ToDomain()
	}
	return entries, nil
}
