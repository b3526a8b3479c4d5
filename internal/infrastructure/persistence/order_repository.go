package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements sync.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

var _ sync.OrderRepository = (*GormOrderRepository)(nil)

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// isUniqueViolation reports whether an error is a uniqueness or constraint
// violation, across the Postgres and SQLite drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "constraint failed")
}

// Upsert writes the order and its line items in one transaction. An existing
// order keeps its id and CreatedAt; its line items are replaced wholesale so
// removed upstream lines do not linger.
func (r *GormOrderRepository) Upsert(ctx context.Context, order *sync.NormalizedOrder) (sync.UpsertOutcome, error) {
	outcome := sync.UpsertInserted
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.NormalizedOrderModel
		err := tx.Where(
			"tenant_id = ? AND source_system = ? AND external_id = ?",
			order.TenantID, order.SourceSystem, order.ExternalID,
		).First(&existing).Error

		now := time.Now().UTC()
		model := &models.NormalizedOrderModel{}
		model.FromDomain(order)

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if model.ID == uuid.Nil {
				model.ID = uuid.New()
			}
			model.CreatedAt = now
			model.UpdatedAt = now
			if err := tx.Create(model).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			outcome = sync.UpsertUpdated
			model.ID = existing.ID
			model.CreatedAt = existing.CreatedAt
			model.UpdatedAt = now
			if err := tx.Save(model).Error; err != nil {
				return err
			}
			if err := tx.Where(
				"tenant_id = ? AND order_external_id = ?",
				order.TenantID, order.ExternalID,
			).Delete(&models.OrderLineModel{}).Error; err != nil {
				return err
			}
		}

		if len(order.Lines) == 0 {
			return nil
		}
		lines := make([]models.OrderLineModel, len(order.Lines))
		for i, line := range order.Lines {
			lines[i] = models.OrderLineModelFromDomain(line)
		}
		return tx.Create(&lines).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return outcome, &sync.IntegrityError{ExternalID: order.ExternalID, Cause: err}
		}
		return outcome, err
	}
	return outcome, nil
}

// FindByExternalID retrieves one order with its line items.
func (r *GormOrderRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, source sync.SourceSystem) (*sync.NormalizedOrder, error) {
	var model models.NormalizedOrderModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_system = ? AND external_id = ?", tenantID, source, externalID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrNotFound
		}
		return nil, err
	}

	order := model.ToDomain()

	var lineModels []models.OrderLineModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_external_id = ?", tenantID, externalID).
		Order("external_id ASC").
		Find(&lineModels).Error; err != nil {
		return nil, err
	}
	for _, lm := range lineModels {
		order.Lines = append(order.Lines, lm.ToDomain())
	}

	return order, nil
}

// CountByTenant counts normalized orders for a tenant.
func (r *GormOrderRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NormalizedOrderModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}
