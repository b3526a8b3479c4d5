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

// GormTenantConfigRepository implements sync.TenantConfigRepository using GORM
type GormTenantConfigRepository struct {
	db *gorm.DB
}

var _ sync.TenantConfigRepository = (*GormTenantConfigRepository)(nil)

// NewGormTenantConfigRepository creates a new GormTenantConfigRepository
func NewGormTenantConfigRepository(db *gorm.DB) *GormTenantConfigRepository {
	return &GormTenantConfigRepository{db: db}
}

// Save creates or updates a tenant's sync settings.
func (r *GormTenantConfigRepository) Save(ctx context.Context, cfg *sync.TenantSyncConfig) error {
	model := models.TenantSyncConfigModelFromDomain(cfg)
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	model.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

// FindByTenant retrieves one tenant's settings.
func (r *GormTenantConfigRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*sync.TenantSyncConfig, error) {
	var model models.TenantSyncConfigModel
	if err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrInvalidTenantConfig
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindEnabled returns settings for every tenant with sync switched on.
func (r *GormTenantConfigRepository) FindEnabled(ctx context.Context) ([]sync.TenantSyncConfig, error) {
	var rows []models.TenantSyncConfigModel
	if err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("tenant_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	configs := make([]sync.TenantSyncConfig, len(rows))
	for i, row := range rows {
		configs[i] = *row.ToDomain()
	}
	return configs, nil
}

// UpdateLastSyncAt records the completion time of the tenant's latest
// successful cycle, used to derive the next incremental window.
func (r *GormTenantConfigRepository) UpdateLastSyncAt(ctx context.Context, tenantID uuid.UUID, syncedAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.TenantSyncConfigModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]any{
			"last_sync_at": syncedAt,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return sync.ErrInvalidTenantConfig
	}
	return nil
}
