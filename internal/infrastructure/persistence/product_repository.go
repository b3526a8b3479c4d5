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

// GormProductRepository implements sync.ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

var _ sync.ProductRepository = (*GormProductRepository)(nil)

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// Upsert writes the product and its variants in one transaction, replacing
// the variant set wholesale on update. Existing products keep their id and
// CreatedAt.
func (r *GormProductRepository) Upsert(ctx context.Context, product *sync.NormalizedProduct) (sync.UpsertOutcome, error) {
	outcome := sync.UpsertInserted
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.NormalizedProductModel
		err := tx.Where(
			"tenant_id = ? AND source_system = ? AND external_id = ?",
			product.TenantID, product.SourceSystem, product.ExternalID,
		).First(&existing).Error

		now := time.Now().UTC()
		model := &models.NormalizedProductModel{}
		model.FromDomain(product)

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
				"tenant_id = ? AND product_external_id = ?",
				product.TenantID, product.ExternalID,
			).Delete(&models.ProductVariantModel{}).Error; err != nil {
				return err
			}
		}

		if len(product.Variants) == 0 {
			return nil
		}
		variants := make([]models.ProductVariantModel, len(product.Variants))
		for i, variant := range product.Variants {
			variants[i] = models.ProductVariantModelFromDomain(variant)
		}
		return tx.Create(&variants).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return outcome, &sync.IntegrityError{ExternalID: product.ExternalID, Cause: err}
		}
		return outcome, err
	}
	return outcome, nil
}

// FindByExternalID retrieves one product with its variants.
func (r *GormProductRepository) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, source sync.SourceSystem) (*sync.NormalizedProduct, error) {
	var model models.NormalizedProductModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND source_system = ? AND external_id = ?", tenantID, source, externalID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sync.ErrNotFound
		}
		return nil, err
	}

	product := model.ToDomain()

	var variantModels []models.ProductVariantModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND product_external_id = ?", tenantID, externalID).
		Order("external_id ASC").
		Find(&variantModels).Error; err != nil {
		return nil, err
	}
	for _, vm := range variantModels {
		product.Variants = append(product.Variants, vm.ToDomain())
	}

	return product, nil
}

// CountByTenant counts normalized products for a tenant.
func (r *GormProductRepository) CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.NormalizedProductModel{}).
		Where("tenant_id = ?", tenantID).
		Count(&count).Error
	return count, err
}
