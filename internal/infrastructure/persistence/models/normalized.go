package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/shopsync/backend/internal/domain/sync"
)

// NormalizedOrderModel is the persistence model for the NormalizedOrder domain entity.
// Line items live in their own table and are loaded separately.
type NormalizedOrderModel struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_normalized_orders_natural_key,priority:1"`
	SourceSystem    sync.SourceSystem `gorm:"type:varchar(30);not null;uniqueIndex:idx_normalized_orders_natural_key,priority:2"`
	ExternalID      string            `gorm:"type:varchar(100);not null;uniqueIndex:idx_normalized_orders_natural_key,priority:3"`
	RawRecordID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	Status          string            `gorm:"type:varchar(30);not null"`
	Currency        string            `gorm:"type:varchar(3);not null"`
	TotalAmount     decimal.Decimal   `gorm:"type:decimal(15,2);not null"`
	DiscountAmount  decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0"`
	FreightAmount   decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0"`
	CustomerName    string            `gorm:"type:varchar(255)"`
	CustomerEmail   string            `gorm:"type:varchar(255)"`
	TagsJSON        string            `gorm:"type:jsonb;column:tags"`
	OrderedAt       time.Time
	UpstreamUpdated time.Time
	OriginalPayload []byte    `gorm:"type:jsonb"`
	SyncedAt        time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NormalizedOrderModel) TableName() string {
	return "normalized_orders"
}

// ToDomain converts the persistence model to a domain NormalizedOrder.
func (m *NormalizedOrderModel) ToDomain() *sync.NormalizedOrder {
	order := &sync.NormalizedOrder{
		ID:              m.ID,
		TenantID:        m.TenantID,
		SourceSystem:    m.SourceSystem,
		ExternalID:      m.ExternalID,
		RawRecordID:     m.RawRecordID,
		Status:          m.Status,
		Currency:        m.Currency,
		TotalAmount:     m.TotalAmount,
		DiscountAmount:  m.DiscountAmount,
		FreightAmount:   m.FreightAmount,
		CustomerName:    m.CustomerName,
		CustomerEmail:   m.CustomerEmail,
		OrderedAt:       m.OrderedAt,
		UpstreamUpdated: m.UpstreamUpdated,
		OriginalPayload: m.OriginalPayload,
		SyncedAt:        m.SyncedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}

	if m.TagsJSON != "" {
		var tags []string
		if err := json.Unmarshal([]byte(m.TagsJSON), &tags); err == nil {
			order.Tags = tags
		}
	}

	return order
}

// FromDomain populates the persistence model from a domain NormalizedOrder.
func (m *NormalizedOrderModel) FromDomain(o *sync.NormalizedOrder) {
	m.ID = o.ID
	m.TenantID = o.TenantID
	m.SourceSystem = o.SourceSystem
	m.ExternalID = o.ExternalID
	m.RawRecordID = o.RawRecordID
	m.Status = o.Status
	m.Currency = o.Currency
	m.TotalAmount = o.TotalAmount
	m.DiscountAmount = o.DiscountAmount
	m.FreightAmount = o.FreightAmount
	m.CustomerName = o.CustomerName
	m.CustomerEmail = o.CustomerEmail
	m.OrderedAt = o.OrderedAt
	m.UpstreamUpdated = o.UpstreamUpdated
	m.OriginalPayload = o.OriginalPayload
	m.SyncedAt = o.SyncedAt
	m.CreatedAt = o.CreatedAt
	m.UpdatedAt = o.UpdatedAt

	if len(o.Tags) > 0 {
		if tagsJSON, err := json.Marshal(o.Tags); err == nil {
			m.TagsJSON = string(tagsJSON)
		}
	} else {
		m.TagsJSON = "[]"
	}
}

// OrderLineModel is the persistence model for one order line item.
type OrderLineModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_order_lines_natural_key,priority:1"`
	OrderExternalID string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_lines_natural_key,priority:2;index"`
	ExternalID      string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_order_lines_natural_key,priority:3"`
	ProductExternal string          `gorm:"type:varchar(100)"`
	SKU             string          `gorm:"type:varchar(100)"`
	Title           string          `gorm:"type:varchar(255)"`
	Quantity        int64           `gorm:"not null;default:0"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "normalized_order_lines"
}

// ToDomain converts the persistence model to a domain OrderLine.
func (m *OrderLineModel) ToDomain() sync.OrderLine {
	return sync.OrderLine{
		ID:              m.ID,
		TenantID:        m.TenantID,
		OrderExternalID: m.OrderExternalID,
		ExternalID:      m.ExternalID,
		ProductExternal: m.ProductExternal,
		SKU:             m.SKU,
		Title:           m.Title,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		LineTotal:       m.LineTotal,
	}
}

// OrderLineModelFromDomain creates a persistence model from a domain OrderLine.
func OrderLineModelFromDomain(l sync.OrderLine) OrderLineModel {
	id := l.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return OrderLineModel{
		ID:              id,
		TenantID:        l.TenantID,
		OrderExternalID: l.OrderExternalID,
		ExternalID:      l.ExternalID,
		ProductExternal: l.ProductExternal,
		SKU:             l.SKU,
		Title:           l.Title,
		Quantity:        l.Quantity,
		UnitPrice:       l.UnitPrice,
		LineTotal:       l.LineTotal,
	}
}

// NormalizedProductModel is the persistence model for the NormalizedProduct domain entity.
type NormalizedProductModel struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key"`
	TenantID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:idx_normalized_products_natural_key,priority:1"`
	SourceSystem    sync.SourceSystem `gorm:"type:varchar(30);not null;uniqueIndex:idx_normalized_products_natural_key,priority:2"`
	ExternalID      string            `gorm:"type:varchar(100);not null;uniqueIndex:idx_normalized_products_natural_key,priority:3"`
	RawRecordID     uuid.UUID         `gorm:"type:uuid;not null;index"`
	Title           string            `gorm:"type:varchar(255);not null"`
	Status          string            `gorm:"type:varchar(30)"`
	Vendor          string            `gorm:"type:varchar(255)"`
	TagsJSON        string            `gorm:"type:jsonb;column:tags"`
	Price           decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0"`
	UpstreamUpdated time.Time
	OriginalPayload []byte    `gorm:"type:jsonb"`
	SyncedAt        time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (NormalizedProductModel) TableName() string {
	return "normalized_products"
}

// ToDomain converts the persistence model to a domain NormalizedProduct.
func (m *NormalizedProductModel) ToDomain() *sync.NormalizedProduct {
	product := &sync.NormalizedProduct{
		ID:              m.ID,
		TenantID:        m.TenantID,
		SourceSystem:    m.SourceSystem,
		ExternalID:      m.ExternalID,
		RawRecordID:     m.RawRecordID,
		Title:           m.Title,
		Status:          m.Status,
		Vendor:          m.Vendor,
		Price:           m.Price,
		UpstreamUpdated: m.UpstreamUpdated,
		OriginalPayload: m.OriginalPayload,
		SyncedAt:        m.SyncedAt,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}

	if m.TagsJSON != "" {
		var tags []string
		if err := json.Unmarshal([]byte(m.TagsJSON), &tags); err == nil {
			product.Tags = tags
		}
	}

	return product
}

// FromDomain populates the persistence model from a domain NormalizedProduct.
func (m *NormalizedProductModel) FromDomain(p *sync.NormalizedProduct) {
	m.ID = p.ID
	m.TenantID = p.TenantID
	m.SourceSystem = p.SourceSystem
	m.ExternalID = p.ExternalID
	m.RawRecordID = p.RawRecordID
	m.Title = p.Title
	m.Status = p.Status
	m.Vendor = p.Vendor
	m.Price = p.Price
	m.UpstreamUpdated = p.UpstreamUpdated
	m.OriginalPayload = p.OriginalPayload
	m.SyncedAt = p.SyncedAt
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt

	if len(p.Tags) > 0 {
		if tagsJSON, err := json.Marshal(p.Tags); err == nil {
			m.TagsJSON = string(tagsJSON)
		}
	} else {
		m.TagsJSON = "[]"
	}
}

// ProductVariantModel is the persistence model for one product variant.
type ProductVariantModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_product_variants_natural_key,priority:1"`
	ProductExternalID string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_variants_natural_key,priority:2;index"`
	ExternalID        string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_variants_natural_key,priority:3"`
	SKU               string          `gorm:"type:varchar(100)"`
	Title             string          `gorm:"type:varchar(255)"`
	Price             decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0"`
	InventoryQty      int64           `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductVariantModel) TableName() string {
	return "normalized_product_variants"
}

// ToDomain converts the persistence model to a domain ProductVariant.
func (m *ProductVariantModel) ToDomain() sync.ProductVariant {
	return sync.ProductVariant{
		ID:                m.ID,
		TenantID:          m.TenantID,
		ProductExternalID: m.ProductExternalID,
		ExternalID:        m.ExternalID,
		SKU:               m.SKU,
		Title:             m.Title,
		Price:             m.Price,
		InventoryQty:      m.InventoryQty,
	}
}

// ProductVariantModelFromDomain creates a persistence model from a domain ProductVariant.
func ProductVariantModelFromDomain(v sync.ProductVariant) ProductVariantModel {
	id := v.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return ProductVariantModel{
		ID:                id,
		TenantID:          v.TenantID,
		ProductExternalID: v.ProductExternalID,
		ExternalID:        v.ExternalID,
		SKU:               v.SKU,
		Title:             v.Title,
		Price:             v.Price,
		InventoryQty:      v.InventoryQty,
	}
}
