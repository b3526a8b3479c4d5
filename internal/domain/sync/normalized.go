package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UpsertOutcome reports whether an idempotent upsert inserted a new row or
// updated an existing one.
type UpsertOutcome string

const (
	UpsertInserted UpsertOutcome = "INSERTED"
	UpsertUpdated  UpsertOutcome = "UPDATED"
)

// NormalizedOrder is the query-ready representation of one upstream order.
// Unique on (tenant, external id, source); updated in place on every
// subsequent transform of the same external id.
type NormalizedOrder struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	SourceSystem SourceSystem
	ExternalID   string
	// RawRecordID back-references the raw record this row derives from
	RawRecordID     uuid.UUID
	Status          string
	Currency        string
	TotalAmount     decimal.Decimal
	DiscountAmount  decimal.Decimal
	FreightAmount   decimal.Decimal
	CustomerName    string
	CustomerEmail   string
	Tags            []string
	OrderedAt       time.Time
	UpstreamUpdated time.Time
	// OriginalPayload is the opaque snapshot of the source document
	OriginalPayload []byte
	// SyncedAt is bookkeeping only; it is the one field allowed to differ
	// between two transforms of the same payload
	SyncedAt  time.Time
	Lines     []OrderLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderLine is one line item of a normalized order, keyed by the parent
// order's external id.
type OrderLine struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	OrderExternalID string
	ExternalID      string
	ProductExternal string
	SKU             string
	Title           string
	Quantity        int64
	UnitPrice       decimal.Decimal
	LineTotal       decimal.Decimal
}

// NormalizedProduct is the query-ready representation of one upstream
// product and its variants.
type NormalizedProduct struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	SourceSystem    SourceSystem
	ExternalID      string
	RawRecordID     uuid.UUID
	Title           string
	Status          string
	Vendor          string
	Tags            []string
	Price           decimal.Decimal
	UpstreamUpdated time.Time
	OriginalPayload []byte
	SyncedAt        time.Time
	Variants        []ProductVariant
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProductVariant is one sellable variant keyed by the parent product's
// external id.
type ProductVariant struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	ProductExternalID string
	ExternalID        string
	SKU               string
	Title             string
	Price             decimal.Decimal
	InventoryQty      int64
}

// OrderRepository is the idempotent upsert port for normalized orders.
// Upsert writes the order and its full line set in one transaction: the
// previous line set is replaced so that line items removed upstream
// disappear rather than linger. CreatedAt is preserved across updates.
type OrderRepository interface {
	Upsert(ctx context.Context, order *NormalizedOrder) (UpsertOutcome, error)
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, source SourceSystem) (*NormalizedOrder, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// ProductRepository is the idempotent upsert port for normalized products,
// with the same full-replacement semantics for variants.
type ProductRepository interface {
	Upsert(ctx context.Context, product *NormalizedProduct) (UpsertOutcome, error)
	FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string, source SourceSystem) (*NormalizedProduct, error)
	CountByTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
}
