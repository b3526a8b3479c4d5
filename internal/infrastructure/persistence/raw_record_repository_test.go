package persistence

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	domain "github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/infrastructure/persistence/models"
)

func setupRawRecordTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.RawRecordModel{}))
	return db
}

func newTestRawRecord(tenantID uuid.UUID, externalID string, payload string) *domain.RawRecord {
	return domain.NewRawRecord(tenantID, domain.SourceShopCommerce, externalID, domain.EntityTypeOrder, []byte(payload), 3)
}

func TestRawRecordRepository_Upsert(t *testing.T) {
	db := setupRawRecordTestDB(t)
	repo := NewGormRawRecordRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("inserts a new record", func(t *testing.T) {
		record := newTestRawRecord(tenantID, "ord-1", `{"id": "ord-1", "total": "10.00"}`)

		id, err := repo.Upsert(ctx, record)
		require.NoError(t, err)
		assert.Equal(t, record.ID, id)

		found, err := repo.FindByExternalID(ctx, tenantID, "ord-1", domain.SourceShopCommerce, domain.EntityTypeOrder)
		require.NoError(t, err)
		assert.Equal(t, record.Payload, found.Payload)
		assert.False(t, found.Processed)
	})

	t.Run("identical payload is a no-op", func(t *testing.T) {
		record := newTestRawRecord(tenantID, "ord-2", `{"id": "ord-2"}`)
		id, err := repo.Upsert(ctx, record)
		require.NoError(t, err)

		require.NoError(t, repo.MarkProcessed(ctx, id))

		again := newTestRawRecord(tenantID, "ord-2", `{"id": "ord-2"}`)
		sameID, err := repo.Upsert(ctx, again)
		require.NoError(t, err)
		assert.Equal(t, id, sameID, "existing row id is returned")

		found, err := repo.FindByExternalID(ctx, tenantID, "ord-2", domain.SourceShopCommerce, domain.EntityTypeOrder)
		require.NoError(t, err)
		assert.True(t, found.Processed, "processed flag survives a no-op upsert")
	})

	t.Run("changed payload resets processing state", func(t *testing.T) {
		record := newTestRawRecord(tenantID, "ord-3", `{"id": "ord-3", "status": "pending"}`)
		id, err := repo.Upsert(ctx, record)
		require.NoError(t, err)
		require.NoError(t, repo.MarkProcessed(ctx, id))

		changed := newTestRawRecord(tenantID, "ord-3", `{"id": "ord-3", "status": "paid"}`)
		sameID, err := repo.Upsert(ctx, changed)
		require.NoError(t, err)
		assert.Equal(t, id, sameID)

		found, err := repo.FindByExternalID(ctx, tenantID, "ord-3", domain.SourceShopCommerce, domain.EntityTypeOrder)
		require.NoError(t, err)
		assert.False(t, found.Processed, "changed payload is pending again")
		assert.Equal(t, changed.Payload, found.Payload)
		assert.Zero(t, found.RetryCount)
	})

	t.Run("tenants do not collide on external id", func(t *testing.T) {
		otherTenant := uuid.New()
		record := newTestRawRecord(otherTenant, "ord-1", `{"id": "ord-1", "total": "99.00"}`)

		_, err := repo.Upsert(ctx, record)
		require.NoError(t, err)

		found, err := repo.FindByExternalID(ctx, otherTenant, "ord-1", domain.SourceShopCommerce, domain.EntityTypeOrder)
		require.NoError(t, err)
		assert.Equal(t, otherTenant, found.TenantID)
	})

	t.Run("entity types do not collide on external id", func(t *testing.T) {
		order := domain.NewRawRecord(tenantID, domain.SourceShopCommerce, "shared-1", domain.EntityTypeOrder, []byte(`{"kind": "order"}`), 3)
		product := domain.NewRawRecord(tenantID, domain.SourceShopCommerce, "shared-1", domain.EntityTypeProduct, []byte(`{"kind": "product"}`), 3)

		orderID, err := repo.Upsert(ctx, order)
		require.NoError(t, err)
		productID, err := repo.Upsert(ctx, product)
		require.NoError(t, err)
		require.NotEqual(t, orderID, productID, "one row per entity type")

		found, err := repo.FindByExternalID(ctx, tenantID, "shared-1", domain.SourceShopCommerce, domain.EntityTypeProduct)
		require.NoError(t, err)
		assert.Equal(t, productID, found.ID)
		assert.Equal(t, product.Payload, found.Payload)
	})
}

func TestRawRecordRepository_ClaimBatch(t *testing.T) {
	db := setupRawRecordTestDB(t)
	repo := NewGormRawRecordRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	seed := func(t *testing.T, externalID string) uuid.UUID {
		t.Helper()
		record := newTestRawRecord(tenantID, externalID, `{"id": "`+externalID+`"}`)
		id, err := repo.Upsert(ctx, record)
		require.NoError(t, err)
		return id
	}

	t.Run("claims oldest first up to batch size", func(t *testing.T) {
		seed(t, "c-1")
		seed(t, "c-2")
		seed(t, "c-3")

		token := uuid.New()
		claimed, err := repo.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 2, token)
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, "c-1", claimed[0].ExternalID)
		assert.Equal(t, "c-2", claimed[1].ExternalID)
		for _, rec := range claimed {
			require.NotNil(t, rec.ClaimedBy)
			assert.Equal(t, token, *rec.ClaimedBy)
		}
	})

	t.Run("second claimer gets disjoint rows", func(t *testing.T) {
		token := uuid.New()
		claimed, err := repo.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 10, token)
		require.NoError(t, err)
		require.Len(t, claimed, 1, "only the unclaimed row remains")
		assert.Equal(t, "c-3", claimed[0].ExternalID)

		empty, err := repo.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 10, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("release makes rows claimable again", func(t *testing.T) {
		token := uuid.New()
		db2 := setupRawRecordTestDB(t)
		repo2 := NewGormRawRecordRepository(db2)

		record := newTestRawRecord(tenantID, "r-1", `{"id": "r-1"}`)
		_, err := repo2.Upsert(ctx, record)
		require.NoError(t, err)

		claimed, err := repo2.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 10, token)
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		require.NoError(t, repo2.ReleaseClaims(ctx, token))

		reclaimed, err := repo2.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 10, uuid.New())
		require.NoError(t, err)
		assert.Len(t, reclaimed, 1)
	})

	t.Run("concurrent claimers never share a row", func(t *testing.T) {
		db4 := setupRawRecordTestDB(t)
		sqlDB, err := db4.DB()
		require.NoError(t, err)
		sqlDB.SetMaxOpenConns(1)
		repo4 := NewGormRawRecordRepository(db4)

		const rows = 10
		for i := 0; i < rows; i++ {
			record := newTestRawRecord(tenantID, fmt.Sprintf("cc-%02d", i), `{"id": "cc"}`)
			_, err := repo4.Upsert(ctx, record)
			require.NoError(t, err)
		}

		const claimers = 4
		results := make([][]domain.RawRecord, claimers)
		errs := make([]error, claimers)
		var wg sync.WaitGroup
		for i := 0; i < claimers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = repo4.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 3, uuid.New())
			}(i)
		}
		wg.Wait()

		seen := make(map[uuid.UUID]int)
		total := 0
		for i := 0; i < claimers; i++ {
			require.NoError(t, errs[i])
			for _, rec := range results[i] {
				seen[rec.ID]++
				total++
			}
		}
		assert.Equal(t, rows, total, "every row is claimed exactly once")
		for id, n := range seen {
			assert.Equalf(t, 1, n, "row %s claimed %d times", id, n)
		}
	})

	t.Run("skips records whose retry is not due", func(t *testing.T) {
		db3 := setupRawRecordTestDB(t)
		repo3 := NewGormRawRecordRepository(db3)

		record := newTestRawRecord(tenantID, "f-1", `{"id": "f-1"}`)
		id, err := repo3.Upsert(ctx, record)
		require.NoError(t, err)

		backoff := domain.Backoff{Base: time.Hour, Max: 2 * time.Hour}
		require.NoError(t, repo3.MarkFailed(ctx, id, "bad payload", backoff))

		claimed, err := repo3.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 10, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, claimed, "retry is an hour away")
	})
}

func TestRawRecordRepository_MarkFailed(t *testing.T) {
	db := setupRawRecordTestDB(t)
	repo := NewGormRawRecordRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("exhausts after max retries and counts it", func(t *testing.T) {
		record := domain.NewRawRecord(tenantID, domain.SourceShopCommerce, "x-1", domain.EntityTypeOrder, []byte(`{}`), 2)
		id, err := repo.Upsert(ctx, record)
		require.NoError(t, err)

		backoff := domain.Backoff{Base: time.Millisecond, Max: time.Millisecond}
		require.NoError(t, repo.MarkFailed(ctx, id, "first", backoff))
		require.NoError(t, repo.MarkFailed(ctx, id, "second", backoff))

		found, err := repo.FindByExternalID(ctx, tenantID, "x-1", domain.SourceShopCommerce, domain.EntityTypeOrder)
		require.NoError(t, err)
		assert.True(t, found.Exhausted)
		assert.Equal(t, 2, found.RetryCount)
		assert.False(t, found.Processed)

		count, err := repo.CountExhausted(ctx, tenantID, domain.EntityTypeOrder)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		claimed, err := repo.ClaimBatch(ctx, tenantID, domain.EntityTypeOrder, 10, uuid.New())
		require.NoError(t, err)
		assert.Empty(t, claimed, "exhausted records are never claimed")
	})

	t.Run("unknown id returns not found", func(t *testing.T) {
		err := repo.MarkFailed(ctx, uuid.New(), "x", domain.DefaultBackoff())
		assert.ErrorIs(t, err, domain.ErrRawRecordNotFound)
	})
}

func TestRawRecordRepository_MarkProcessed_NotFound(t *testing.T) {
	db := setupRawRecordTestDB(t)
	repo := NewGormRawRecordRepository(db)

	err := repo.MarkProcessed(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrRawRecordNotFound)
}
