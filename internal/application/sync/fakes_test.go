package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/shopsync/backend/internal/domain/sync"
)

// fakeClient serves scripted pages per entity type.
type fakeClient struct {
	mu      gosync.Mutex
	pages   map[domain.EntityType][]*domain.Page
	err     error
	calls   int
	cursors []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{pages: make(map[domain.EntityType][]*domain.Page)}
}

func (c *fakeClient) FetchPage(_ context.Context, _ *domain.TenantSyncConfig, entityType domain.EntityType, cursor string, _ time.Time) (*domain.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.cursors = append(c.cursors, cursor)
	if c.err != nil {
		return nil, c.err
	}
	queue := c.pages[entityType]
	if len(queue) == 0 {
		return &domain.Page{Done: true, QuotaRemaining: -1}, nil
	}
	page := queue[0]
	c.pages[entityType] = queue[1:]
	return page, nil
}

// memRawRepo is an in-memory RawRecordRepository.
type memRawRepo struct {
	mu      gosync.Mutex
	records map[uuid.UUID]*domain.RawRecord

	upsertErr error
	claimErr  error
	released  []uuid.UUID
}

func newMemRawRepo() *memRawRepo {
	return &memRawRepo{records: make(map[uuid.UUID]*domain.RawRecord)}
}

func (r *memRawRepo) add(record *domain.RawRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
}

func (r *memRawRepo) Upsert(_ context.Context, record *domain.RawRecord) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return uuid.Nil, r.upsertErr
	}
	for _, existing := range r.records {
		if existing.TenantID == record.TenantID &&
			existing.SourceSystem == record.SourceSystem &&
			existing.ExternalID == record.ExternalID &&
			existing.EntityType == record.EntityType {
			if existing.PayloadHash != record.PayloadHash {
				existing.Payload = record.Payload
				existing.PayloadHash = record.PayloadHash
				existing.Processed = false
			}
			return existing.ID, nil
		}
	}
	clone := *record
	r.records[clone.ID] = &clone
	return clone.ID, nil
}

func (r *memRawRepo) ClaimBatch(_ context.Context, tenantID uuid.UUID, entityType domain.EntityType, batchSize int, claimToken uuid.UUID) ([]domain.RawRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	now := time.Now().UTC()
	var out []domain.RawRecord
	for _, rec := range r.records {
		if len(out) >= batchSize {
			break
		}
		if rec.TenantID != tenantID || rec.EntityType != entityType || !rec.Claimable(now) {
			continue
		}
		token := claimToken
		rec.ClaimedBy = &token
		rec.ClaimedAt = &now
		out = append(out, *rec)
	}
	return out, nil
}

func (r *memRawRepo) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrRawRecordNotFound
	}
	rec.MarkProcessed()
	return nil
}

func (r *memRawRepo) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, backoff domain.Backoff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return domain.ErrRawRecordNotFound
	}
	rec.MarkFailed(errMsg, backoff)
	return nil
}

func (r *memRawRepo) ReleaseClaims(_ context.Context, claimToken uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, claimToken)
	for _, rec := range r.records {
		if rec.ClaimedBy != nil && *rec.ClaimedBy == claimToken {
			rec.ClaimedBy = nil
			rec.ClaimedAt = nil
		}
	}
	return nil
}

func (r *memRawRepo) CountExhausted(_ context.Context, tenantID uuid.UUID, entityType domain.EntityType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.EntityType == entityType && rec.Exhausted {
			n++
		}
	}
	return n, nil
}

func (r *memRawRepo) FindByExternalID(_ context.Context, tenantID uuid.UUID, externalID string, source domain.SourceSystem, entityType domain.EntityType) (*domain.RawRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.TenantID == tenantID && rec.ExternalID == externalID && rec.SourceSystem == source && rec.EntityType == entityType {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, domain.ErrRawRecordNotFound
}

func (r *memRawRepo) byExternalID(externalID string) *domain.RawRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ExternalID == externalID {
			return rec
		}
	}
	return nil
}

// memOrderRepo is an in-memory OrderRepository.
type memOrderRepo struct {
	mu        gosync.Mutex
	orders    map[string]*domain.NormalizedOrder
	upsertErr error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*domain.NormalizedOrder)}
}

func (r *memOrderRepo) Upsert(_ context.Context, order *domain.NormalizedOrder) (domain.UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.upsertErr != nil {
		return "", r.upsertErr
	}
	key := order.TenantID.String() + "/" + order.ExternalID
	if _, ok := r.orders[key]; ok {
		r.orders[key] = order
		return domain.UpsertUpdated, nil
	}
	r.orders[key] = order
	return domain.UpsertInserted, nil
}

func (r *memOrderRepo) FindByExternalID(_ context.Context, tenantID uuid.UUID, externalID string, _ domain.SourceSystem) (*domain.NormalizedOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[tenantID.String()+"/"+externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

func (r *memOrderRepo) CountByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key := range r.orders {
		if len(key) > 36 && key[:36] == tenantID.String() {
			n++
		}
	}
	return n, nil
}

// memProductRepo is an in-memory ProductRepository.
type memProductRepo struct {
	mu       gosync.Mutex
	products map[string]*domain.NormalizedProduct
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: make(map[string]*domain.NormalizedProduct)}
}

func (r *memProductRepo) Upsert(_ context.Context, product *domain.NormalizedProduct) (domain.UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := product.TenantID.String() + "/" + product.ExternalID
	if _, ok := r.products[key]; ok {
		r.products[key] = product
		return domain.UpsertUpdated, nil
	}
	r.products[key] = product
	return domain.UpsertInserted, nil
}

func (r *memProductRepo) FindByExternalID(_ context.Context, tenantID uuid.UUID, externalID string, _ domain.SourceSystem) (*domain.NormalizedProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[tenantID.String()+"/"+externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return product, nil
}

func (r *memProductRepo) CountByTenant(_ context.Context, tenantID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key := range r.products {
		if len(key) > 36 && key[:36] == tenantID.String() {
			n++
		}
	}
	return n, nil
}

// memLogRepo is an in-memory ExecutionLogRepository.
type memLogRepo struct {
	mu      gosync.Mutex
	entries map[uuid.UUID]*domain.ExecutionLogEntry
	saveErr error
}

func newMemLogRepo() *memLogRepo {
	return &memLogRepo{entries: make(map[uuid.UUID]*domain.ExecutionLogEntry)}
}

func (r *memLogRepo) Save(_ context.Context, entry *domain.ExecutionLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	clone := *entry
	r.entries[clone.ID] = &clone
	return nil
}

func (r *memLogRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.ExecutionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[id]
	if !ok {
		return nil, domain.ErrLogEntryNotFound
	}
	clone := *entry
	return &clone, nil
}

func (r *memLogRepo) FindByCorrelation(_ context.Context, correlationID uuid.UUID) ([]domain.ExecutionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExecutionLogEntry
	for _, entry := range r.entries {
		if entry.CorrelationID == correlationID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (r *memLogRepo) FindRecentByTenant(_ context.Context, tenantID uuid.UUID, limit int) ([]domain.ExecutionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExecutionLogEntry
	for _, entry := range r.entries {
		if entry.TenantID == tenantID {
			out = append(out, *entry)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memLogRepo) FindRetryable(_ context.Context, before time.Time, limit int) ([]domain.ExecutionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExecutionLogEntry
	for _, entry := range r.entries {
		if entry.Status == domain.RunStatusRetrying && entry.ParentLogID == nil && entry.NextRetryAt != nil && !entry.NextRetryAt.After(before) {
			out = append(out, *entry)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memLogRepo) byFlow(flow domain.FlowType) []*domain.ExecutionLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ExecutionLogEntry
	for _, entry := range r.entries {
		if entry.FlowType == flow {
			out = append(out, entry)
		}
	}
	return out
}

func (r *memLogRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// memConfigRepo is an in-memory TenantConfigRepository.
type memConfigRepo struct {
	mu      gosync.Mutex
	configs map[uuid.UUID]*domain.TenantSyncConfig
}

func newMemConfigRepo() *memConfigRepo {
	return &memConfigRepo{configs: make(map[uuid.UUID]*domain.TenantSyncConfig)}
}

func (r *memConfigRepo) Save(_ context.Context, cfg *domain.TenantSyncConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *cfg
	r.configs[cfg.TenantID] = &clone
	return nil
}

func (r *memConfigRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) (*domain.TenantSyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[tenantID]
	if !ok {
		return nil, domain.ErrInvalidTenantConfig
	}
	clone := *cfg
	return &clone, nil
}

func (r *memConfigRepo) FindEnabled(_ context.Context) ([]domain.TenantSyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.TenantSyncConfig
	for _, cfg := range r.configs {
		if cfg.Enabled {
			out = append(out, *cfg)
		}
	}
	return out, nil
}

func (r *memConfigRepo) UpdateLastSyncAt(_ context.Context, tenantID uuid.UUID, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[tenantID]
	if !ok {
		return domain.ErrInvalidTenantConfig
	}
	cfg.LastSyncAt = &syncedAt
	return nil
}

// fakeNotifier records deliveries and signals each one on a channel.
type fakeNotifier struct {
	mu        gosync.Mutex
	urls      []string
	entries   []*domain.ExecutionLogEntry
	delivered chan struct{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{delivered: make(chan struct{}, 16)}
}

func (n *fakeNotifier) NotifyRunFinished(_ context.Context, url string, entry *domain.ExecutionLogEntry) {
	n.mu.Lock()
	n.urls = append(n.urls, url)
	n.entries = append(n.entries, entry)
	n.mu.Unlock()
	n.delivered <- struct{}{}
}

var (
	_ domain.Client                 = (*fakeClient)(nil)
	_ domain.RawRecordRepository    = (*memRawRepo)(nil)
	_ domain.OrderRepository        = (*memOrderRepo)(nil)
	_ domain.ProductRepository      = (*memProductRepo)(nil)
	_ domain.ExecutionLogRepository = (*memLogRepo)(nil)
	_ domain.TenantConfigRepository = (*memConfigRepo)(nil)
	_ RunNotifier                   = (*fakeNotifier)(nil)
)
