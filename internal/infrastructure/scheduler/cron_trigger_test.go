package scheduler

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domain "github.com/shopsync/backend/internal/domain/sync"
)

// stubConfigRepo serves a fixed set of tenant configs.
type stubConfigRepo struct {
	mu      gosync.Mutex
	configs []domain.TenantSyncConfig
	err     error
}

func (r *stubConfigRepo) Save(_ context.Context, cfg *domain.TenantSyncConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, *cfg)
	return nil
}

func (r *stubConfigRepo) FindByTenant(_ context.Context, tenantID uuid.UUID) (*domain.TenantSyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.configs {
		if r.configs[i].TenantID == tenantID {
			clone := r.configs[i]
			return &clone, nil
		}
	}
	return nil, domain.ErrInvalidTenantConfig
}

func (r *stubConfigRepo) FindEnabled(_ context.Context) ([]domain.TenantSyncConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.TenantSyncConfig
	for _, cfg := range r.configs {
		if cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out, nil
}

func (r *stubConfigRepo) UpdateLastSyncAt(_ context.Context, tenantID uuid.UUID, syncedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.configs {
		if r.configs[i].TenantID == tenantID {
			r.configs[i].LastSyncAt = &syncedAt
			return nil
		}
	}
	return domain.ErrInvalidTenantConfig
}

// stubLogRepo serves a fixed set of retryable entries.
type stubLogRepo struct {
	mu        gosync.Mutex
	retryable []domain.ExecutionLogEntry
}

func (r *stubLogRepo) Save(context.Context, *domain.ExecutionLogEntry) error { return nil }

func (r *stubLogRepo) FindByID(context.Context, uuid.UUID) (*domain.ExecutionLogEntry, error) {
	return nil, domain.ErrLogEntryNotFound
}

func (r *stubLogRepo) FindByCorrelation(context.Context, uuid.UUID) ([]domain.ExecutionLogEntry, error) {
	return nil, nil
}

func (r *stubLogRepo) FindRecentByTenant(context.Context, uuid.UUID, int) ([]domain.ExecutionLogEntry, error) {
	return nil, nil
}

func (r *stubLogRepo) FindRetryable(_ context.Context, before time.Time, limit int) ([]domain.ExecutionLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExecutionLogEntry
	for _, entry := range r.retryable {
		if entry.NextRetryAt != nil && !entry.NextRetryAt.After(before) {
			out = append(out, entry)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func enabledTenant(lastSync *time.Time) domain.TenantSyncConfig {
	cfg := domain.TenantSyncConfig{
		TenantID:    uuid.New(),
		Enabled:     true,
		APIBaseURL:  "https://api.example.com",
		AccessToken: "tok",
		LastSyncAt:  lastSync,
	}
	cfg.ApplyDefaults()
	return cfg
}

func newTestTrigger(t *testing.T, executor *fakeExecutor, configs *stubConfigRepo, logs *stubLogRepo) *CronTrigger {
	t.Helper()
	s := startedScheduler(t, executor)
	return NewCronTrigger(DefaultCronTriggerConfig(), s, configs, logs, zap.NewNop())
}

func TestCronTriggerScan(t *testing.T) {
	t.Run("first sync for a tenant is a full sync", func(t *testing.T) {
		executor := newFakeExecutor()
		configs := &stubConfigRepo{configs: []domain.TenantSyncConfig{enabledTenant(nil)}}
		trigger := newTestTrigger(t, executor, configs, &stubLogRepo{})

		trigger.scan(context.Background())
		awaitExecutions(t, executor, 1)
		assert.Equal(t, 1, executor.triggerCount())
	})

	t.Run("due tenant gets an incremental sync", func(t *testing.T) {
		executor := newFakeExecutor()
		last := time.Now().Add(-time.Hour)
		configs := &stubConfigRepo{configs: []domain.TenantSyncConfig{enabledTenant(&last)}}
		trigger := newTestTrigger(t, executor, configs, &stubLogRepo{})

		trigger.scan(context.Background())
		awaitExecutions(t, executor, 1)
	})

	t.Run("recently synced tenant is skipped", func(t *testing.T) {
		executor := newFakeExecutor()
		last := time.Now().Add(-time.Minute)
		configs := &stubConfigRepo{configs: []domain.TenantSyncConfig{enabledTenant(&last)}}
		trigger := newTestTrigger(t, executor, configs, &stubLogRepo{})

		trigger.scan(context.Background())
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, executor.triggerCount())
	})

	t.Run("disabled tenants are never scheduled", func(t *testing.T) {
		executor := newFakeExecutor()
		cfg := enabledTenant(nil)
		cfg.Enabled = false
		configs := &stubConfigRepo{configs: []domain.TenantSyncConfig{cfg}}
		trigger := newTestTrigger(t, executor, configs, &stubLogRepo{})

		trigger.scan(context.Background())
		time.Sleep(50 * time.Millisecond)
		assert.Zero(t, executor.triggerCount())
	})

	t.Run("expired retrying runs are re-enqueued", func(t *testing.T) {
		executor := newFakeExecutor()
		entry := domain.NewExecutionLogEntry(uuid.New(), "full-sync", domain.FlowTypeFullSync, uuid.New(), 3)
		require.NoError(t, entry.Start())
		require.NoError(t, entry.Fail("upstream down", []domain.ErrorDetail{{Class: domain.ErrorClassTransient}}, domain.Backoff{Base: time.Millisecond, Max: time.Millisecond}))
		require.Equal(t, domain.RunStatusRetrying, entry.Status)

		logs := &stubLogRepo{retryable: []domain.ExecutionLogEntry{*entry}}
		trigger := newTestTrigger(t, executor, &stubConfigRepo{}, logs)

		time.Sleep(5 * time.Millisecond)
		trigger.scan(context.Background())
		awaitExecutions(t, executor, 1)

		executor.mu.Lock()
		defer executor.mu.Unlock()
		assert.Equal(t, []uuid.UUID{entry.ID}, executor.retries)
	})

	t.Run("retries not yet due are left parked", func(t *testing.T) {
		executor := newFakeExecutor()
		entry := domain.NewExecutionLogEntry(uuid.New(), "full-sync", domain.FlowTypeFullSync, uuid.New(), 3)
		require.NoError(t, entry.Start())
		require.NoError(t, entry.Fail("upstream down", []domain.ErrorDetail{{Class: domain.ErrorClassTransient}}, domain.Backoff{Base: time.Hour, Max: time.Hour}))

		logs := &stubLogRepo{retryable: []domain.ExecutionLogEntry{*entry}}
		trigger := newTestTrigger(t, executor, &stubConfigRepo{}, logs)

		trigger.scan(context.Background())
		time.Sleep(50 * time.Millisecond)
		assert.Empty(t, executor.retries)
	})

	t.Run("start and stop run cleanly", func(t *testing.T) {
		executor := newFakeExecutor()
		trigger := newTestTrigger(t, executor, &stubConfigRepo{}, &stubLogRepo{})

		require.NoError(t, trigger.Start(context.Background()))
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, trigger.Stop(ctx))
	})
}

func TestCronTriggerIsDue(t *testing.T) {
	trigger := NewCronTrigger(DefaultCronTriggerConfig(), nil, nil, nil, zap.NewNop())
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("never synced is due", func(t *testing.T) {
		cfg := enabledTenant(nil)
		assert.True(t, trigger.isDue(&cfg, now))
	})

	t.Run("interval elapsed is due", func(t *testing.T) {
		last := now.Add(-16 * time.Minute)
		cfg := enabledTenant(&last)
		assert.True(t, trigger.isDue(&cfg, now))
	})

	t.Run("interval not elapsed is not due", func(t *testing.T) {
		last := now.Add(-10 * time.Minute)
		cfg := enabledTenant(&last)
		assert.False(t, trigger.isDue(&cfg, now))
	})
}
