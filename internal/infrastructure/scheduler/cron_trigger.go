package scheduler

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	domain "github.com/shopsync/backend/internal/domain/sync"
)

// CronTriggerConfig holds the scan loop settings.
type CronTriggerConfig struct {
	// ScanInterval is how often enabled tenants are checked for due runs
	ScanInterval time.Duration
	// RetryScanLimit bounds how many retryable runs one scan picks up
	RetryScanLimit int
}

// DefaultCronTriggerConfig returns default scan settings.
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		ScanInterval:   time.Minute,
		RetryScanLimit: 50,
	}
}

// CronTrigger periodically scans enabled tenant configs and enqueues
// incremental sync jobs for tenants whose fetch interval has elapsed. It
// also re-enqueues runs parked in RETRYING whose backoff has expired.
type CronTrigger struct {
	config    CronTriggerConfig
	scheduler *SyncScheduler
	configs   domain.TenantConfigRepository
	logs      domain.ExecutionLogRepository
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        gosync.WaitGroup
	mu        gosync.Mutex
	isRunning bool
	now       func() time.Time
}

// NewCronTrigger creates a cron trigger.
func NewCronTrigger(
	config CronTriggerConfig,
	scheduler *SyncScheduler,
	configs domain.TenantConfigRepository,
	logs domain.ExecutionLogRepository,
	logger *zap.Logger,
) *CronTrigger {
	return &CronTrigger{
		config:    config,
		scheduler: scheduler,
		configs:   configs,
		logs:      logs,
		logger:    logger.Named("cron"),
		now:       time.Now,
	}
}

// Start starts the scan loop.
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("sync cron trigger started",
		zap.Duration("scan_interval", c.config.ScanInterval),
	)
	return nil
}

// Stop stops the scan loop.
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("sync cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.ScanInterval)
	defer ticker.Stop()

	c.scan(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scan(ctx)
		}
	}
}

// scan enqueues due incremental syncs and expired retries. Duplicate
// submissions for a tenant are dropped by the scheduler, so a scan that
// overlaps a still-running job is harmless.
func (c *CronTrigger) scan(ctx context.Context) {
	c.scanDueTenants(ctx)
	c.scanRetryableRuns(ctx)
}

func (c *CronTrigger) scanDueTenants(ctx context.Context) {
	configs, err := c.configs.FindEnabled(ctx)
	if err != nil {
		c.logger.Error("failed to load enabled tenant configs", zap.Error(err))
		return
	}

	now := c.now().UTC()
	for i := range configs {
		cfg := &configs[i]
		cfg.ApplyDefaults()
		if !c.isDue(cfg, now) {
			continue
		}

		flowType := domain.FlowTypeIncrementalSync
		if cfg.LastSyncAt == nil {
			flowType = domain.FlowTypeFullSync
		}

		job := NewSyncJob(cfg.TenantID, flowType, domain.TriggerScheduled)
		if err := c.scheduler.SubmitJob(job); err != nil {
			c.logger.Error("failed to submit sync job",
				zap.String("tenant_id", cfg.TenantID.String()),
				zap.Error(err),
			)
		}
	}
}

func (c *CronTrigger) isDue(cfg *domain.TenantSyncConfig, now time.Time) bool {
	if cfg.LastSyncAt == nil {
		return true
	}
	return !now.Before(cfg.LastSyncAt.Add(cfg.FetchInterval))
}

func (c *CronTrigger) scanRetryableRuns(ctx context.Context) {
	entries, err := c.logs.FindRetryable(ctx, c.now().UTC(), c.config.RetryScanLimit)
	if err != nil {
		c.logger.Error("failed to load retryable runs", zap.Error(err))
		return
	}

	for i := range entries {
		entry := &entries[i]
		if err := c.scheduler.SubmitJob(NewRetryJob(entry)); err != nil {
			c.logger.Error("failed to submit retry job",
				zap.String("run_id", entry.ID.String()),
				zap.Error(err),
			)
		}
	}
}
