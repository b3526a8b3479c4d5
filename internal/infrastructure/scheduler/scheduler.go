// Package scheduler runs sync jobs on a bounded worker pool and scans
// tenant configs for due runs.
package scheduler

import (
	"context"
	"errors"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/shopsync/backend/internal/domain/sync"
)

// SyncJob is the queue envelope for one run. All run state lives in the
// execution log; the job only says what to start.
type SyncJob struct {
	TenantID   uuid.UUID
	FlowType   domain.FlowType
	Trigger    domain.TriggerKind
	RetryOf    *uuid.UUID
	EnqueuedAt time.Time
}

// NewSyncJob creates a job for a fresh run.
func NewSyncJob(tenantID uuid.UUID, flowType domain.FlowType, trigger domain.TriggerKind) *SyncJob {
	return &SyncJob{
		TenantID:   tenantID,
		FlowType:   flowType,
		Trigger:    trigger,
		EnqueuedAt: time.Now().UTC(),
	}
}

// NewRetryJob creates a job that resumes a run left in RETRYING.
func NewRetryJob(entry *domain.ExecutionLogEntry) *SyncJob {
	entryID := entry.ID
	return &SyncJob{
		TenantID:   entry.TenantID,
		FlowType:   entry.FlowType,
		Trigger:    domain.TriggerScheduled,
		RetryOf:    &entryID,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Executor runs sync jobs. The application orchestrator satisfies this.
type Executor interface {
	TriggerSync(ctx context.Context, tenantID uuid.UUID, flowType domain.FlowType, trigger domain.TriggerKind) (*domain.ExecutionLogEntry, error)
	Retry(ctx context.Context, entryID uuid.UUID) (*domain.ExecutionLogEntry, error)
}

// Config holds worker pool settings.
type Config struct {
	// MaxConcurrentJobs is the number of pool workers; also the bound on
	// tenants syncing at once
	MaxConcurrentJobs int
	// JobTimeout is the maximum time one run may take
	JobTimeout time.Duration
	// QueueSize bounds the pending job queue
	QueueSize int
}

// DefaultConfig returns default worker pool settings.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentJobs: 4,
		JobTimeout:        30 * time.Minute,
		QueueSize:         100,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return ErrInvalidConfig
	}
	if c.JobTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// SyncScheduler executes queued sync jobs on a fixed worker pool. One tenant
// may only have one queued-or-running job at a time; duplicate submissions
// are dropped.
type SyncScheduler struct {
	config   Config
	executor Executor
	logger   *zap.Logger

	jobs      chan *SyncJob
	cancel    context.CancelFunc
	wg        gosync.WaitGroup
	mu        gosync.Mutex
	isRunning bool

	inFlightMu gosync.Mutex
	inFlight   map[uuid.UUID]struct{}
}

// NewSyncScheduler creates a scheduler with the given pool settings.
func NewSyncScheduler(config Config, executor Executor, logger *zap.Logger) (*SyncScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &SyncScheduler{
		config:   config,
		executor: executor,
		logger:   logger.Named("scheduler"),
		jobs:     make(chan *SyncJob, config.QueueSize),
		inFlight: make(map[uuid.UUID]struct{}),
	}, nil
}

// Start starts the worker pool.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.config.MaxConcurrentJobs; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}

	s.logger.Info("sync scheduler started",
		zap.Int("workers", s.config.MaxConcurrentJobs),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for in-flight jobs up to the
// context deadline.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	close(s.jobs)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("sync scheduler stop timed out")
		return ctx.Err()
	}
}

// SubmitJob queues a job. A job for a tenant that is already queued or
// running is dropped silently; the next scan picks the tenant up again.
func (s *SyncScheduler) SubmitJob(job *SyncJob) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.mu.Unlock()

	if !s.markInFlight(job.TenantID) {
		s.logger.Debug("tenant already has a job in flight",
			zap.String("tenant_id", job.TenantID.String()),
		)
		return nil
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("sync job submitted",
			zap.String("tenant_id", job.TenantID.String()),
			zap.String("flow_type", job.FlowType.String()),
			zap.String("trigger", string(job.Trigger)),
		)
		return nil
	default:
		s.clearInFlight(job.TenantID)
		return ErrJobQueueFull
	}
}

func (s *SyncScheduler) markInFlight(tenantID uuid.UUID) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, ok := s.inFlight[tenantID]; ok {
		return false
	}
	s.inFlight[tenantID] = struct{}{}
	return true
}

func (s *SyncScheduler) clearInFlight(tenantID uuid.UUID) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, tenantID)
}

func (s *SyncScheduler) worker(ctx context.Context, workerID int) {
	defer s.wg.Done()

	s.logger.Debug("sync worker started", zap.Int("worker_id", workerID))
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sync worker stopping", zap.Int("worker_id", workerID))
			return
		case job, ok := <-s.jobs:
			if !ok {
				return
			}
			s.processJob(ctx, job, workerID)
		}
	}
}

func (s *SyncScheduler) processJob(ctx context.Context, job *SyncJob, workerID int) {
	defer s.clearInFlight(job.TenantID)

	log := s.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("tenant_id", job.TenantID.String()),
		zap.String("flow_type", job.FlowType.String()),
	)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	var entry *domain.ExecutionLogEntry
	var err error
	if job.RetryOf != nil {
		entry, err = s.executor.Retry(jobCtx, *job.RetryOf)
	} else {
		entry, err = s.executor.TriggerSync(jobCtx, job.TenantID, job.FlowType, job.Trigger)
	}

	switch {
	case errors.Is(err, domain.ErrOutsideWindow):
		log.Debug("sync skipped outside business hours")
	case errors.Is(err, domain.ErrTenantDisabled):
		log.Debug("sync skipped for disabled tenant")
	case err != nil:
		log.Error("sync job failed", zap.Error(err))
	default:
		log.Info("sync job finished",
			zap.String("run_id", entry.ID.String()),
			zap.String("status", entry.Status.String()),
			zap.Int("total", entry.Counts.Total),
			zap.Int("failed", entry.Counts.Failed),
		)
	}
}
