package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/infrastructure/logger"
)

// RunNotifier delivers a finished run's summary to the tenant's webhook.
// Implementations must never block the caller on delivery failures.
type RunNotifier interface {
	NotifyRunFinished(ctx context.Context, url string, entry *domain.ExecutionLogEntry)
}

// Orchestrator drives complete sync runs for a tenant: gating, execution
// logging, the fetch and transform steps, and the final notification.
type Orchestrator struct {
	configs   domain.TenantConfigRepository
	logs      domain.ExecutionLogRepository
	fetcher   *Fetcher
	processor *Processor
	notifier  RunNotifier
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator. notifier may be nil when
// notifications are disabled.
func NewOrchestrator(
	configs domain.TenantConfigRepository,
	logs domain.ExecutionLogRepository,
	fetcher *Fetcher,
	processor *Processor,
	notifier RunNotifier,
	log *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		configs:   configs,
		logs:      logs,
		fetcher:   fetcher,
		processor: processor,
		notifier:  notifier,
		logger:    log.Named("orchestrator"),
		now:       time.Now,
	}
}

// stepResult carries one pipeline step's outcome back to the parent run.
type stepResult struct {
	entry   *domain.ExecutionLogEntry
	counts  domain.RunCounts
	details []domain.ErrorDetail
	err     error
}

// TriggerSync executes one sync run for the tenant. Scheduled triggers are
// gated by the tenant's business hours and return ErrOutsideWindow without
// creating any execution log entry; manual triggers always run.
func (o *Orchestrator) TriggerSync(ctx context.Context, tenantID uuid.UUID, flowType domain.FlowType, trigger domain.TriggerKind) (*domain.ExecutionLogEntry, error) {
	cfg, err := o.configs.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, domain.ErrTenantDisabled
	}
	if trigger == domain.TriggerScheduled && !cfg.BusinessHours.Contains(o.now()) {
		return nil, domain.ErrOutsideWindow
	}

	parent := domain.NewExecutionLogEntry(tenantID, flowName(flowType), flowType, uuid.New(), cfg.MaxRetries)
	return o.execute(ctx, cfg, parent)
}

// Retry re-executes a run that previously finished RETRYING. Terminal
// entries are rejected with ErrTerminalState.
func (o *Orchestrator) Retry(ctx context.Context, entryID uuid.UUID) (*domain.ExecutionLogEntry, error) {
	entry, err := o.logs.FindByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status.IsTerminal() {
		return nil, domain.ErrTerminalState
	}
	if entry.Status != domain.RunStatusRetrying {
		return nil, domain.ErrRetriesExhausted
	}
	if entry.ParentLogID != nil {
		// A step is re-run inside its parent's retry, never on its own.
		return nil, domain.ErrChildEntry
	}

	cfg, err := o.configs.FindByTenant(ctx, entry.TenantID)
	if err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return nil, domain.ErrTenantDisabled
	}
	return o.execute(ctx, cfg, entry)
}

// execute runs the flow the entry names, records every state transition,
// and delivers the final notification.
func (o *Orchestrator) execute(ctx context.Context, cfg *domain.TenantSyncConfig, parent *domain.ExecutionLogEntry) (*domain.ExecutionLogEntry, error) {
	startedAt := o.now().UTC()

	if err := parent.Start(); err != nil {
		return nil, err
	}
	if err := o.logs.Save(ctx, parent); err != nil {
		return nil, err
	}

	log := o.logger
	ctx, log = logger.WithRunID(ctx, log, parent.ID.String())
	ctx, log = logger.WithCorrelationID(ctx, log, parent.CorrelationID.String())
	ctx, log = logger.WithTenantID(ctx, log, parent.TenantID.String())
	log = log.With(zap.String("flow_type", parent.FlowType.String()))
	log.Info("sync run started")

	updatedSince := o.fetchWindow(cfg, parent.FlowType)

	var results []stepResult
	switch parent.FlowType {
	case domain.FlowTypeFullSync, domain.FlowTypeIncrementalSync:
		results = o.runPipeline(ctx, cfg, parent, updatedSince)
	default:
		counts, details, err := o.runStep(ctx, cfg, parent.FlowType, updatedSince)
		results = []stepResult{{counts: counts, details: details, err: err}}
	}

	o.finalize(ctx, cfg, parent, results, startedAt, log)
	if err := o.logs.Save(ctx, parent); err != nil {
		return nil, err
	}

	if o.notifier != nil && parent.Status.IsTerminal() {
		// The run context may already be cancelled; delivery gets its own.
		go o.notifier.NotifyRunFinished(context.WithoutCancel(ctx), cfg.NotifyURL, parent)
	}
	return parent, nil
}

// runPipeline executes the two fetch steps concurrently, then the two
// transform steps concurrently. Transforms never start before both fetches
// have landed their pages.
func (o *Orchestrator) runPipeline(ctx context.Context, cfg *domain.TenantSyncConfig, parent *domain.ExecutionLogEntry, updatedSince time.Time) []stepResult {
	fetchFlows := []domain.FlowType{domain.FlowTypeFetchOrders, domain.FlowTypeFetchProducts}
	transformFlows := []domain.FlowType{domain.FlowTypeTransformOrders, domain.FlowTypeTransformProducts}

	results := make([]stepResult, 0, 4)
	results = append(results, o.runChildren(ctx, cfg, parent, fetchFlows, updatedSince)...)
	results = append(results, o.runChildren(ctx, cfg, parent, transformFlows, updatedSince)...)
	return results
}

func (o *Orchestrator) runChildren(ctx context.Context, cfg *domain.TenantSyncConfig, parent *domain.ExecutionLogEntry, flows []domain.FlowType, updatedSince time.Time) []stepResult {
	results := make([]stepResult, len(flows))

	var wg gosync.WaitGroup
	for i, flow := range flows {
		wg.Add(1)
		go func(i int, flow domain.FlowType) {
			defer wg.Done()
			results[i] = o.runChild(ctx, cfg, parent, flow, updatedSince)
		}(i, flow)
	}
	wg.Wait()
	return results
}

// runChild executes one step under its own child log entry.
func (o *Orchestrator) runChild(ctx context.Context, cfg *domain.TenantSyncConfig, parent *domain.ExecutionLogEntry, flow domain.FlowType, updatedSince time.Time) stepResult {
	entry := parent.ChildEntry(flowName(flow), flow)
	if err := entry.Start(); err != nil {
		return stepResult{entry: entry, err: err}
	}
	if err := o.logs.Save(ctx, entry); err != nil {
		return stepResult{entry: entry, err: err}
	}

	counts, details, err := o.runStep(ctx, cfg, flow, updatedSince)
	switch {
	case errors.Is(err, domain.ErrRunCancelled):
		entry.Counts = counts
		_ = entry.Cancel()
	case err != nil:
		_ = entry.Fail(err.Error(), details, cfg.Backoff)
	default:
		_ = entry.Complete(counts)
		entry.ErrorDetails = details
	}
	if saveErr := o.logs.Save(ctx, entry); saveErr != nil && err == nil {
		err = saveErr
	}
	return stepResult{entry: entry, counts: counts, details: details, err: err}
}

func (o *Orchestrator) runStep(ctx context.Context, cfg *domain.TenantSyncConfig, flow domain.FlowType, updatedSince time.Time) (domain.RunCounts, []domain.ErrorDetail, error) {
	switch flow {
	case domain.FlowTypeFetchOrders:
		return o.fetcher.Run(ctx, cfg, domain.EntityTypeOrder, updatedSince)
	case domain.FlowTypeFetchProducts:
		return o.fetcher.Run(ctx, cfg, domain.EntityTypeProduct, updatedSince)
	case domain.FlowTypeTransformOrders:
		return o.processor.Run(ctx, cfg, domain.EntityTypeOrder)
	case domain.FlowTypeTransformProducts:
		return o.processor.Run(ctx, cfg, domain.EntityTypeProduct)
	default:
		return domain.RunCounts{}, nil, fmt.Errorf("unknown flow type %q", flow)
	}
}

// finalize settles the parent entry from its step results and advances the
// tenant's sync watermark after a landed pipeline run.
func (o *Orchestrator) finalize(ctx context.Context, cfg *domain.TenantSyncConfig, parent *domain.ExecutionLogEntry, results []stepResult, startedAt time.Time, log *zap.Logger) {
	var total domain.RunCounts
	var allDetails []domain.ErrorDetail
	var cancelled bool
	var firstErr error

	for _, r := range results {
		total.Add(r.counts)
		allDetails = append(allDetails, r.details...)
		if errors.Is(r.err, domain.ErrRunCancelled) {
			cancelled = true
		} else if r.err != nil && firstErr == nil {
			firstErr = r.err
		}
	}

	switch {
	case cancelled:
		parent.Counts = total
		parent.ErrorDetails = allDetails
		_ = parent.Cancel()
	case firstErr != nil:
		parent.Counts = total
		_ = parent.Fail(firstErr.Error(), allDetails, cfg.Backoff)
	default:
		_ = parent.Complete(total)
		parent.ErrorDetails = allDetails
	}

	landed := parent.Status == domain.RunStatusSuccess || parent.Status == domain.RunStatusPartial
	if landed && advancesWatermark(parent.FlowType) {
		// The watermark is the run's start, not its end, so records updated
		// mid-run are still covered by the next incremental window.
		if err := o.configs.UpdateLastSyncAt(ctx, cfg.TenantID, startedAt); err != nil {
			log.Error("failed to advance sync watermark", zap.Error(err))
		}
	}

	log.Info("sync run finished",
		zap.String("status", parent.Status.String()),
		zap.Int("total", total.Total),
		zap.Int("success", total.Success),
		zap.Int("updated", total.Updated),
		zap.Int("failed", total.Failed),
	)
}

// fetchWindow resolves the updated-since bound for the run. Full syncs and
// first-ever runs fetch everything; incremental runs rewind the watermark by
// the lookback window to absorb upstream clock skew.
func (o *Orchestrator) fetchWindow(cfg *domain.TenantSyncConfig, flow domain.FlowType) time.Time {
	if flow == domain.FlowTypeFullSync {
		return time.Time{}
	}
	if cfg.LastSyncAt == nil {
		return time.Time{}
	}
	return cfg.LastSyncAt.Add(-cfg.LookbackWindow)
}

// advancesWatermark reports whether the flow fetched both entity types.
// Single-step flows leave the shared watermark alone; advancing it for an
// orders-only fetch would let the next incremental run skip product updates.
func advancesWatermark(flow domain.FlowType) bool {
	return flow == domain.FlowTypeFullSync || flow == domain.FlowTypeIncrementalSync
}

func flowName(flow domain.FlowType) string {
	switch flow {
	case domain.FlowTypeFetchOrders:
		return "fetch-orders"
	case domain.FlowTypeFetchProducts:
		return "fetch-products"
	case domain.FlowTypeTransformOrders:
		return "transform-orders"
	case domain.FlowTypeTransformProducts:
		return "transform-products"
	case domain.FlowTypeIncrementalSync:
		return "incremental-sync"
	default:
		return "full-sync"
	}
}
