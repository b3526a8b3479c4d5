package sync

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domain "github.com/shopsync/backend/internal/domain/sync"
)

// Processor drains claimed raw records through transformation into the
// normalized tables. Failures are isolated per record; one malformed payload
// never aborts its batch.
type Processor struct {
	rawRepo  domain.RawRecordRepository
	orders   domain.OrderRepository
	products domain.ProductRepository
	logger   *zap.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(rawRepo domain.RawRecordRepository, orders domain.OrderRepository, products domain.ProductRepository, logger *zap.Logger) *Processor {
	return &Processor{
		rawRepo:  rawRepo,
		orders:   orders,
		products: products,
		logger:   logger.Named("processor"),
	}
}

// Run claims and transforms batches until no claimable records remain.
// Cancellation between records releases the current batch's claims so a
// later cycle can pick the rows up again.
func (p *Processor) Run(ctx context.Context, cfg *domain.TenantSyncConfig, entityType domain.EntityType) (domain.RunCounts, []domain.ErrorDetail, error) {
	log := p.logger.With(
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.String("entity_type", entityType.String()),
	)

	var counts domain.RunCounts
	agg := newErrorAggregator()

	for {
		if err := ctx.Err(); err != nil {
			return counts, agg.details(), domain.ErrRunCancelled
		}

		claimToken := uuid.New()
		batch, err := p.rawRepo.ClaimBatch(ctx, cfg.TenantID, entityType, cfg.BatchSize, claimToken)
		if err != nil {
			agg.add(domain.Classify(err), "", err.Error())
			return counts, agg.details(), err
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			if ctx.Err() != nil {
				if releaseErr := p.rawRepo.ReleaseClaims(context.WithoutCancel(ctx), claimToken); releaseErr != nil {
					log.Error("failed to release claims after cancellation", zap.Error(releaseErr))
				}
				return counts, agg.details(), domain.ErrRunCancelled
			}
			p.processRecord(ctx, cfg, &batch[i], &counts, agg, log)
		}
	}

	if exhausted, err := p.rawRepo.CountExhausted(ctx, cfg.TenantID, entityType); err == nil && exhausted > 0 {
		log.Warn("records past their retry budget require operator attention",
			zap.Int64("exhausted", exhausted),
		)
		agg.add(domain.ErrorClassIntegrity, "",
			fmt.Sprintf("%d %s records exhausted their retry budget", exhausted, entityType))
	}
	return counts, agg.details(), nil
}

func (p *Processor) processRecord(ctx context.Context, cfg *domain.TenantSyncConfig, record *domain.RawRecord, counts *domain.RunCounts, agg *errorAggregator, log *zap.Logger) {
	counts.Total++

	outcome, err := p.transformAndStore(ctx, record)
	if err != nil {
		counts.Failed++
		agg.add(domain.Classify(err), record.ExternalID, err.Error())
		if markErr := p.rawRepo.MarkFailed(ctx, record.ID, err.Error(), cfg.Backoff); markErr != nil {
			log.Error("failed to record transform failure",
				zap.String("external_id", record.ExternalID),
				zap.Error(markErr),
			)
		}
		return
	}

	if err := p.rawRepo.MarkProcessed(ctx, record.ID); err != nil {
		counts.Failed++
		agg.add(domain.Classify(err), record.ExternalID, err.Error())
		return
	}
	switch outcome {
	case domain.UpsertUpdated:
		counts.Updated++
	default:
		counts.Success++
	}
}

func (p *Processor) transformAndStore(ctx context.Context, record *domain.RawRecord) (domain.UpsertOutcome, error) {
	switch record.EntityType {
	case domain.EntityTypeProduct:
		product, err := domain.TransformProduct(record)
		if err != nil {
			return "", err
		}
		return p.products.Upsert(ctx, product)
	default:
		order, err := domain.TransformOrder(record)
		if err != nil {
			return "", err
		}
		return p.orders.Upsert(ctx, order)
	}
}
