// Package sync coordinates the fetch and transform pipeline for tenant
// synchronization runs.
package sync

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	domain "github.com/shopsync/backend/internal/domain/sync"
)

// lowQuotaThreshold triggers a warning when the upstream reports fewer
// remaining requests than this.
const lowQuotaThreshold = 10

// Fetcher pulls upstream pages and lands each record durably in raw storage
// before any transformation happens.
type Fetcher struct {
	client  domain.Client
	rawRepo domain.RawRecordRepository
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(client domain.Client, rawRepo domain.RawRecordRepository, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		rawRepo: rawRepo,
		logger:  logger.Named("fetcher"),
	}
}

// Run walks the upstream cursor until the last page, upserting every item
// into raw storage. Each page is fully persisted before the next is
// requested, so an interrupted run resumes from durable state rather than
// refetching everything.
func (f *Fetcher) Run(ctx context.Context, cfg *domain.TenantSyncConfig, entityType domain.EntityType, updatedSince time.Time) (domain.RunCounts, []domain.ErrorDetail, error) {
	log := f.logger.With(
		zap.String("tenant_id", cfg.TenantID.String()),
		zap.String("entity_type", entityType.String()),
	)

	var counts domain.RunCounts
	agg := newErrorAggregator()
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			return counts, agg.details(), domain.ErrRunCancelled
		}

		page, err := f.client.FetchPage(ctx, cfg, entityType, cursor, updatedSince)
		if err != nil {
			agg.add(domain.Classify(err), "", err.Error())
			return counts, agg.details(), err
		}

		for _, item := range page.Items {
			counts.Total++
			record := domain.NewRawRecord(cfg.TenantID, domain.SourceShopCommerce, item.ExternalID, entityType, item.Payload, cfg.MaxRetries)
			if _, err := f.rawRepo.Upsert(ctx, record); err != nil {
				counts.Failed++
				agg.add(domain.Classify(err), item.ExternalID, err.Error())
				log.Error("failed to persist raw record",
					zap.String("external_id", item.ExternalID),
					zap.Error(err),
				)
				continue
			}
			counts.Success++
		}

		log.Debug("fetched upstream page",
			zap.Int("items", len(page.Items)),
			zap.Bool("done", page.Done),
		)
		if page.QuotaRemaining >= 0 && page.QuotaRemaining < lowQuotaThreshold {
			log.Warn("upstream quota nearly exhausted",
				zap.Int("remaining", page.QuotaRemaining),
			)
		}

		if page.Done {
			return counts, agg.details(), nil
		}
		cursor = page.NextCursor
	}
}

// errorAggregator folds per-record failures into one ErrorDetail per class
// so a run with thousands of identical failures stays readable.
type errorAggregator struct {
	byClass map[domain.ErrorClass]*domain.ErrorDetail
}

func newErrorAggregator() *errorAggregator {
	return &errorAggregator{byClass: make(map[domain.ErrorClass]*domain.ErrorDetail)}
}

func (a *errorAggregator) add(class domain.ErrorClass, externalID, message string) {
	d, ok := a.byClass[class]
	if !ok {
		d = &domain.ErrorDetail{Class: class, Message: message}
		a.byClass[class] = d
	}
	if externalID != "" {
		d.ExternalIDs = append(d.ExternalIDs, externalID)
	}
}

func (a *errorAggregator) details() []domain.ErrorDetail {
	if len(a.byClass) == 0 {
		return nil
	}
	out := make([]domain.ErrorDetail, 0, len(a.byClass))
	for _, d := range a.byClass {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Class < out[j].Class })
	return out
}
