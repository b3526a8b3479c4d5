package sync

import (
	"context"
	"encoding/json"
	"time"
)

// Item is one entity object from an upstream page: its external id plus the
// verbatim document.
type Item struct {
	ExternalID string
	Payload    json.RawMessage
}

// Page is one cursor-bounded slice of upstream results.
type Page struct {
	Items []Item
	// NextCursor resumes the listing; empty when Done
	NextCursor string
	Done       bool
	// QuotaRemaining echoes the upstream rate-limit header, informing the
	// token bucket
	QuotaRemaining int
}

// Client is the port to the upstream platform API. Implementations hold no
// pagination state: a crashed fetch cycle resumes from the last durably
// recorded cursor.
type Client interface {
	// FetchPage lists entities updated since updatedSince, starting at
	// cursor (empty for the first page). It blocks, bounded, on the
	// tenant's token bucket and retries transient failures internally.
	FetchPage(ctx context.Context, cfg *TenantSyncConfig, entityType EntityType, cursor string, updatedSince time.Time) (*Page, error)
}
