package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shopsync/backend/internal/domain/sync"
	"github.com/shopsync/backend/internal/infrastructure/config"
)

// API paths per entity type.
const (
	ordersPath   = "/v1/orders"
	productsPath = "/v1/products"
)

// pageEnvelope is the wire shape of one upstream list response.
type pageEnvelope struct {
	Items      []json.RawMessage `json:"items"`
	NextCursor string            `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}

// itemID is the minimal projection used to pull the external id out of an
// otherwise opaque item document.
type itemID struct {
	ID string `json:"id"`
}

// ShopCommerceClient fetches order and product pages from the upstream
// commerce API. It implements sync.Client.
type ShopCommerceClient struct {
	httpClient *http.Client
	cfg        config.UpstreamConfig
	limiter    *RateLimiter
	logger     *zap.Logger
}

var _ sync.Client = (*ShopCommerceClient)(nil)

// NewShopCommerceClient creates a client with the given process-level
// defaults. Per-tenant credentials and limits arrive with each call.
func NewShopCommerceClient(cfg config.UpstreamConfig, limiter *RateLimiter, logger *zap.Logger) *ShopCommerceClient {
	if limiter == nil {
		limiter = NewRateLimiter()
	}
	return &ShopCommerceClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		limiter:    limiter,
		logger:     logger.Named("upstream"),
	}
}

// FetchPage retrieves one page of records updated since the given instant.
// Transient upstream failures (429, 5xx, network errors) are retried with
// the tenant's backoff policy before surfacing ErrUpstreamUnavailable or
// ErrUpstreamRateLimited.
func (c *ShopCommerceClient) FetchPage(ctx context.Context, tenantCfg *sync.TenantSyncConfig, entityType sync.EntityType, cursor string, updatedSince time.Time) (*sync.Page, error) {
	if tenantCfg.APIBaseURL == "" || tenantCfg.AccessToken == "" {
		return nil, sync.ErrMissingCredentials
	}

	reqURL, err := c.buildURL(tenantCfg, entityType, cursor, updatedSince)
	if err != nil {
		return nil, fmt.Errorf("upstream: invalid base url: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := tenantCfg.Backoff.Delay(attempt - 1)
			c.logger.Debug("retrying upstream fetch",
				zap.String("tenant_id", tenantCfg.TenantID.String()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}

		if err := c.limiter.Wait(ctx, tenantCfg.TenantID, tenantCfg.RateLimit); err != nil {
			return nil, err
		}

		page, retryable, err := c.doFetch(ctx, tenantCfg, reqURL)
		if err == nil {
			return page, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: retries exhausted: %v", sync.ErrUpstreamUnavailable, lastErr)
}

func (c *ShopCommerceClient) buildURL(tenantCfg *sync.TenantSyncConfig, entityType sync.EntityType, cursor string, updatedSince time.Time) (string, error) {
	base, err := url.Parse(tenantCfg.APIBaseURL)
	if err != nil {
		return "", err
	}

	switch entityType {
	case sync.EntityTypeProduct:
		base.Path += productsPath
	default:
		base.Path += ordersPath
	}

	q := base.Query()
	q.Set("limit", strconv.Itoa(tenantCfg.BatchSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	if !updatedSince.IsZero() {
		q.Set("updated_since", updatedSince.UTC().Format(time.RFC3339))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// doFetch performs one HTTP round trip. The second return value reports
// whether the failure is worth retrying.
func (c *ShopCommerceClient) doFetch(ctx context.Context, tenantCfg *sync.TenantSyncConfig, reqURL string) (*sync.Page, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("upstream: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tenantCfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("%w: %v", sync.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, sync.ErrUpstreamRateLimited
	case resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("%w: HTTP %d", sync.ErrUpstreamUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, false, sync.ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, sync.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("%w: HTTP %d", sync.ErrInvalidResponse, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseSize))
	if err != nil {
		return nil, true, fmt.Errorf("%w: reading body: %v", sync.ErrUpstreamUnavailable, err)
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("%w: %v", sync.ErrInvalidResponse, err)
	}

	page := &sync.Page{
		Items:          make([]sync.Item, 0, len(envelope.Items)),
		NextCursor:     envelope.NextCursor,
		Done:           !envelope.HasMore,
		QuotaRemaining: parseQuotaHeader(resp.Header),
	}
	for _, raw := range envelope.Items {
		var id itemID
		if err := json.Unmarshal(raw, &id); err != nil || id.ID == "" {
			return nil, false, fmt.Errorf("%w: item without id", sync.ErrInvalidResponse)
		}
		page.Items = append(page.Items, sync.Item{ExternalID: id.ID, Payload: raw})
	}
	return page, false, nil
}

// parseQuotaHeader reads the remaining-quota header, returning -1 when the
// upstream does not send one.
func parseQuotaHeader(h http.Header) int {
	raw := h.Get("X-RateLimit-Remaining")
	if raw == "" {
		return -1
	}
	remaining, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return remaining
}
