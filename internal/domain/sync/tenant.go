package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BusinessHours is the scheduling gate: automatic runs are suppressed
// outside [StartHour, EndHour) in the tenant's location. Overnight windows
// (start > end) wrap past midnight.
type BusinessHours struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// Contains reports whether t falls inside the window. A zero window
// (start == end) never gates.
func (h BusinessHours) Contains(t time.Time) bool {
	if h.StartHour == h.EndHour {
		return true
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	hour := t.In(loc).Hour()
	if h.StartHour < h.EndHour {
		return hour >= h.StartHour && hour < h.EndHour
	}
	return hour >= h.StartHour || hour < h.EndHour
}

// RateLimit is the per-tenant token bucket configuration for upstream calls.
type RateLimit struct {
	// Burst is the bucket capacity
	Burst int
	// RefillPerSecond is the steady-state request rate
	RefillPerSecond float64
	// MaxWait bounds how long a call may block waiting for a token before
	// surfacing ErrUpstreamRateLimited
	MaxWait time.Duration
}

// TenantSyncConfig carries every externally supplied per-tenant setting.
// Nothing here is process-global; the orchestrator receives one config per
// invocation.
type TenantSyncConfig struct {
	TenantID uuid.UUID
	Enabled  bool

	// Upstream API access
	APIBaseURL  string
	AccessToken string

	// Scheduling
	FetchInterval  time.Duration
	LookbackWindow time.Duration
	BusinessHours  BusinessHours

	// Processing
	BatchSize  int
	MaxRetries int
	Backoff    Backoff
	RateLimit  RateLimit

	// NotifyURL receives the fire-and-forget run summary; empty disables it
	NotifyURL string

	LastSyncAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the config before a run is attempted.
func (c *TenantSyncConfig) Validate() error {
	if c.TenantID == uuid.Nil {
		return ErrInvalidTenantConfig
	}
	if c.APIBaseURL == "" || c.AccessToken == "" {
		return ErrMissingCredentials
	}
	if c.BatchSize <= 0 || c.MaxRetries < 0 {
		return ErrInvalidTenantConfig
	}
	if c.LookbackWindow <= 0 {
		return ErrInvalidTenantConfig
	}
	if c.BusinessHours.StartHour < 0 || c.BusinessHours.StartHour > 23 ||
		c.BusinessHours.EndHour < 0 || c.BusinessHours.EndHour > 23 {
		return ErrInvalidTenantConfig
	}
	return nil
}

// ApplyDefaults fills unset tuning fields so stored configs only need to
// carry overrides.
func (c *TenantSyncConfig) ApplyDefaults() {
	if c.FetchInterval <= 0 {
		c.FetchInterval = 15 * time.Minute
	}
	if c.LookbackWindow <= 0 {
		c.LookbackWindow = 30 * time.Minute
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.Backoff == (Backoff{}) {
		c.Backoff = DefaultBackoff()
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 5
	}
	if c.RateLimit.RefillPerSecond <= 0 {
		c.RateLimit.RefillPerSecond = 2
	}
	if c.RateLimit.MaxWait <= 0 {
		c.RateLimit.MaxWait = 30 * time.Second
	}
}

// TenantConfigRepository is the persistence port for tenant sync settings.
type TenantConfigRepository interface {
	Save(ctx context.Context, cfg *TenantSyncConfig) error
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*TenantSyncConfig, error)
	FindEnabled(ctx context.Context) ([]TenantSyncConfig, error)
	UpdateLastSyncAt(ctx context.Context, tenantID uuid.UUID, syncedAt time.Time) error
}
