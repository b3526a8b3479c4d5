package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopsync/backend/internal/domain/sync"
)

// TenantSyncConfigModel is the persistence model for per-tenant sync settings.
// Durations are stored as nanoseconds, the hour window and rate limit are
// flattened into columns.
type TenantSyncConfigModel struct {
	TenantID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Enabled           bool      `gorm:"not null;default:false;index"`
	APIBaseURL        string    `gorm:"type:varchar(255);not null;column:api_base_url"`
	AccessToken       string    `gorm:"type:varchar(255);not null"`
	FetchInterval     int64     `gorm:"not null;default:0"`
	LookbackWindow    int64     `gorm:"not null;default:0"`
	WindowStartHour   int       `gorm:"not null;default:0"`
	WindowEndHour     int       `gorm:"not null;default:0"`
	WindowTimezone    string    `gorm:"type:varchar(64)"`
	BatchSize         int       `gorm:"not null;default:0"`
	MaxRetries        int       `gorm:"not null;default:0"`
	BackoffBase       int64     `gorm:"not null;default:0"`
	BackoffMax        int64     `gorm:"not null;default:0"`
	BackoffJitter     int64     `gorm:"not null;default:0"`
	RateLimitBurst    int       `gorm:"not null;default:0"`
	RateLimitRefill   float64   `gorm:"not null;default:0"`
	RateLimitMaxWait  int64     `gorm:"not null;default:0"`
	NotifyURL         string    `gorm:"type:varchar(255)"`
	LastSyncAt        *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantSyncConfigModel) TableName() string {
	return "tenant_sync_configs"
}

// ToDomain converts the persistence model to a domain TenantSyncConfig.
func (m *TenantSyncConfigModel) ToDomain() *sync.TenantSyncConfig {
	var loc *time.Location
	if m.WindowTimezone != "" {
		if parsed, err := time.LoadLocation(m.WindowTimezone); err == nil {
			loc = parsed
		}
	}

	return &sync.TenantSyncConfig{
		TenantID:       m.TenantID,
		Enabled:        m.Enabled,
		APIBaseURL:     m.APIBaseURL,
		AccessToken:    m.AccessToken,
		FetchInterval:  time.Duration(m.FetchInterval),
		LookbackWindow: time.Duration(m.LookbackWindow),
		BusinessHours: sync.BusinessHours{
			StartHour: m.WindowStartHour,
			EndHour:   m.WindowEndHour,
			Location:  loc,
		},
		BatchSize:  m.BatchSize,
		MaxRetries: m.MaxRetries,
		Backoff: sync.Backoff{
			Base:   time.Duration(m.BackoffBase),
			Max:    time.Duration(m.BackoffMax),
			Jitter: time.Duration(m.BackoffJitter),
		},
		RateLimit: sync.RateLimit{
			Burst:           m.RateLimitBurst,
			RefillPerSecond: m.RateLimitRefill,
			MaxWait:         time.Duration(m.RateLimitMaxWait),
		},
		NotifyURL:  m.NotifyURL,
		LastSyncAt: m.LastSyncAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain TenantSyncConfig.
func (m *TenantSyncConfigModel) FromDomain(c *sync.TenantSyncConfig) {
	m.TenantID = c.TenantID
	m.Enabled = c.Enabled
	m.APIBaseURL = c.APIBaseURL
	m.AccessToken = c.AccessToken
	m.FetchInterval = int64(c.FetchInterval)
	m.LookbackWindow = int64(c.LookbackWindow)
	m.WindowStartHour = c.BusinessHours.StartHour
	m.WindowEndHour = c.BusinessHours.EndHour
	if c.BusinessHours.Location != nil {
		m.WindowTimezone = c.BusinessHours.Location.String()
	} else {
		m.WindowTimezone = ""
	}
	m.BatchSize = c.BatchSize
	m.MaxRetries = c.MaxRetries
	m.BackoffBase = int64(c.Backoff.Base)
	m.BackoffMax = int64(c.Backoff.Max)
	m.BackoffJitter = int64(c.Backoff.Jitter)
	m.RateLimitBurst = c.RateLimit.Burst
	m.RateLimitRefill = c.RateLimit.RefillPerSecond
	m.RateLimitMaxWait = int64(c.RateLimit.MaxWait)
	m.NotifyURL = c.NotifyURL
	m.LastSyncAt = c.LastSyncAt
	m.CreatedAt = c.CreatedAt
	m.UpdatedAt = c.UpdatedAt
}

// TenantSyncConfigModelFromDomain creates a new persistence model from a domain TenantSyncConfig.
func TenantSyncConfigModelFromDomain(c *sync.TenantSyncConfig) *TenantSyncConfigModel {
	m := &TenantSyncConfigModel{}
	m.FromDomain(c)
	return m
}
