package sync

import (
	"errors"
	"time"

	"github.com/resell/backend/internal/domain/marketplace"
)

var (
	// ErrDuplicateEvent indicates an event ID that was already consumed.
	// Callers treat this as "already done", not as a failure.
	ErrDuplicateEvent = errors.New("sync: event already processed")

	// ErrInvalidConfig indicates an invalid engine configuration
	ErrInvalidConfig = errors.New("sync: invalid configuration")
)

// Config holds the fan-out tuning for the sync engine
type Config struct {
	// MaxConcurrentTargets bounds the number of in-flight adapter calls
	// per sync operation. A SKU typically has a handful of cross-listings,
	// so this tracks the number of configured marketplaces.
	MaxConcurrentTargets int
	// AdapterTimeout bounds each remote call so a hung marketplace becomes
	// an observable per-target failure instead of stalling the fan-out
	AdapterTimeout time.Duration
	// EventTTL is how long processed event IDs are remembered for deduplication
	EventTTL time.Duration
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		MaxConcurrentTargets: 4,
		AdapterTimeout:       15 * time.Second,
		EventTTL:             24 * time.Hour,
	}
}

// Validate validates the configuration
func (c Config) Validate() error {
	if c.MaxConcurrentTargets <= 0 {
		return ErrInvalidConfig
	}
	if c.AdapterTimeout <= 0 {
		return ErrInvalidConfig
	}
	if c.EventTTL <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ListingStock is one listing's stock level inside a consistency report
type ListingStock struct {
	// MarketplaceCode is the marketplace hosting the listing
	MarketplaceCode marketplace.Code
	// ListingID is the listing's ID on the marketplace
	ListingID string
	// Stock is the locally recorded stock level
	Stock int
	// IsActive is whether the listing is live
	IsActive bool
}

// Discrepancy reports one listing whose stock differs from the reference
type Discrepancy struct {
	// MarketplaceCode is the marketplace hosting the divergent listing
	MarketplaceCode marketplace.Code
	// ListingID is the divergent listing's ID
	ListingID string
	// ExpectedStock is the reference stock level
	ExpectedStock int
	// ActualStock is the listing's recorded stock level
	ActualStock int
}

// ConsistencyReport is the outcome of a read-only drift check for one SKU.
// It is diagnostic: correction goes through the audited sync path, never
// through this report.
type ConsistencyReport struct {
	// SKU is the checked product
	SKU string
	// IsConsistent is true when every listing agrees with the reference
	IsConsistent bool
	// ReferenceStock is the stock of the first listing, used as reference
	ReferenceStock int
	// Listings is the stock level of every known listing
	Listings []ListingStock
	// Discrepancies lists every listing that disagrees with the reference
	Discrepancies []Discrepancy
	// CheckedAt is when the check ran
	CheckedAt time.Time
}
