package listing

import (
	"context"

	"github.com/resell/backend/internal/domain/marketplace"
)

// ListingRepository is the registry of marketplace listings.
// Implementations must return listings for a SKU in a stable order
// (by marketplace code) so consistency checks have a deterministic
// reference listing.
type ListingRepository interface {
	// FindBySKU returns every known listing for a SKU across all marketplaces.
	// A SKU with no listings is not an error: it returns an empty slice.
	FindBySKU(ctx context.Context, sku string) ([]MarketplaceListing, error)

	// FindByMarketplaceListing returns the listing with the given marketplace
	// listing ID, or ErrListingNotFound
	FindByMarketplaceListing(ctx context.Context, code marketplace.Code, listingID string) (*MarketplaceListing, error)

	// FindActiveByFormat returns all active listings with the given format
	FindActiveByFormat(ctx context.Context, format marketplace.ListingFormat) ([]MarketplaceListing, error)

	// ListActiveSKUs returns the distinct SKUs that have at least one
	// active listing, for reconciliation sweeps
	ListActiveSKUs(ctx context.Context) ([]string, error)

	// Save inserts or updates a listing record
	Save(ctx context.Context, l *MarketplaceListing) error
}

// SyncRecordRepository persists the append-only sync audit trail
type SyncRecordRepository interface {
	// Append stores audit records; records are never updated afterwards
	Append(ctx context.Context, results []SyncResult) error

	// FindBySKU returns the most recent audit records for a SKU,
	// newest first, up to limit
	FindBySKU(ctx context.Context, sku string, limit int) ([]SyncResult, error)

	// FindFailures returns the most recent failed records for a SKU,
	// newest first, for alerting on persistent divergence
	FindFailures(ctx context.Context, sku string, limit int) ([]SyncResult, error)
}
