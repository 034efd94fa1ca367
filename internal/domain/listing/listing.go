package listing

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// ---------------------------------------------------------------------------
// Listing Errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidSKU           = errors.New("listing: SKU is required")
	ErrInvalidMarketplace   = errors.New("listing: invalid marketplace code")
	ErrInvalidListingID     = errors.New("listing: marketplace listing ID is required")
	ErrInvalidFormat        = errors.New("listing: invalid listing format")
	ErrNegativeStock        = errors.New("listing: stock cannot be negative")
	ErrListingNotFound      = errors.New("listing: listing not found")
	ErrListingAlreadyExists = errors.New("listing: listing already exists for marketplace and SKU")
)

// ---------------------------------------------------------------------------
// MarketplaceListing Entity
// ---------------------------------------------------------------------------

// MarketplaceListing is one published instance of a SKU on one marketplace.
// It is the local record of remote state: every sync operation updates it
// after the remote mutation succeeds, so it tracks (but may lag) the
// marketplace's own copy. There is one row per (marketplace, SKU).
// A listing is deactivated, never hard-deleted.
type MarketplaceListing struct {
	// ID is the local record identifier
	ID uuid.UUID
	// MarketplaceCode identifies which marketplace hosts this listing
	MarketplaceCode marketplace.Code
	// ListingID is the listing's ID on the marketplace
	ListingID string
	// SKU is the canonical cross-marketplace product identifier
	SKU string
	// Price is the current listing price in the marketplace's currency
	Price valueobject.Money
	// Stock is the quantity currently offered on this marketplace
	Stock int
	// Format is the listing format (auction or fixed-price)
	Format marketplace.ListingFormat
	// IsActive is false once the listing has been paused or ended
	IsActive bool
	// CreatedAt is when the listing was first recorded
	CreatedAt time.Time
	// UpdatedAt is when the listing was last touched by a sync
	UpdatedAt time.Time
}

// NewMarketplaceListing creates a new active listing record
func NewMarketplaceListing(code marketplace.Code, listingID, sku string, price valueobject.Money, stock int, format marketplace.ListingFormat) (*MarketplaceListing, error) {
	if sku == "" {
		return nil, ErrInvalidSKU
	}
	if !code.IsValid() {
		return nil, ErrInvalidMarketplace
	}
	if listingID == "" {
		return nil, ErrInvalidListingID
	}
	if !format.IsValid() {
		return nil, ErrInvalidFormat
	}
	if stock < 0 {
		return nil, ErrNegativeStock
	}
	now := time.Now()
	return &MarketplaceListing{
		ID:              uuid.New(),
		MarketplaceCode: code,
		ListingID:       listingID,
		SKU:             sku,
		Price:           price,
		Stock:           stock,
		Format:          format,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// UpdateStock records a new stock level after a successful remote update
func (l *MarketplaceListing) UpdateStock(stock int) error {
	if stock < 0 {
		return ErrNegativeStock
	}
	l.Stock = stock
	l.UpdatedAt = time.Now()
	return nil
}

// UpdatePrice records a new price after a successful remote update
func (l *MarketplaceListing) UpdatePrice(price valueobject.Money) {
	l.Price = price
	l.UpdatedAt = time.Now()
}

// Deactivate marks the listing as no longer live.
// Used when stock reaches zero and the listing is paused, or when an
// auction ended unsold and was not relisted.
func (l *MarketplaceListing) Deactivate() {
	l.IsActive = false
	l.UpdatedAt = time.Now()
}

// Reactivate marks the listing as live again
func (l *MarketplaceListing) Reactivate() {
	l.IsActive = true
	l.UpdatedAt = time.Now()
}

// IsAuction returns true for auction-format listings
func (l *MarketplaceListing) IsAuction() bool {
	return l.Format == marketplace.FormatAuction
}
