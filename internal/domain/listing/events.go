package listing

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// ---------------------------------------------------------------------------
// Event Errors
// ---------------------------------------------------------------------------

var (
	ErrEventMissingSKU         = errors.New("listing: event SKU is required")
	ErrEventInvalidMarketplace = errors.New("listing: event marketplace code is invalid")
	ErrEventInvalidQuantity    = errors.New("listing: quantity sold must be positive")
	ErrEventInvalidPrice       = errors.New("listing: new price must be positive")
	ErrEventInvalidCurrency    = errors.New("listing: event currency is invalid")
)

// ---------------------------------------------------------------------------
// Immutable Event Facts
// ---------------------------------------------------------------------------

// InventoryUpdateEvent is an immutable fact describing a real-world sale on
// one marketplace. Produced by a marketplace webhook or poll; consumed once
// by the sync engine, which owns idempotency by EventID. The quantity is a
// relative delta, never an absolute overwrite, so two events for the same
// SKU compose no matter which order they arrive in.
type InventoryUpdateEvent struct {
	// EventID uniquely identifies this event instance for deduplication
	EventID uuid.UUID
	// SKU is the canonical product identifier
	SKU string
	// SoldOn is the marketplace where the sale happened
	SoldOn marketplace.Code
	// SoldListingID is the listing that sold
	SoldListingID string
	// QuantitySold is how many units the sale consumed
	QuantitySold int
	// OccurredAt is when the sale happened
	OccurredAt time.Time
}

// NewInventoryUpdateEvent creates a sale event with a fresh event ID
func NewInventoryUpdateEvent(sku string, soldOn marketplace.Code, soldListingID string, quantitySold int) (*InventoryUpdateEvent, error) {
	e := &InventoryUpdateEvent{
		EventID:       uuid.New(),
		SKU:           sku,
		SoldOn:        soldOn,
		SoldListingID: soldListingID,
		QuantitySold:  quantitySold,
		OccurredAt:    time.Now(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the event satisfies the caller contract
func (e *InventoryUpdateEvent) Validate() error {
	if e.SKU == "" {
		return ErrEventMissingSKU
	}
	if !e.SoldOn.IsValid() {
		return ErrEventInvalidMarketplace
	}
	if e.QuantitySold < 1 {
		return ErrEventInvalidQuantity
	}
	return nil
}

// PriceUpdateEvent is an immutable fact describing a manual or rule-driven
// price change on one marketplace
type PriceUpdateEvent struct {
	// EventID uniquely identifies this event instance for deduplication
	EventID uuid.UUID
	// SKU is the canonical product identifier
	SKU string
	// UpdatedOn is the marketplace where the price was changed
	UpdatedOn marketplace.Code
	// NewPrice is the new price in the origin marketplace's currency
	NewPrice decimal.Decimal
	// Currency is the currency of NewPrice
	Currency valueobject.Currency
	// OccurredAt is when the price change happened
	OccurredAt time.Time
}

// NewPriceUpdateEvent creates a price change event with a fresh event ID
func NewPriceUpdateEvent(sku string, updatedOn marketplace.Code, newPrice decimal.Decimal, currency valueobject.Currency) (*PriceUpdateEvent, error) {
	e := &PriceUpdateEvent{
		EventID:    uuid.New(),
		SKU:        sku,
		UpdatedOn:  updatedOn,
		NewPrice:   newPrice,
		Currency:   currency,
		OccurredAt: time.Now(),
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return e, nil
}

// Validate checks the event satisfies the caller contract
func (e *PriceUpdateEvent) Validate() error {
	if e.SKU == "" {
		return ErrEventMissingSKU
	}
	if !e.UpdatedOn.IsValid() {
		return ErrEventInvalidMarketplace
	}
	if !e.NewPrice.IsPositive() {
		return ErrEventInvalidPrice
	}
	if !e.Currency.IsValid() {
		return ErrEventInvalidCurrency
	}
	return nil
}

// AuctionEndEvent describes an auction-format listing reaching its end time.
// Sold reports whether the auction closed with a winning bid; FinalPrice is
// the hammer price and is nil for unsold auctions.
type AuctionEndEvent struct {
	// MarketplaceCode is the marketplace hosting the auction
	MarketplaceCode marketplace.Code
	// ListingID is the ended listing's ID on the marketplace
	ListingID string
	// SKU is the canonical product identifier
	SKU string
	// FinalPrice is the winning bid (nil when unsold)
	FinalPrice *decimal.Decimal
	// Sold is true if the auction closed with a winner
	Sold bool
	// QuantitySold is the number of units the winning bid covers; zero
	// means a single-unit auction
	QuantitySold int
	// BidCount is the number of bids the auction received
	BidCount int
	// EndTime is when the auction ended
	EndTime time.Time
}

// Validate checks the event satisfies the caller contract
func (e *AuctionEndEvent) Validate() error {
	if e.SKU == "" {
		return ErrEventMissingSKU
	}
	if !e.MarketplaceCode.IsValid() {
		return ErrEventInvalidMarketplace
	}
	if e.ListingID == "" {
		return ErrInvalidListingID
	}
	return nil
}
