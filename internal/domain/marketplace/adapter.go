package marketplace

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// ---------------------------------------------------------------------------
// Marketplace Errors
// ---------------------------------------------------------------------------

var (
	// Adapter errors
	ErrAdapterNotRegistered = errors.New("marketplace: no adapter registered for marketplace")
	ErrAdapterNotConfigured = errors.New("marketplace: adapter not configured")
	ErrRequestFailed        = errors.New("marketplace: remote request failed")
	ErrInvalidResponse      = errors.New("marketplace: invalid remote response")
	ErrAuthFailed           = errors.New("marketplace: authentication failed")
	ErrRateLimited          = errors.New("marketplace: rate limited by remote")

	// Listing errors
	ErrListingNotFound = errors.New("marketplace: listing not found on marketplace")
	ErrInvalidPayload  = errors.New("marketplace: invalid listing payload")

	// Capability errors
	ErrFixedPriceNotSupported = errors.New("marketplace: fixed-price listings not supported")
	ErrAuctionNotSupported    = errors.New("marketplace: auction listings not supported")
)

// ---------------------------------------------------------------------------
// Code identifies a marketplace
// ---------------------------------------------------------------------------

// Code identifies a marketplace
type Code string

const (
	// CodeEbay represents eBay (auction and fixed-price)
	CodeEbay Code = "EBAY"
	// CodeYahooAuction represents Yahoo! Auctions (auction only)
	CodeYahooAuction Code = "YAHOO_AUCTION"
	// CodeMercari represents Mercari (fixed-price only)
	CodeMercari Code = "MERCARI"
)

// IsValid returns true if the marketplace code is valid
func (c Code) IsValid() bool {
	switch c {
	case CodeEbay, CodeYahooAuction, CodeMercari:
		return true
	default:
		return false
	}
}

// String returns the string representation of Code
func (c Code) String() string {
	return string(c)
}

// DisplayName returns a human-readable name for the marketplace
func (c Code) DisplayName() string {
	switch c {
	case CodeEbay:
		return "eBay"
	case CodeYahooAuction:
		return "Yahoo! Auctions"
	case CodeMercari:
		return "Mercari"
	default:
		return string(c)
	}
}

// ---------------------------------------------------------------------------
// ListingFormat
// ---------------------------------------------------------------------------

// ListingFormat represents how a listing sells: by auction or at a fixed price
type ListingFormat string

const (
	// FormatAuction is a timed auction listing
	FormatAuction ListingFormat = "AUCTION"
	// FormatFixedPrice is a buy-it-now style fixed-price listing
	FormatFixedPrice ListingFormat = "FIXED_PRICE"
)

// IsValid returns true if the listing format is valid
func (f ListingFormat) IsValid() bool {
	return f == FormatAuction || f == FormatFixedPrice
}

// String returns the string representation of ListingFormat
func (f ListingFormat) String() string {
	return string(f)
}

// ---------------------------------------------------------------------------
// Capabilities
// ---------------------------------------------------------------------------

// Capabilities describes which listing formats a marketplace supports.
// Relist strategies branch on these flags instead of hard-coding
// marketplace knowledge.
type Capabilities struct {
	// SupportsFixedPrice is true if the marketplace can host fixed-price listings
	SupportsFixedPrice bool
	// SupportsAuction is true if the marketplace can host auction listings
	SupportsAuction bool
}

// SupportsFormat returns true if the marketplace supports the given format
func (c Capabilities) SupportsFormat(format ListingFormat) bool {
	switch format {
	case FormatAuction:
		return c.SupportsAuction
	case FormatFixedPrice:
		return c.SupportsFixedPrice
	default:
		return false
	}
}

// ---------------------------------------------------------------------------
// Value Objects
// ---------------------------------------------------------------------------

// ListingSnapshot is the marketplace's current view of one listing,
// as returned by the remote API
type ListingSnapshot struct {
	// ListingID is the listing's ID on the marketplace
	ListingID string
	// SKU is the canonical product identifier, when the marketplace echoes it back
	SKU string
	// Title is the listing title
	Title string
	// Description is the listing description
	Description string
	// Format is the listing format (auction or fixed-price)
	Format ListingFormat
	// Price is the current price: the fixed price, or the current bid for auctions
	Price decimal.Decimal
	// StartPrice is the auction starting price (zero for fixed-price listings)
	StartPrice decimal.Decimal
	// ReservePrice is the auction reserve price (zero when no reserve is set)
	ReservePrice decimal.Decimal
	// Currency is the listing currency
	Currency valueobject.Currency
	// Quantity is the quantity available on the marketplace
	Quantity int
	// BidCount is the number of bids received (auctions only)
	BidCount int
	// EndTime is when the auction ends (nil for fixed-price listings)
	EndTime *time.Time
	// IsActive is true while the listing is live on the marketplace
	IsActive bool
}

// CreateListingPayload carries the canonical attributes needed to publish
// a new listing on a marketplace
type CreateListingPayload struct {
	// SKU is the canonical product identifier
	SKU string
	// Title is the listing title
	Title string
	// Description is the listing description
	Description string
	// Format is the desired listing format
	Format ListingFormat
	// Price is the fixed price, or the buy-it-now price for auctions (optional)
	Price decimal.Decimal
	// StartPrice is the auction starting price (auctions only)
	StartPrice decimal.Decimal
	// ReservePrice is the auction reserve price (auctions only, zero for none)
	ReservePrice decimal.Decimal
	// Currency is the listing currency
	Currency valueobject.Currency
	// Quantity is the quantity to offer
	Quantity int
	// Duration is how long an auction runs (auctions only)
	Duration time.Duration
}

// Validate validates the payload before it is sent to an adapter
func (p *CreateListingPayload) Validate() error {
	if p.SKU == "" {
		return ErrInvalidPayload
	}
	if p.Title == "" {
		return ErrInvalidPayload
	}
	if !p.Format.IsValid() {
		return ErrInvalidPayload
	}
	if !p.Currency.IsValid() {
		return ErrInvalidPayload
	}
	if p.Quantity < 1 {
		return ErrInvalidPayload
	}
	if p.Format == FormatAuction && !p.StartPrice.IsPositive() {
		return ErrInvalidPayload
	}
	if p.Format == FormatFixedPrice && !p.Price.IsPositive() {
		return ErrInvalidPayload
	}
	return nil
}

// ---------------------------------------------------------------------------
// Adapter Port Interface
// ---------------------------------------------------------------------------

// Adapter is the port interface for one external marketplace.
// It follows the Ports & Adapters pattern: the interface lives in the domain
// layer and the concrete HTTP clients (eBay, Yahoo! Auctions, Mercari) live
// in the infrastructure layer. The sync engine and auction manager only ever
// talk to this interface, so marketplace failures surface as ordinary error
// returns that the fan-out captures per target.
type Adapter interface {
	// Code returns the marketplace code this adapter handles
	Code() Code

	// Capabilities returns the listing formats this marketplace supports
	Capabilities() Capabilities

	// SetStock updates the available quantity of a listing
	SetStock(ctx context.Context, listingID string, quantity int) error

	// SetPrice updates the price of a listing in the given currency
	SetPrice(ctx context.Context, listingID string, amount decimal.Decimal, currency valueobject.Currency) error

	// GetListing retrieves the marketplace's current view of a listing
	GetListing(ctx context.Context, listingID string) (*ListingSnapshot, error)

	// CreateListing publishes a new listing and returns its marketplace listing ID
	CreateListing(ctx context.Context, payload *CreateListingPayload) (string, error)

	// PauseListing takes a listing off sale without deleting it
	PauseListing(ctx context.Context, listingID string) error
}

// AdapterRegistry provides access to the configured marketplace adapters
type AdapterRegistry interface {
	// GetAdapter returns the adapter for the specified marketplace code
	GetAdapter(code Code) (Adapter, error)

	// ListAdapters returns all registered adapters
	ListAdapters() []Adapter

	// ListAuctionAdapters returns the adapters for auction-capable marketplaces
	ListAuctionAdapters() []Adapter
}
