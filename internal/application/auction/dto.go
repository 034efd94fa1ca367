package auction

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/marketplace"
)

var (
	// ErrNoRelistHandler indicates no relist routine is registered for
	// the event's marketplace
	ErrNoRelistHandler = errors.New("auction: no relist handler for marketplace")

	// ErrInvalidEvent indicates an auction end event that violates the
	// caller contract
	ErrInvalidEvent = errors.New("auction: invalid auction end event")
)

// ---------------------------------------------------------------------------
// RelistStrategy
// ---------------------------------------------------------------------------

// RelistStrategy is the policy applied to an auction that ended unsold
type RelistStrategy string

const (
	// StrategyAuction relists with the same auction format under a new listing
	StrategyAuction RelistStrategy = "AUCTION"
	// StrategyFixedPrice converts the listing to fixed-price. Only valid on
	// marketplaces whose capability set includes fixed-price.
	StrategyFixedPrice RelistStrategy = "FIXED_PRICE"
	// StrategyAbandon retires the listing without replacement
	StrategyAbandon RelistStrategy = "ABANDON"
)

// IsValid returns true if the strategy is valid
func (s RelistStrategy) IsValid() bool {
	switch s {
	case StrategyAuction, StrategyFixedPrice, StrategyAbandon:
		return true
	default:
		return false
	}
}

// String returns the string representation of RelistStrategy
func (s RelistStrategy) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// RelistOptions / RelistResult
// ---------------------------------------------------------------------------

// RelistOptions is the relist policy input for one auction end
type RelistOptions struct {
	// Strategy selects what to do with an unsold auction
	Strategy RelistStrategy
	// PriceAdjustment is a percentage applied to the starting price and,
	// where one is set, the reserve price on each renewal. Negative values
	// decay the price; the default is -10.
	PriceAdjustment decimal.Decimal
}

// DefaultRelistOptions returns the default policy: relist as auction with
// a 10% price decay per renewal
func DefaultRelistOptions() RelistOptions {
	return RelistOptions{
		Strategy:        StrategyAuction,
		PriceAdjustment: decimal.NewFromInt(-10),
	}
}

// withDefaults fills unset fields with the default policy
func (o RelistOptions) withDefaults() RelistOptions {
	if !o.Strategy.IsValid() {
		o.Strategy = StrategyAuction
	}
	if o.PriceAdjustment.IsZero() {
		o.PriceAdjustment = decimal.NewFromInt(-10)
	}
	return o
}

// RelistResult is the outcome of handling one auction end. It is a value,
// never a thrown error: batch callers depend on HandleAuctionEnd not
// panicking or erroring past its boundary, so failures travel in Err.
type RelistResult struct {
	// Success is true when the end was handled: a sale recorded, a
	// replacement listing created, or the listing deliberately abandoned
	Success bool
	// MarketplaceCode is the marketplace the auction ended on
	MarketplaceCode marketplace.Code
	// ListingID is the ended listing
	ListingID string
	// NewListingID is the replacement listing, when one was created
	NewListingID string
	// Format is the format of the outcome listing (the ended auction for
	// sales and abandons, the replacement's format for relists)
	Format marketplace.ListingFormat
	// NewPrice is the decayed price the replacement was published at
	NewPrice *decimal.Decimal
	// Err is the captured failure. Callers branch on it with errors.Is,
	// e.g. marketplace.ErrFixedPriceNotSupported for capability mismatches.
	Err error
}

// ErrorMessage returns the captured failure as a string, empty on success
func (r *RelistResult) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ---------------------------------------------------------------------------
// BatchRelistReport
// ---------------------------------------------------------------------------

// BatchRelistReport summarizes one batch pass over ended auctions.
// One listing's failure never stops the batch; the per-listing results
// keep partial success explicit.
type BatchRelistReport struct {
	// Processed is how many ended auctions the batch handled
	Processed int
	// Succeeded is how many ended auctions resolved successfully
	Succeeded int
	// Failed is how many ended auctions failed
	Failed int
	// Results holds the per-listing outcomes
	Results []RelistResult
	// CompletedAt is when the batch finished
	CompletedAt time.Time
}
