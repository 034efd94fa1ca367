package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
)

// RelistHandler is one marketplace's relist routine. Handlers are
// dispatched through a strategy map keyed by marketplace code, so adding
// a marketplace means registering one handler, not editing a dispatcher.
type RelistHandler interface {
	// Code returns the marketplace this handler relists on
	Code() marketplace.Code

	// Relist fetches the ended listing's canonical attributes from the
	// adapter, applies the price decay, and publishes the replacement
	// according to the requested strategy
	Relist(ctx context.Context, event *listing.AuctionEndEvent, opts RelistOptions) (*RelistResult, error)
}

// applyAdjustment applies a percentage adjustment to a price.
// A zero price stays zero: an auction without a reserve keeps none.
func applyAdjustment(price, percent decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() {
		return price
	}
	factor := decimal.NewFromInt(1).Add(percent.Div(decimal.NewFromInt(100)))
	adjusted := price.Mul(factor).Round(2)
	if !adjusted.IsPositive() {
		// decay never prices an item off the marketplace entirely
		return decimal.NewFromFloat(0.01)
	}
	return adjusted
}

// ---------------------------------------------------------------------------
// eBay
// ---------------------------------------------------------------------------

// ebayRelistHandler relists ended eBay auctions, either as a fresh auction
// or converted to a fixed-price listing
type ebayRelistHandler struct {
	adapter marketplace.Adapter
}

// ebayRelistDuration is the standard eBay auction duration for renewals
const ebayRelistDuration = 7 * 24 * time.Hour

// NewEbayRelistHandler creates the eBay relist routine
func NewEbayRelistHandler(adapter marketplace.Adapter) RelistHandler {
	return &ebayRelistHandler{adapter: adapter}
}

func (h *ebayRelistHandler) Code() marketplace.Code {
	return marketplace.CodeEbay
}

func (h *ebayRelistHandler) Relist(ctx context.Context, event *listing.AuctionEndEvent, opts RelistOptions) (*RelistResult, error) {
	snapshot, err := h.adapter.GetListing(ctx, event.ListingID)
	if err != nil {
		return nil, fmt.Errorf("fetch ended listing %s: %w", event.ListingID, err)
	}

	switch opts.Strategy {
	case StrategyAuction:
		return createRelisting(ctx, h.adapter, event, snapshot, &marketplace.CreateListingPayload{
			SKU:          snapshot.SKU,
			Title:        snapshot.Title,
			Description:  snapshot.Description,
			Format:       marketplace.FormatAuction,
			StartPrice:   applyAdjustment(snapshot.StartPrice, opts.PriceAdjustment),
			ReservePrice: applyAdjustment(snapshot.ReservePrice, opts.PriceAdjustment),
			Currency:     snapshot.Currency,
			Quantity:     1,
			Duration:     ebayRelistDuration,
		})
	case StrategyFixedPrice:
		return createRelisting(ctx, h.adapter, event, snapshot, &marketplace.CreateListingPayload{
			SKU:         snapshot.SKU,
			Title:       snapshot.Title,
			Description: snapshot.Description,
			Format:      marketplace.FormatFixedPrice,
			Price:       applyAdjustment(fixedPriceBase(snapshot), opts.PriceAdjustment),
			Currency:    snapshot.Currency,
			Quantity:    maxQuantity(snapshot.Quantity, 1),
		})
	default:
		return nil, fmt.Errorf("auction: unsupported relist strategy %q", opts.Strategy)
	}
}

// ---------------------------------------------------------------------------
// Yahoo! Auctions
// ---------------------------------------------------------------------------

// yahooAuctionRelistHandler relists ended Yahoo! Auctions listings.
// Yahoo! Auctions has no fixed-price capability: a fixed-price strategy is
// refused with a capability error rather than silently relisting as an
// auction, so the caller can fall back to a different marketplace.
type yahooAuctionRelistHandler struct {
	adapter marketplace.Adapter
}

// yahooRelistDuration is the standard Yahoo! Auctions renewal duration
const yahooRelistDuration = 5 * 24 * time.Hour

// NewYahooAuctionRelistHandler creates the Yahoo! Auctions relist routine
func NewYahooAuctionRelistHandler(adapter marketplace.Adapter) RelistHandler {
	return &yahooAuctionRelistHandler{adapter: adapter}
}

func (h *yahooAuctionRelistHandler) Code() marketplace.Code {
	return marketplace.CodeYahooAuction
}

func (h *yahooAuctionRelistHandler) Relist(ctx context.Context, event *listing.AuctionEndEvent, opts RelistOptions) (*RelistResult, error) {
	if opts.Strategy == StrategyFixedPrice && !h.adapter.Capabilities().SupportsFixedPrice {
		return nil, fmt.Errorf("%w: %s", marketplace.ErrFixedPriceNotSupported, h.Code())
	}

	snapshot, err := h.adapter.GetListing(ctx, event.ListingID)
	if err != nil {
		return nil, fmt.Errorf("fetch ended listing %s: %w", event.ListingID, err)
	}

	return createRelisting(ctx, h.adapter, event, snapshot, &marketplace.CreateListingPayload{
		SKU:          snapshot.SKU,
		Title:        snapshot.Title,
		Description:  snapshot.Description,
		Format:       marketplace.FormatAuction,
		StartPrice:   applyAdjustment(snapshot.StartPrice, opts.PriceAdjustment),
		ReservePrice: applyAdjustment(snapshot.ReservePrice, opts.PriceAdjustment),
		Currency:     snapshot.Currency,
		Quantity:     1,
		Duration:     yahooRelistDuration,
	})
}

// ---------------------------------------------------------------------------
// Shared relist plumbing
// ---------------------------------------------------------------------------

// createRelisting publishes the replacement listing and assembles the result
func createRelisting(ctx context.Context, adapter marketplace.Adapter, event *listing.AuctionEndEvent, snapshot *marketplace.ListingSnapshot, payload *marketplace.CreateListingPayload) (*RelistResult, error) {
	if payload.SKU == "" {
		// some marketplaces do not echo the SKU back; fall back to the event's
		payload.SKU = event.SKU
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if !adapter.Capabilities().SupportsFormat(payload.Format) {
		if payload.Format == marketplace.FormatFixedPrice {
			return nil, fmt.Errorf("%w: %s", marketplace.ErrFixedPriceNotSupported, adapter.Code())
		}
		return nil, fmt.Errorf("%w: %s", marketplace.ErrAuctionNotSupported, adapter.Code())
	}

	newListingID, err := adapter.CreateListing(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("create replacement listing: %w", err)
	}

	newPrice := payload.Price
	if payload.Format == marketplace.FormatAuction {
		newPrice = payload.StartPrice
	}
	return &RelistResult{
		Success:         true,
		MarketplaceCode: adapter.Code(),
		ListingID:       event.ListingID,
		NewListingID:    newListingID,
		Format:          payload.Format,
		NewPrice:        &newPrice,
	}, nil
}

// fixedPriceBase picks the price a fixed-price conversion starts from: the
// listing's buy-it-now price when it had one, otherwise the start price
func fixedPriceBase(snapshot *marketplace.ListingSnapshot) decimal.Decimal {
	if snapshot.Price.IsPositive() {
		return snapshot.Price
	}
	return snapshot.StartPrice
}

func maxQuantity(quantity, floor int) int {
	if quantity < floor {
		return floor
	}
	return quantity
}
