package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Webhook Requests
// ---------------------------------------------------------------------------

// SaleEventRequest is the payload marketplaces deliver when a sale happens.
// The caller supplies the event ID: retried deliveries reuse the same ID and
// the intake deduplicates on it.
type SaleEventRequest struct {
	EventID      string     `json:"event_id" binding:"required,uuid"`
	SKU          string     `json:"sku" binding:"required,max=100"`
	Marketplace  string     `json:"marketplace" binding:"required,oneof=EBAY YAHOO_AUCTION MERCARI"`
	ListingID    string     `json:"listing_id" binding:"required,max=100"`
	QuantitySold int        `json:"quantity_sold" binding:"required,min=1"`
	OccurredAt   *time.Time `json:"occurred_at"`
}

// PriceEventRequest is the payload delivered when a price changes on one
// marketplace
type PriceEventRequest struct {
	EventID     string     `json:"event_id" binding:"required,uuid"`
	SKU         string     `json:"sku" binding:"required,max=100"`
	Marketplace string     `json:"marketplace" binding:"required,oneof=EBAY YAHOO_AUCTION MERCARI"`
	NewPrice    string     `json:"new_price" binding:"required,decimal"`
	Currency    string     `json:"currency" binding:"required,len=3"`
	OccurredAt  *time.Time `json:"occurred_at"`
}

// AuctionEndRequest is the payload delivered when an auction reaches its end
// time. Relist policy fields are optional; unset fields fall back to the
// server's configured policy.
type AuctionEndRequest struct {
	Marketplace string     `json:"marketplace" binding:"required,oneof=EBAY YAHOO_AUCTION"`
	ListingID   string     `json:"listing_id" binding:"required,max=100"`
	SKU         string     `json:"sku" binding:"required,max=100"`
	Sold        bool       `json:"sold"`
	Quantity    int        `json:"quantity" binding:"min=0"`
	FinalPrice  *string    `json:"final_price" binding:"omitempty,decimal"`
	BidCount    int        `json:"bid_count" binding:"min=0"`
	EndTime     *time.Time `json:"end_time"`

	Strategy        string  `json:"strategy" binding:"omitempty,oneof=AUCTION FIXED_PRICE ABANDON"`
	PriceAdjustment *string `json:"price_adjustment" binding:"omitempty,decimal"`
}

// ---------------------------------------------------------------------------
// Webhook Responses
// ---------------------------------------------------------------------------

// SyncResultResponse is one per-target propagation outcome
type SyncResultResponse struct {
	Marketplace   string  `json:"marketplace"`
	ListingID     string  `json:"listing_id"`
	Operation     string  `json:"operation"`
	Success       bool    `json:"success"`
	PreviousStock *int    `json:"previous_stock,omitempty"`
	NewStock      *int    `json:"new_stock,omitempty"`
	PreviousPrice *string `json:"previous_price,omitempty"`
	NewPrice      *string `json:"new_price,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// SyncOutcomeResponse summarizes one fan-out run
type SyncOutcomeResponse struct {
	EventID   string               `json:"event_id"`
	SKU       string               `json:"sku"`
	Succeeded int                  `json:"succeeded"`
	Failed    int                  `json:"failed"`
	Results   []SyncResultResponse `json:"results"`
}

// RelistResultResponse is the outcome of handling one auction end
type RelistResultResponse struct {
	Success      bool    `json:"success"`
	Marketplace  string  `json:"marketplace"`
	ListingID    string  `json:"listing_id"`
	NewListingID string  `json:"new_listing_id,omitempty"`
	Format       string  `json:"format,omitempty"`
	NewPrice     *string `json:"new_price,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// ---------------------------------------------------------------------------
// Mapping helpers
// ---------------------------------------------------------------------------

func toSyncOutcomeResponse(eventID, sku string, results []listing.SyncResult) SyncOutcomeResponse {
	resp := SyncOutcomeResponse{
		EventID: eventID,
		SKU:     sku,
		Results: make([]SyncResultResponse, 0, len(results)),
	}
	for i := range results {
		r := &results[i]
		if r.Success {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
		resp.Results = append(resp.Results, SyncResultResponse{
			Marketplace:   r.MarketplaceCode.String(),
			ListingID:     r.ListingID,
			Operation:     r.Operation.String(),
			Success:       r.Success,
			PreviousStock: r.PreviousStock,
			NewStock:      r.NewStock,
			PreviousPrice: decimalString(r.PreviousPrice),
			NewPrice:      decimalString(r.NewPrice),
			Error:         r.Error,
		})
	}
	return resp
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseMarketplaceCode(s string) marketplace.Code {
	return marketplace.Code(s)
}
