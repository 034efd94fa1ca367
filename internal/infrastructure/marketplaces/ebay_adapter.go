package marketplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// EbayAdapter implements the Adapter interface against the eBay selling API.
// eBay hosts both auctions and fixed-price listings.
type EbayAdapter struct {
	client *apiClient
}

// NewEbayAdapter creates a new eBay adapter with the given configuration
func NewEbayAdapter(cfg ClientConfig) (*EbayAdapter, error) {
	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("ebay: %w", err)
	}
	return &EbayAdapter{client: client}, nil
}

// Code returns the marketplace code this adapter handles
func (a *EbayAdapter) Code() marketplace.Code {
	return marketplace.CodeEbay
}

// Capabilities returns the listing formats eBay supports
func (a *EbayAdapter) Capabilities() marketplace.Capabilities {
	return marketplace.Capabilities{SupportsFixedPrice: true, SupportsAuction: true}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type ebayEnvelope struct {
	Ack     string `json:"ack"`
	Message string `json:"message"`
}

func (e *ebayEnvelope) isSuccess() bool {
	return e.Ack == "Success" || e.Ack == "Warning"
}

type ebayItem struct {
	ItemID       string  `json:"item_id"`
	SKU          string  `json:"sku"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ListingType  string  `json:"listing_type"` // Chinese = auction, FixedPriceItem
	CurrentPrice string  `json:"current_price"`
	StartPrice   string  `json:"start_price"`
	ReservePrice string  `json:"reserve_price"`
	Currency     string  `json:"currency"`
	Quantity     int     `json:"quantity"`
	BidCount     int     `json:"bid_count"`
	EndTime      *int64  `json:"end_time,omitempty"` // Unix seconds
	Status       string  `json:"status"`             // Active, Ended, Paused
}

type ebayItemResponse struct {
	ebayEnvelope
	Item *ebayItem `json:"item"`
}

type ebayCreateResponse struct {
	ebayEnvelope
	ItemID string `json:"item_id"`
}

// ---------------------------------------------------------------------------
// Adapter operations
// ---------------------------------------------------------------------------

// SetStock updates the quantity of a listing
func (a *EbayAdapter) SetStock(ctx context.Context, listingID string, quantity int) error {
	body := map[string]any{"quantity": quantity}
	respBody, err := a.client.doJSON(ctx, http.MethodPut, "/sell/inventory/item/"+listingID+"/quantity", body)
	if err != nil {
		return fmt.Errorf("ebay: set stock for %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "set stock")
}

// SetPrice updates the price of a listing in the given currency
func (a *EbayAdapter) SetPrice(ctx context.Context, listingID string, amount decimal.Decimal, currency valueobject.Currency) error {
	body := map[string]any{
		"price":    amount.String(),
		"currency": string(currency),
	}
	respBody, err := a.client.doJSON(ctx, http.MethodPut, "/sell/inventory/item/"+listingID+"/price", body)
	if err != nil {
		return fmt.Errorf("ebay: set price for %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "set price")
}

// GetListing fetches the current state of a listing
func (a *EbayAdapter) GetListing(ctx context.Context, listingID string) (*marketplace.ListingSnapshot, error) {
	respBody, err := a.client.doJSON(ctx, http.MethodGet, "/sell/inventory/item/"+listingID, nil)
	if err != nil {
		return nil, fmt.Errorf("ebay: get listing %s: %w", listingID, err)
	}

	var resp ebayItemResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() {
		return nil, fmt.Errorf("%w: %s", marketplace.ErrRequestFailed, resp.Message)
	}
	if resp.Item == nil {
		return nil, fmt.Errorf("ebay: get listing %s: %w", listingID, marketplace.ErrListingNotFound)
	}
	return ebayItemToSnapshot(resp.Item)
}

// CreateListing publishes a new listing and returns its marketplace ID
func (a *EbayAdapter) CreateListing(ctx context.Context, payload *marketplace.CreateListingPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}

	body := map[string]any{
		"sku":         payload.SKU,
		"title":       payload.Title,
		"description": payload.Description,
		"currency":    string(payload.Currency),
		"quantity":    payload.Quantity,
	}
	if payload.Format == marketplace.FormatAuction {
		body["listing_type"] = "Chinese"
		body["start_price"] = payload.StartPrice.String()
		if payload.ReservePrice.IsPositive() {
			body["reserve_price"] = payload.ReservePrice.String()
		}
		if payload.Price.IsPositive() {
			body["buy_it_now_price"] = payload.Price.String()
		}
		body["duration_hours"] = int(payload.Duration.Hours())
	} else {
		body["listing_type"] = "FixedPriceItem"
		body["price"] = payload.Price.String()
	}

	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/sell/inventory/item", body)
	if err != nil {
		return "", fmt.Errorf("ebay: create listing: %w", err)
	}

	var resp ebayCreateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() || resp.ItemID == "" {
		return "", fmt.Errorf("%w: %s", marketplace.ErrRequestFailed, resp.Message)
	}
	return resp.ItemID, nil
}

// PauseListing takes a listing off sale without deleting it
func (a *EbayAdapter) PauseListing(ctx context.Context, listingID string) error {
	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/sell/inventory/item/"+listingID+"/pause", nil)
	if err != nil {
		return fmt.Errorf("ebay: pause listing %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "pause listing")
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (a *EbayAdapter) checkEnvelope(respBody []byte, op string) error {
	var resp ebayEnvelope
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() {
		return fmt.Errorf("ebay: %s: %w: %s", op, marketplace.ErrRequestFailed, resp.Message)
	}
	return nil
}

func ebayItemToSnapshot(item *ebayItem) (*marketplace.ListingSnapshot, error) {
	price, err := parseDecimal(item.CurrentPrice)
	if err != nil {
		return nil, err
	}
	startPrice, err := parseDecimal(item.StartPrice)
	if err != nil {
		return nil, err
	}
	reservePrice, err := parseDecimal(item.ReservePrice)
	if err != nil {
		return nil, err
	}

	format := marketplace.FormatFixedPrice
	if item.ListingType == "Chinese" {
		format = marketplace.FormatAuction
	}

	snapshot := &marketplace.ListingSnapshot{
		ListingID:    item.ItemID,
		SKU:          item.SKU,
		Title:        item.Title,
		Description:  item.Description,
		Format:       format,
		Price:        price,
		StartPrice:   startPrice,
		ReservePrice: reservePrice,
		Currency:     valueobject.Currency(item.Currency),
		Quantity:     item.Quantity,
		BidCount:     item.BidCount,
		IsActive:     item.Status == "Active",
	}
	if item.EndTime != nil {
		endTime := time.Unix(*item.EndTime, 0)
		snapshot.EndTime = &endTime
	}
	return snapshot, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad amount %q", marketplace.ErrInvalidResponse, s)
	}
	return d, nil
}

var _ marketplace.Adapter = (*EbayAdapter)(nil)
