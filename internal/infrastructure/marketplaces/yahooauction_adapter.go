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

// YahooAuctionAdapter implements the Adapter interface against the
// Yahoo! Auctions API. Yahoo! Auctions hosts auctions only, so fixed-price
// create requests are rejected locally before any HTTP call.
type YahooAuctionAdapter struct {
	client *apiClient
}

// NewYahooAuctionAdapter creates a new Yahoo! Auctions adapter
func NewYahooAuctionAdapter(cfg ClientConfig) (*YahooAuctionAdapter, error) {
	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("yahooauction: %w", err)
	}
	return &YahooAuctionAdapter{client: client}, nil
}

// Code returns the marketplace code this adapter handles
func (a *YahooAuctionAdapter) Code() marketplace.Code {
	return marketplace.CodeYahooAuction
}

// Capabilities returns the listing formats Yahoo! Auctions supports
func (a *YahooAuctionAdapter) Capabilities() marketplace.Capabilities {
	return marketplace.Capabilities{SupportsFixedPrice: false, SupportsAuction: true}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type yahooEnvelope struct {
	Result  string `json:"result"` // "OK" or "NG"
	Message string `json:"message"`
}

func (e *yahooEnvelope) isSuccess() bool {
	return e.Result == "OK"
}

type yahooAuctionItem struct {
	AuctionID    string `json:"auction_id"`
	SellerSKU    string `json:"seller_sku"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	CurrentPrice string `json:"current_price"`
	InitPrice    string `json:"init_price"`
	ReservePrice string `json:"reserve_price"`
	Currency     string `json:"currency"`
	Quantity     int    `json:"quantity"`
	Bids         int    `json:"bids"`
	EndTime      string `json:"end_time"` // RFC3339
	Status       string `json:"status"`   // open, closed, suspended
}

type yahooItemResponse struct {
	yahooEnvelope
	Auction *yahooAuctionItem `json:"auction"`
}

type yahooSubmitResponse struct {
	yahooEnvelope
	AuctionID string `json:"auction_id"`
}

// ---------------------------------------------------------------------------
// Adapter operations
// ---------------------------------------------------------------------------

// SetStock updates the quantity of an auction
func (a *YahooAuctionAdapter) SetStock(ctx context.Context, listingID string, quantity int) error {
	body := map[string]any{"quantity": quantity}
	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/auction/v1/items/"+listingID+"/quantity", body)
	if err != nil {
		return fmt.Errorf("yahooauction: set stock for %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "set stock")
}

// SetPrice updates the starting price of a not-yet-bid auction
func (a *YahooAuctionAdapter) SetPrice(ctx context.Context, listingID string, amount decimal.Decimal, currency valueobject.Currency) error {
	body := map[string]any{
		"init_price": amount.String(),
		"currency":   string(currency),
	}
	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/auction/v1/items/"+listingID+"/price", body)
	if err != nil {
		return fmt.Errorf("yahooauction: set price for %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "set price")
}

// GetListing fetches the current state of an auction
func (a *YahooAuctionAdapter) GetListing(ctx context.Context, listingID string) (*marketplace.ListingSnapshot, error) {
	respBody, err := a.client.doJSON(ctx, http.MethodGet, "/auction/v1/items/"+listingID, nil)
	if err != nil {
		return nil, fmt.Errorf("yahooauction: get listing %s: %w", listingID, err)
	}

	var resp yahooItemResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() {
		return nil, fmt.Errorf("%w: %s", marketplace.ErrRequestFailed, resp.Message)
	}
	if resp.Auction == nil {
		return nil, fmt.Errorf("yahooauction: get listing %s: %w", listingID, marketplace.ErrListingNotFound)
	}
	return yahooItemToSnapshot(resp.Auction)
}

// CreateListing publishes a new auction and returns its auction ID.
// Fixed-price payloads are rejected before any request is sent.
func (a *YahooAuctionAdapter) CreateListing(ctx context.Context, payload *marketplace.CreateListingPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	if payload.Format == marketplace.FormatFixedPrice {
		return "", fmt.Errorf("yahooauction: %w", marketplace.ErrFixedPriceNotSupported)
	}

	body := map[string]any{
		"seller_sku":  payload.SKU,
		"title":       payload.Title,
		"description": payload.Description,
		"init_price":  payload.StartPrice.String(),
		"currency":    string(payload.Currency),
		"quantity":    payload.Quantity,
		"duration":    int(payload.Duration.Hours()),
	}
	if payload.ReservePrice.IsPositive() {
		body["reserve_price"] = payload.ReservePrice.String()
	}

	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/auction/v1/items", body)
	if err != nil {
		return "", fmt.Errorf("yahooauction: create listing: %w", err)
	}

	var resp yahooSubmitResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() || resp.AuctionID == "" {
		return "", fmt.Errorf("%w: %s", marketplace.ErrRequestFailed, resp.Message)
	}
	return resp.AuctionID, nil
}

// PauseListing suspends a running auction
func (a *YahooAuctionAdapter) PauseListing(ctx context.Context, listingID string) error {
	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/auction/v1/items/"+listingID+"/suspend", nil)
	if err != nil {
		return fmt.Errorf("yahooauction: pause listing %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "pause listing")
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (a *YahooAuctionAdapter) checkEnvelope(respBody []byte, op string) error {
	var resp yahooEnvelope
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() {
		return fmt.Errorf("yahooauction: %s: %w: %s", op, marketplace.ErrRequestFailed, resp.Message)
	}
	return nil
}

func yahooItemToSnapshot(item *yahooAuctionItem) (*marketplace.ListingSnapshot, error) {
	price, err := parseDecimal(item.CurrentPrice)
	if err != nil {
		return nil, err
	}
	startPrice, err := parseDecimal(item.InitPrice)
	if err != nil {
		return nil, err
	}
	reservePrice, err := parseDecimal(item.ReservePrice)
	if err != nil {
		return nil, err
	}

	snapshot := &marketplace.ListingSnapshot{
		ListingID:    item.AuctionID,
		SKU:          item.SellerSKU,
		Title:        item.Title,
		Description:  item.Description,
		Format:       marketplace.FormatAuction,
		Price:        price,
		StartPrice:   startPrice,
		ReservePrice: reservePrice,
		Currency:     valueobject.Currency(item.Currency),
		Quantity:     item.Quantity,
		BidCount:     item.Bids,
		IsActive:     item.Status == "open",
	}
	if item.EndTime != "" {
		endTime, err := time.Parse(time.RFC3339, item.EndTime)
		if err != nil {
			return nil, fmt.Errorf("%w: bad end time %q", marketplace.ErrInvalidResponse, item.EndTime)
		}
		snapshot.EndTime = &endTime
	}
	return snapshot, nil
}

var _ marketplace.Adapter = (*YahooAuctionAdapter)(nil)
