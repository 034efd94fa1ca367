package marketplaces

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// MercariAdapter implements the Adapter interface against the Mercari Shops
// API. Mercari sells at fixed prices only, so auction create requests are
// rejected locally before any HTTP call.
type MercariAdapter struct {
	client *apiClient
}

// NewMercariAdapter creates a new Mercari adapter
func NewMercariAdapter(cfg ClientConfig) (*MercariAdapter, error) {
	client, err := newAPIClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("mercari: %w", err)
	}
	return &MercariAdapter{client: client}, nil
}

// Code returns the marketplace code this adapter handles
func (a *MercariAdapter) Code() marketplace.Code {
	return marketplace.CodeMercari
}

// Capabilities returns the listing formats Mercari supports
func (a *MercariAdapter) Capabilities() marketplace.Capabilities {
	return marketplace.Capabilities{SupportsFixedPrice: true, SupportsAuction: false}
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type mercariEnvelope struct {
	Code    int    `json:"code"` // 0 on success
	Message string `json:"message"`
}

func (e *mercariEnvelope) isSuccess() bool {
	return e.Code == 0
}

type mercariProduct struct {
	ProductID   string `json:"product_id"`
	SKU         string `json:"sku"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Currency    string `json:"currency"`
	Stock       int    `json:"stock"`
	OnSale      bool   `json:"on_sale"`
}

type mercariProductResponse struct {
	mercariEnvelope
	Product *mercariProduct `json:"product"`
}

type mercariCreateResponse struct {
	mercariEnvelope
	ProductID string `json:"product_id"`
}

// ---------------------------------------------------------------------------
// Adapter operations
// ---------------------------------------------------------------------------

// SetStock updates the stock of a product
func (a *MercariAdapter) SetStock(ctx context.Context, listingID string, quantity int) error {
	body := map[string]any{"stock": quantity}
	respBody, err := a.client.doJSON(ctx, http.MethodPatch, "/v1/products/"+listingID+"/stock", body)
	if err != nil {
		return fmt.Errorf("mercari: set stock for %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "set stock")
}

// SetPrice updates the price of a product in the given currency
func (a *MercariAdapter) SetPrice(ctx context.Context, listingID string, amount decimal.Decimal, currency valueobject.Currency) error {
	body := map[string]any{
		"price":    amount.String(),
		"currency": string(currency),
	}
	respBody, err := a.client.doJSON(ctx, http.MethodPatch, "/v1/products/"+listingID+"/price", body)
	if err != nil {
		return fmt.Errorf("mercari: set price for %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "set price")
}

// GetListing fetches the current state of a product
func (a *MercariAdapter) GetListing(ctx context.Context, listingID string) (*marketplace.ListingSnapshot, error) {
	respBody, err := a.client.doJSON(ctx, http.MethodGet, "/v1/products/"+listingID, nil)
	if err != nil {
		return nil, fmt.Errorf("mercari: get listing %s: %w", listingID, err)
	}

	var resp mercariProductResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() {
		return nil, fmt.Errorf("%w: %s", marketplace.ErrRequestFailed, resp.Message)
	}
	if resp.Product == nil {
		return nil, fmt.Errorf("mercari: get listing %s: %w", listingID, marketplace.ErrListingNotFound)
	}
	return mercariProductToSnapshot(resp.Product)
}

// CreateListing publishes a new product and returns its product ID.
// Auction payloads are rejected before any request is sent.
func (a *MercariAdapter) CreateListing(ctx context.Context, payload *marketplace.CreateListingPayload) (string, error) {
	if err := payload.Validate(); err != nil {
		return "", err
	}
	if payload.Format == marketplace.FormatAuction {
		return "", fmt.Errorf("mercari: %w", marketplace.ErrAuctionNotSupported)
	}

	body := map[string]any{
		"sku":         payload.SKU,
		"name":        payload.Title,
		"description": payload.Description,
		"price":       payload.Price.String(),
		"currency":    string(payload.Currency),
		"stock":       payload.Quantity,
	}

	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/v1/products", body)
	if err != nil {
		return "", fmt.Errorf("mercari: create listing: %w", err)
	}

	var resp mercariCreateResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() || resp.ProductID == "" {
		return "", fmt.Errorf("%w: %s", marketplace.ErrRequestFailed, resp.Message)
	}
	return resp.ProductID, nil
}

// PauseListing takes a product off sale without deleting it
func (a *MercariAdapter) PauseListing(ctx context.Context, listingID string) error {
	respBody, err := a.client.doJSON(ctx, http.MethodPost, "/v1/products/"+listingID+"/suspend", nil)
	if err != nil {
		return fmt.Errorf("mercari: pause listing %s: %w", listingID, err)
	}
	return a.checkEnvelope(respBody, "pause listing")
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

func (a *MercariAdapter) checkEnvelope(respBody []byte, op string) error {
	var resp mercariEnvelope
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return fmt.Errorf("%w: %v", marketplace.ErrInvalidResponse, err)
	}
	if !resp.isSuccess() {
		return fmt.Errorf("mercari: %s: %w: %s", op, marketplace.ErrRequestFailed, resp.Message)
	}
	return nil
}

func mercariProductToSnapshot(product *mercariProduct) (*marketplace.ListingSnapshot, error) {
	price, err := parseDecimal(product.Price)
	if err != nil {
		return nil, err
	}

	return &marketplace.ListingSnapshot{
		ListingID:   product.ProductID,
		SKU:         product.SKU,
		Title:       product.Name,
		Description: product.Description,
		Format:      marketplace.FormatFixedPrice,
		Price:       price,
		Currency:    valueobject.Currency(product.Currency),
		Quantity:    product.Stock,
		IsActive:    product.OnSale,
	}, nil
}

var _ marketplace.Adapter = (*MercariAdapter)(nil)
