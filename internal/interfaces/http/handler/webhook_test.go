package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/application/auction"
	appsync "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/interfaces/http/dto"
	"github.com/resell/backend/internal/interfaces/http/middleware"
)

// MockSyncEngine is a mock implementation of SyncEngine
type MockSyncEngine struct {
	mock.Mock
}

func (m *MockSyncEngine) SyncInventory(ctx context.Context, event *listing.InventoryUpdateEvent) ([]listing.SyncResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]listing.SyncResult), args.Error(1)
}

func (m *MockSyncEngine) SyncPrice(ctx context.Context, event *listing.PriceUpdateEvent) ([]listing.SyncResult, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]listing.SyncResult), args.Error(1)
}

// MockAuctionEndHandler is a mock implementation of AuctionEndHandler
type MockAuctionEndHandler struct {
	mock.Mock
}

func (m *MockAuctionEndHandler) HandleAuctionEnd(ctx context.Context, event *listing.AuctionEndEvent, opts auction.RelistOptions) *auction.RelistResult {
	args := m.Called(ctx, event, opts)
	return args.Get(0).(*auction.RelistResult)
}

func setupWebhookRouter(syncer SyncEngine, auctions AuctionEndHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	router := gin.New()
	handler := NewWebhookHandler(syncer, auctions, zap.NewNop())
	handler.RegisterRoutes(router.Group("/api/v1"))
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func validSalePayload() map[string]any {
	return map[string]any{
		"event_id":      uuid.New().String(),
		"sku":           "CAM-X100",
		"marketplace":   "EBAY",
		"listing_id":    "eb-1001",
		"quantity_sold": 1,
	}
}

func TestWebhookHandler_HandleSale(t *testing.T) {
	syncer := new(MockSyncEngine)
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(syncer, auctions)

	eventID := uuid.New()
	results := []listing.SyncResult{
		listing.NewStockSyncResult(eventID, "CAM-X100", marketplace.CodeMercari, "mc-2001", 3, 2),
		listing.NewFailedSyncResult(eventID, "CAM-X100", marketplace.CodeYahooAuction, "ya-3001", listing.SyncOperationStock, "rate limited"),
	}
	syncer.On("SyncInventory", mock.Anything, mock.MatchedBy(func(e *listing.InventoryUpdateEvent) bool {
		return e.SKU == "CAM-X100" && e.SoldOn == marketplace.CodeEbay && e.QuantitySold == 1
	})).Return(results, nil)

	w := postJSON(t, router, "/api/v1/webhooks/sale", validSalePayload())

	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)

	var outcome SyncOutcomeResponse
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &outcome))
	assert.Equal(t, "CAM-X100", outcome.SKU)
	assert.Equal(t, 1, outcome.Succeeded)
	assert.Equal(t, 1, outcome.Failed)
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "MERCARI", outcome.Results[0].Marketplace)
	assert.Equal(t, "rate limited", outcome.Results[1].Error)

	syncer.AssertExpectations(t)
}

func TestWebhookHandler_HandleSale_BindingFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p map[string]any)
	}{
		{"MissingEventID", func(p map[string]any) { delete(p, "event_id") }},
		{"BadEventID", func(p map[string]any) { p["event_id"] = "not-a-uuid" }},
		{"MissingSKU", func(p map[string]any) { delete(p, "sku") }},
		{"UnknownMarketplace", func(p map[string]any) { p["marketplace"] = "CRAIGSLIST" }},
		{"ZeroQuantity", func(p map[string]any) { p["quantity_sold"] = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := new(MockSyncEngine)
			router := setupWebhookRouter(syncer, new(MockAuctionEndHandler))

			payload := validSalePayload()
			tt.mutate(payload)
			w := postJSON(t, router, "/api/v1/webhooks/sale", payload)

			require.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			syncer.AssertNotCalled(t, "SyncInventory", mock.Anything, mock.Anything)
		})
	}
}

func TestWebhookHandler_HandleSale_DuplicateEvent(t *testing.T) {
	syncer := new(MockSyncEngine)
	router := setupWebhookRouter(syncer, new(MockAuctionEndHandler))

	syncer.On("SyncInventory", mock.Anything, mock.Anything).Return(nil, appsync.ErrDuplicateEvent)

	w := postJSON(t, router, "/api/v1/webhooks/sale", validSalePayload())

	require.Equal(t, http.StatusConflict, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeDuplicateEvent, resp.Error.Code)
}

func TestWebhookHandler_HandleSale_DomainValidationError(t *testing.T) {
	syncer := new(MockSyncEngine)
	router := setupWebhookRouter(syncer, new(MockAuctionEndHandler))

	syncer.On("SyncInventory", mock.Anything, mock.Anything).Return(nil, listing.ErrEventInvalidQuantity)

	w := postJSON(t, router, "/api/v1/webhooks/sale", validSalePayload())

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestWebhookHandler_HandleSale_InternalError(t *testing.T) {
	syncer := new(MockSyncEngine)
	router := setupWebhookRouter(syncer, new(MockAuctionEndHandler))

	syncer.On("SyncInventory", mock.Anything, mock.Anything).Return(nil, errors.New("database offline"))

	w := postJSON(t, router, "/api/v1/webhooks/sale", validSalePayload())

	require.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "database offline")
}

func TestWebhookHandler_HandlePrice(t *testing.T) {
	syncer := new(MockSyncEngine)
	router := setupWebhookRouter(syncer, new(MockAuctionEndHandler))

	results := []listing.SyncResult{
		listing.NewPriceSyncResult(uuid.New(), "CAM-X100", marketplace.CodeMercari, "mc-2001",
			decimal.NewFromFloat(59.99), decimal.NewFromFloat(49.99)),
	}
	syncer.On("SyncPrice", mock.Anything, mock.MatchedBy(func(e *listing.PriceUpdateEvent) bool {
		return e.SKU == "CAM-X100" && e.NewPrice.Equal(decimal.NewFromFloat(49.99)) && string(e.Currency) == "USD"
	})).Return(results, nil)

	w := postJSON(t, router, "/api/v1/webhooks/price", map[string]any{
		"event_id":    uuid.New().String(),
		"sku":         "CAM-X100",
		"marketplace": "EBAY",
		"listing_id":  "eb-1001",
		"new_price":   "49.99",
		"currency":    "USD",
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	syncer.AssertExpectations(t)
}

func TestWebhookHandler_HandlePrice_BadDecimal(t *testing.T) {
	syncer := new(MockSyncEngine)
	router := setupWebhookRouter(syncer, new(MockAuctionEndHandler))

	w := postJSON(t, router, "/api/v1/webhooks/price", map[string]any{
		"event_id":    uuid.New().String(),
		"sku":         "CAM-X100",
		"marketplace": "EBAY",
		"listing_id":  "eb-1001",
		"new_price":   "forty-nine",
		"currency":    "USD",
	})

	require.Equal(t, http.StatusBadRequest, w.Code)
	syncer.AssertNotCalled(t, "SyncPrice", mock.Anything, mock.Anything)
}

func validAuctionEndPayload() map[string]any {
	return map[string]any{
		"marketplace": "YAHOO_AUCTION",
		"listing_id":  "ya-3001",
		"sku":         "CAM-X100",
		"sold":        false,
		"bid_count":   0,
		"end_time":    time.Now().Format(time.RFC3339),
	}
}

func TestWebhookHandler_HandleAuctionEnd_Relisted(t *testing.T) {
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(new(MockSyncEngine), auctions)

	newPrice := decimal.NewFromFloat(40.50)
	auctions.On("HandleAuctionEnd", mock.Anything, mock.MatchedBy(func(e *listing.AuctionEndEvent) bool {
		return e.MarketplaceCode == marketplace.CodeYahooAuction && !e.Sold
	}), mock.Anything).Return(&auction.RelistResult{
		Success:         true,
		MarketplaceCode: marketplace.CodeYahooAuction,
		ListingID:       "ya-3001",
		NewListingID:    "ya-3002",
		Format:          marketplace.FormatAuction,
		NewPrice:        &newPrice,
	})

	w := postJSON(t, router, "/api/v1/webhooks/auction-end", validAuctionEndPayload())

	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	var result RelistResultResponse
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.True(t, result.Success)
	assert.Equal(t, "ya-3002", result.NewListingID)
	require.NotNil(t, result.NewPrice)
	assert.Equal(t, "40.5", *result.NewPrice)

	auctions.AssertExpectations(t)
}

func TestWebhookHandler_HandleAuctionEnd_SoldQuantityForwarded(t *testing.T) {
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(new(MockSyncEngine), auctions)

	auctions.On("HandleAuctionEnd", mock.Anything, mock.MatchedBy(func(e *listing.AuctionEndEvent) bool {
		return e.Sold && e.QuantitySold == 3
	}), mock.Anything).Return(&auction.RelistResult{
		Success:         true,
		MarketplaceCode: marketplace.CodeEbay,
		ListingID:       "eb-9001",
		Format:          marketplace.FormatAuction,
	})

	w := postJSON(t, router, "/api/v1/webhooks/auction-end", map[string]any{
		"marketplace": "EBAY",
		"listing_id":  "eb-9001",
		"sku":         "CAM-X100",
		"sold":        true,
		"quantity":    3,
		"final_price": "72",
		"bid_count":   4,
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	auctions.AssertExpectations(t)
}

func TestWebhookHandler_HandleAuctionEnd_PolicyOverride(t *testing.T) {
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(new(MockSyncEngine), auctions)

	auctions.On("HandleAuctionEnd", mock.Anything, mock.Anything, mock.MatchedBy(func(opts auction.RelistOptions) bool {
		return opts.Strategy == auction.StrategyFixedPrice && opts.PriceAdjustment.Equal(decimal.NewFromInt(-25))
	})).Return(&auction.RelistResult{
		Success:         true,
		MarketplaceCode: marketplace.CodeYahooAuction,
		ListingID:       "ya-3001",
	})

	payload := validAuctionEndPayload()
	payload["strategy"] = "FIXED_PRICE"
	payload["price_adjustment"] = "-25"
	w := postJSON(t, router, "/api/v1/webhooks/auction-end", payload)

	require.Equal(t, http.StatusAccepted, w.Code)
	auctions.AssertExpectations(t)
}

func TestWebhookHandler_HandleAuctionEnd_UnsupportedFormat(t *testing.T) {
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(new(MockSyncEngine), auctions)

	auctions.On("HandleAuctionEnd", mock.Anything, mock.Anything, mock.Anything).Return(&auction.RelistResult{
		Success:         false,
		MarketplaceCode: marketplace.CodeYahooAuction,
		ListingID:       "ya-3001",
		Err:             marketplace.ErrFixedPriceNotSupported,
	})

	payload := validAuctionEndPayload()
	payload["strategy"] = "FIXED_PRICE"
	w := postJSON(t, router, "/api/v1/webhooks/auction-end", payload)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeUnsupportedFormat, resp.Error.Code)
}

func TestWebhookHandler_HandleAuctionEnd_InvalidEvent(t *testing.T) {
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(new(MockSyncEngine), auctions)

	auctions.On("HandleAuctionEnd", mock.Anything, mock.Anything, mock.Anything).Return(&auction.RelistResult{
		Success: false,
		Err:     auction.ErrInvalidEvent,
	})

	w := postJSON(t, router, "/api/v1/webhooks/auction-end", validAuctionEndPayload())

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_HandleAuctionEnd_FailureTravelsInBody(t *testing.T) {
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(new(MockSyncEngine), auctions)

	auctions.On("HandleAuctionEnd", mock.Anything, mock.Anything, mock.Anything).Return(&auction.RelistResult{
		Success:         false,
		MarketplaceCode: marketplace.CodeYahooAuction,
		ListingID:       "ya-3001",
		Err:             errors.New("remote request failed"),
	})

	w := postJSON(t, router, "/api/v1/webhooks/auction-end", validAuctionEndPayload())

	require.Equal(t, http.StatusAccepted, w.Code)
	resp := decodeResponse(t, w)

	var result RelistResultResponse
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &result))
	assert.False(t, result.Success)
	assert.Equal(t, "remote request failed", result.Error)
}

func TestWebhookHandler_HandleAuctionEnd_BadAdjustment(t *testing.T) {
	auctions := new(MockAuctionEndHandler)
	router := setupWebhookRouter(new(MockSyncEngine), auctions)

	payload := validAuctionEndPayload()
	payload["price_adjustment"] = "ten percent"
	w := postJSON(t, router, "/api/v1/webhooks/auction-end", payload)

	require.Equal(t, http.StatusBadRequest, w.Code)
	auctions.AssertNotCalled(t, "HandleAuctionEnd", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_HandleAuctionEnd_MercariRejected(t *testing.T) {
	router := setupWebhookRouter(new(MockSyncEngine), new(MockAuctionEndHandler))

	payload := validAuctionEndPayload()
	payload["marketplace"] = "MERCARI"
	w := postJSON(t, router, "/api/v1/webhooks/auction-end", payload)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
