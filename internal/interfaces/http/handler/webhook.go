package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/application/auction"
	appsync "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared/valueobject"
	"github.com/resell/backend/internal/interfaces/http/dto"
)

// SyncEngine is the slice of the sync service the webhook intake needs
type SyncEngine interface {
	SyncInventory(ctx context.Context, event *listing.InventoryUpdateEvent) ([]listing.SyncResult, error)
	SyncPrice(ctx context.Context, event *listing.PriceUpdateEvent) ([]listing.SyncResult, error)
}

// AuctionEndHandler is the slice of the auction service the webhook intake needs
type AuctionEndHandler interface {
	HandleAuctionEnd(ctx context.Context, event *listing.AuctionEndEvent, opts auction.RelistOptions) *auction.RelistResult
}

// WebhookHandler receives marketplace event notifications: sales, price
// changes, and auction ends. Intake answers 202 once the event is accepted
// and the fan-out has run; per-target outcomes travel in the response body.
type WebhookHandler struct {
	BaseHandler
	syncer   SyncEngine
	auctions AuctionEndHandler
	logger   *zap.Logger
	guards   []gin.HandlerFunc
}

// NewWebhookHandler creates a new webhook handler. Optional guards run
// before every webhook route, e.g. signature verification.
func NewWebhookHandler(syncer SyncEngine, auctions AuctionEndHandler, logger *zap.Logger, guards ...gin.HandlerFunc) *WebhookHandler {
	return &WebhookHandler{
		syncer:   syncer,
		auctions: auctions,
		logger:   logger,
		guards:   guards,
	}
}

// RegisterRoutes registers webhook routes
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	webhooks := rg.Group("/webhooks", h.guards...)
	{
		webhooks.POST("/sale", h.HandleSale)
		webhooks.POST("/price", h.HandlePrice)
		webhooks.POST("/auction-end", h.HandleAuctionEnd)
	}
}

// HandleSale processes a sale notification: the origin marketplace already
// reflects the sale, every other listing of the SKU gets its stock
// decremented. Redelivery with the same event ID answers 409.
func (h *WebhookHandler) HandleSale(c *gin.Context) {
	var req SaleEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	event := &listing.InventoryUpdateEvent{
		EventID:       uuid.MustParse(req.EventID),
		SKU:           req.SKU,
		SoldOn:        parseMarketplaceCode(req.Marketplace),
		SoldListingID: req.ListingID,
		QuantitySold:  req.QuantitySold,
		OccurredAt:    occurredAt(req.OccurredAt),
	}

	results, err := h.syncer.SyncInventory(c.Request.Context(), event)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Accepted(c, toSyncOutcomeResponse(req.EventID, req.SKU, results))
}

// HandlePrice processes a price change notification, propagating the new
// price to every other listing of the SKU with currency conversion per target
func (h *WebhookHandler) HandlePrice(c *gin.Context) {
	var req PriceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	newPrice, err := decimal.NewFromString(req.NewPrice)
	if err != nil {
		h.BadRequest(c, "new_price is not a valid decimal amount")
		return
	}

	event := &listing.PriceUpdateEvent{
		EventID:    uuid.MustParse(req.EventID),
		SKU:        req.SKU,
		UpdatedOn:  parseMarketplaceCode(req.Marketplace),
		NewPrice:   newPrice,
		Currency:   valueobject.Currency(req.Currency),
		OccurredAt: occurredAt(req.OccurredAt),
	}

	results, err := h.syncer.SyncPrice(c.Request.Context(), event)
	if err != nil {
		h.handleSyncError(c, err)
		return
	}

	h.Accepted(c, toSyncOutcomeResponse(req.EventID, req.SKU, results))
}

// HandleAuctionEnd processes an auction reaching its end time. Sold auctions
// decrement stock through the sync engine; unsold auctions follow the relist
// policy (request fields override the server default).
func (h *WebhookHandler) HandleAuctionEnd(c *gin.Context) {
	var req AuctionEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
		return
	}

	event := &listing.AuctionEndEvent{
		MarketplaceCode: parseMarketplaceCode(req.Marketplace),
		ListingID:       req.ListingID,
		SKU:             req.SKU,
		Sold:            req.Sold,
		QuantitySold:    req.Quantity,
		BidCount:        req.BidCount,
		EndTime:         occurredAt(req.EndTime),
	}
	if req.FinalPrice != nil {
		finalPrice, err := decimal.NewFromString(*req.FinalPrice)
		if err != nil {
			h.BadRequest(c, "final_price is not a valid decimal amount")
			return
		}
		event.FinalPrice = &finalPrice
	}

	opts, err := relistOptionsFromRequest(&req)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result := h.auctions.HandleAuctionEnd(c.Request.Context(), event, opts)
	if result.Err != nil {
		switch {
		case errors.Is(result.Err, auction.ErrInvalidEvent):
			h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, result.Err.Error())
			return
		case errors.Is(result.Err, marketplace.ErrFixedPriceNotSupported),
			errors.Is(result.Err, marketplace.ErrAuctionNotSupported),
			errors.Is(result.Err, auction.ErrNoRelistHandler):
			h.UnprocessableEntity(c, dto.ErrCodeUnsupportedFormat, result.Err.Error())
			return
		}
	}

	h.Accepted(c, RelistResultResponse{
		Success:      result.Success,
		Marketplace:  result.MarketplaceCode.String(),
		ListingID:    result.ListingID,
		NewListingID: result.NewListingID,
		Format:       result.Format.String(),
		NewPrice:     decimalString(result.NewPrice),
		Error:        result.ErrorMessage(),
	})
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// handleSyncError maps sync engine failures onto HTTP responses
func (h *WebhookHandler) handleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appsync.ErrDuplicateEvent):
		h.Conflict(c, dto.ErrCodeDuplicateEvent, "event was already processed")
	case errors.Is(err, listing.ErrEventMissingSKU),
		errors.Is(err, listing.ErrEventInvalidMarketplace),
		errors.Is(err, listing.ErrEventInvalidQuantity),
		errors.Is(err, listing.ErrEventInvalidPrice),
		errors.Is(err, listing.ErrEventInvalidCurrency):
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidation), dto.ErrCodeValidation, err.Error())
	default:
		h.logger.Error("Webhook processing failed",
			zap.String("request_id", getRequestID(c)),
			zap.Error(err),
		)
		h.InternalError(c, "event processing failed")
	}
}

// relistOptionsFromRequest maps optional request policy fields onto relist
// options, leaving unset fields to the service defaults
func relistOptionsFromRequest(req *AuctionEndRequest) (auction.RelistOptions, error) {
	opts := auction.RelistOptions{
		Strategy: auction.RelistStrategy(req.Strategy),
	}
	if req.PriceAdjustment != nil {
		adjustment, err := decimal.NewFromString(*req.PriceAdjustment)
		if err != nil {
			return opts, errors.New("price_adjustment is not a valid decimal amount")
		}
		opts.PriceAdjustment = adjustment
	}
	return opts, nil
}

func occurredAt(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now()
}
