package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/application/auction"
	"github.com/resell/backend/internal/domain/listing"
)

// AuctionLifecycle is the auction back-office service surface
type AuctionLifecycle interface {
	MonitorUpcomingAuctionEnds(ctx context.Context, within time.Duration) ([]listing.AuctionEndEvent, error)
	ProcessEndedAuctions(ctx context.Context, opts auction.RelistOptions) (*auction.BatchRelistReport, error)
}

// AuctionHandler serves the auction lifecycle API: upcoming ends for a
// staff dashboard and a manual trigger for the relist batch.
type AuctionHandler struct {
	BaseHandler
	service AuctionLifecycle
	logger  *zap.Logger
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(service AuctionLifecycle, logger *zap.Logger) *AuctionHandler {
	return &AuctionHandler{service: service, logger: logger}
}

// RegisterRoutes registers auction routes
func (h *AuctionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auctions := rg.Group("/auctions")
	{
		auctions.GET("/upcoming", h.GetUpcoming)
		auctions.POST("/process-ended", h.ProcessEnded)
	}
}

// UpcomingAuctionResponse is one auction approaching its end
type UpcomingAuctionResponse struct {
	Marketplace  string    `json:"marketplace"`
	ListingID    string    `json:"listing_id"`
	SKU          string    `json:"sku"`
	CurrentPrice *string   `json:"current_price,omitempty"`
	BidCount     int       `json:"bid_count"`
	EndTime      time.Time `json:"end_time"`
}

// ProcessEndedRequest is the manual relist batch trigger payload.
// All fields are optional; unset fields use the default policy.
type ProcessEndedRequest struct {
	Strategy        string  `json:"strategy" binding:"omitempty,oneof=AUCTION FIXED_PRICE ABANDON"`
	PriceAdjustment *string `json:"price_adjustment" binding:"omitempty,decimal"`
}

// BatchRelistResponse summarizes one manual relist batch run
type BatchRelistResponse struct {
	Processed   int                    `json:"processed"`
	Succeeded   int                    `json:"succeeded"`
	Failed      int                    `json:"failed"`
	Results     []RelistResultResponse `json:"results"`
	CompletedAt time.Time              `json:"completed_at"`
}

// GetUpcoming returns auctions ending within the requested horizon.
// The horizon defaults to 24h and is capped at 7 days.
func (h *AuctionHandler) GetUpcoming(c *gin.Context) {
	within := 24 * time.Hour
	if raw := c.Query("within"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			h.BadRequest(c, "within must be a positive duration, e.g. 12h")
			return
		}
		within = d
	}
	if within > 7*24*time.Hour {
		h.BadRequest(c, "within cannot exceed 168h")
		return
	}

	events, err := h.service.MonitorUpcomingAuctionEnds(c.Request.Context(), within)
	if err != nil {
		h.logger.Error("Upcoming auction scan failed", zap.Error(err))
		h.InternalError(c, "failed to scan upcoming auctions")
		return
	}

	resp := make([]UpcomingAuctionResponse, 0, len(events))
	for i := range events {
		e := &events[i]
		resp = append(resp, UpcomingAuctionResponse{
			Marketplace:  e.MarketplaceCode.String(),
			ListingID:    e.ListingID,
			SKU:          e.SKU,
			CurrentPrice: decimalString(e.FinalPrice),
			BidCount:     e.BidCount,
			EndTime:      e.EndTime,
		})
	}
	h.Success(c, gin.H{"auctions": resp, "count": len(resp), "within": within.String()})
}

// ProcessEnded runs the relist batch over every ended auction now, outside
// the scheduler's cadence
func (h *AuctionHandler) ProcessEnded(c *gin.Context) {
	var req ProcessEndedRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		h.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	opts := auction.DefaultRelistOptions()
	if req.Strategy != "" {
		opts.Strategy = auction.RelistStrategy(req.Strategy)
	}
	if req.PriceAdjustment != nil {
		adj, err := decimal.NewFromString(*req.PriceAdjustment)
		if err != nil {
			h.BadRequest(c, "price_adjustment must be a decimal percentage")
			return
		}
		opts.PriceAdjustment = adj
	}

	report, err := h.service.ProcessEndedAuctions(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("Relist batch failed", zap.Error(err))
		h.InternalError(c, "relist batch failed")
		return
	}

	resp := BatchRelistResponse{
		Processed:   report.Processed,
		Succeeded:   report.Succeeded,
		Failed:      report.Failed,
		Results:     make([]RelistResultResponse, 0, len(report.Results)),
		CompletedAt: report.CompletedAt,
	}
	for i := range report.Results {
		r := &report.Results[i]
		resp.Results = append(resp.Results, RelistResultResponse{
			Success:      r.Success,
			Marketplace:  r.MarketplaceCode.String(),
			ListingID:    r.ListingID,
			NewListingID: r.NewListingID,
			Format:       r.Format.String(),
			NewPrice:     decimalString(r.NewPrice),
			Error:        r.ErrorMessage(),
		})
	}
	h.Accepted(c, resp)
}
