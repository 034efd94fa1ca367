package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appsync "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/listing"
)

// ListingQueries is the read side the listings API needs
type ListingQueries interface {
	FindBySKU(ctx context.Context, sku string) ([]listing.MarketplaceListing, error)
	ListActiveSKUs(ctx context.Context) ([]string, error)
}

// SyncRecordQueries is the audit trail read side
type SyncRecordQueries interface {
	FindBySKU(ctx context.Context, sku string, limit int) ([]listing.SyncResult, error)
	FindFailures(ctx context.Context, sku string, limit int) ([]listing.SyncResult, error)
}

// InventoryConsistency is the drift check and correction side
type InventoryConsistency interface {
	CheckInventoryConsistency(ctx context.Context, sku string) (*appsync.ConsistencyReport, error)
	ReconcileInventory(ctx context.Context, sku string) ([]listing.SyncResult, error)
}

// ListingsHandler serves the catalog read API: cross-marketplace listing
// state per SKU, the sync audit trail, and the consistency check with its
// corrective reconcile.
type ListingsHandler struct {
	BaseHandler
	listings    ListingQueries
	records     SyncRecordQueries
	consistency InventoryConsistency
	logger      *zap.Logger
}

// NewListingsHandler creates a new listings handler
func NewListingsHandler(listings ListingQueries, records SyncRecordQueries, consistency InventoryConsistency, logger *zap.Logger) *ListingsHandler {
	return &ListingsHandler{
		listings:    listings,
		records:     records,
		consistency: consistency,
		logger:      logger,
	}
}

// RegisterRoutes registers listing routes
func (h *ListingsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	skus := rg.Group("/skus")
	{
		skus.GET("", h.ListSKUs)
		skus.GET("/:sku/listings", h.GetListings)
		skus.GET("/:sku/records", h.GetSyncRecords)
		skus.GET("/:sku/consistency", h.CheckConsistency)
		skus.POST("/:sku/reconcile", h.Reconcile)
	}
}

// ---------------------------------------------------------------------------
// Response DTOs
// ---------------------------------------------------------------------------

// ListingResponse is one marketplace listing row
type ListingResponse struct {
	Marketplace string    `json:"marketplace"`
	ListingID   string    `json:"listing_id"`
	SKU         string    `json:"sku"`
	Price       string    `json:"price"`
	Currency    string    `json:"currency"`
	Stock       int       `json:"stock"`
	Format      string    `json:"format"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ConsistencyResponse is the outcome of a read-only drift check
type ConsistencyResponse struct {
	SKU            string                `json:"sku"`
	IsConsistent   bool                  `json:"is_consistent"`
	ReferenceStock int                   `json:"reference_stock"`
	Listings       []ListingStockEntry   `json:"listings"`
	Discrepancies  []DiscrepancyResponse `json:"discrepancies,omitempty"`
	CheckedAt      time.Time             `json:"checked_at"`
}

// ListingStockEntry is one listing's stock in a consistency report
type ListingStockEntry struct {
	Marketplace string `json:"marketplace"`
	ListingID   string `json:"listing_id"`
	Stock       int    `json:"stock"`
	IsActive    bool   `json:"is_active"`
}

// DiscrepancyResponse is one detected stock mismatch
type DiscrepancyResponse struct {
	Marketplace   string `json:"marketplace"`
	ListingID     string `json:"listing_id"`
	ExpectedStock int    `json:"expected_stock"`
	ActualStock   int    `json:"actual_stock"`
}

// ---------------------------------------------------------------------------
// Endpoints
// ---------------------------------------------------------------------------

// ListSKUs returns the distinct SKUs with at least one active listing
func (h *ListingsHandler) ListSKUs(c *gin.Context) {
	skus, err := h.listings.ListActiveSKUs(c.Request.Context())
	if err != nil {
		h.logger.Error("SKU enumeration failed", zap.Error(err))
		h.InternalError(c, "failed to list SKUs")
		return
	}
	h.Success(c, gin.H{"skus": skus, "count": len(skus)})
}

// GetListings returns every known listing of a SKU across all marketplaces
func (h *ListingsHandler) GetListings(c *gin.Context) {
	sku := c.Param("sku")

	rows, err := h.listings.FindBySKU(c.Request.Context(), sku)
	if err != nil {
		h.logger.Error("Listing lookup failed", zap.String("sku", sku), zap.Error(err))
		h.InternalError(c, "failed to load listings")
		return
	}
	if len(rows) == 0 {
		h.NotFound(c, "no listings for SKU")
		return
	}

	resp := make([]ListingResponse, 0, len(rows))
	for i := range rows {
		l := &rows[i]
		resp = append(resp, ListingResponse{
			Marketplace: l.MarketplaceCode.String(),
			ListingID:   l.ListingID,
			SKU:         l.SKU,
			Price:       l.Price.Amount().String(),
			Currency:    string(l.Price.Currency()),
			Stock:       l.Stock,
			Format:      l.Format.String(),
			IsActive:    l.IsActive,
			UpdatedAt:   l.UpdatedAt,
		})
	}
	h.Success(c, resp)
}

// GetSyncRecords returns the audit trail for a SKU, newest first. With
// failed=true only failed propagation attempts are returned, for alerting
// on persistent divergence.
func (h *ListingsHandler) GetSyncRecords(c *gin.Context) {
	sku := c.Param("sku")
	limit := queryInt(c, "limit", 50)
	if limit < 1 || limit > 500 {
		h.BadRequest(c, "limit must be between 1 and 500")
		return
	}

	var (
		records []listing.SyncResult
		err     error
	)
	if c.Query("failed") == "true" {
		records, err = h.records.FindFailures(c.Request.Context(), sku, limit)
	} else {
		records, err = h.records.FindBySKU(c.Request.Context(), sku, limit)
	}
	if err != nil {
		h.logger.Error("Audit trail lookup failed", zap.String("sku", sku), zap.Error(err))
		h.InternalError(c, "failed to load sync records")
		return
	}

	h.Success(c, toSyncOutcomeResponse("", sku, records).Results)
}

// CheckConsistency runs the read-only drift check for a SKU
func (h *ListingsHandler) CheckConsistency(c *gin.Context) {
	sku := c.Param("sku")

	report, err := h.consistency.CheckInventoryConsistency(c.Request.Context(), sku)
	if err != nil {
		h.logger.Error("Consistency check failed", zap.String("sku", sku), zap.Error(err))
		h.InternalError(c, "consistency check failed")
		return
	}

	resp := ConsistencyResponse{
		SKU:            report.SKU,
		IsConsistent:   report.IsConsistent,
		ReferenceStock: report.ReferenceStock,
		Listings:       make([]ListingStockEntry, 0, len(report.Listings)),
		CheckedAt:      report.CheckedAt,
	}
	for _, l := range report.Listings {
		resp.Listings = append(resp.Listings, ListingStockEntry{
			Marketplace: l.MarketplaceCode.String(),
			ListingID:   l.ListingID,
			Stock:       l.Stock,
			IsActive:    l.IsActive,
		})
	}
	for _, d := range report.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, DiscrepancyResponse{
			Marketplace:   d.MarketplaceCode.String(),
			ListingID:     d.ListingID,
			ExpectedStock: d.ExpectedStock,
			ActualStock:   d.ActualStock,
		})
	}
	h.Success(c, resp)
}

// Reconcile pushes the reference stock to every divergent listing of a SKU
func (h *ListingsHandler) Reconcile(c *gin.Context) {
	sku := c.Param("sku")

	results, err := h.consistency.ReconcileInventory(c.Request.Context(), sku)
	if err != nil {
		h.logger.Error("Reconcile failed", zap.String("sku", sku), zap.Error(err))
		h.InternalError(c, "reconcile failed")
		return
	}

	h.Accepted(c, toSyncOutcomeResponse("", sku, results))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
