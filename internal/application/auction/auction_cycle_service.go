package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appsync "github.com/resell/backend/internal/application/sync"
	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// InventorySyncer is the slice of the sync engine the auction manager needs:
// a sold auction's stock decrement is delegated there, never duplicated here,
// so it lands in the same audit trail as every other stock mutation.
type InventorySyncer interface {
	SyncInventory(ctx context.Context, event *listing.InventoryUpdateEvent) ([]listing.SyncResult, error)
}

// AuctionCycleService manages the lifecycle of auction-format listings:
// active, then sold or unsold, and for unsold auctions the relist policy
// (same format, converted to fixed-price, or abandoned) with price decay.
type AuctionCycleService struct {
	adapters    marketplace.AdapterRegistry
	listingRepo listing.ListingRepository
	syncer      InventorySyncer
	relisters   map[marketplace.Code]RelistHandler
	logger      *zap.Logger
}

// NewAuctionCycleService creates an auction cycle manager with the standard
// relist handlers for every auction-capable adapter in the registry
func NewAuctionCycleService(
	adapters marketplace.AdapterRegistry,
	listingRepo listing.ListingRepository,
	syncer InventorySyncer,
	logger *zap.Logger,
) *AuctionCycleService {
	s := &AuctionCycleService{
		adapters:    adapters,
		listingRepo: listingRepo,
		syncer:      syncer,
		relisters:   make(map[marketplace.Code]RelistHandler),
		logger:      logger,
	}
	for _, adapter := range adapters.ListAuctionAdapters() {
		switch adapter.Code() {
		case marketplace.CodeEbay:
			s.RegisterRelistHandler(NewEbayRelistHandler(adapter))
		case marketplace.CodeYahooAuction:
			s.RegisterRelistHandler(NewYahooAuctionRelistHandler(adapter))
		}
	}
	return s
}

// RegisterRelistHandler adds or replaces the relist routine for a marketplace
func (s *AuctionCycleService) RegisterRelistHandler(handler RelistHandler) {
	s.relisters[handler.Code()] = handler
}

// ---------------------------------------------------------------------------
// HandleAuctionEnd
// ---------------------------------------------------------------------------

// HandleAuctionEnd processes one auction reaching its end time.
//
// Sold auctions are terminal: the stock decrement is raised as an
// InventoryUpdateEvent through the sync engine and no relist happens.
// Unsold auctions are dispatched to the marketplace's relist routine
// according to the options.
//
// This operation never errors past its boundary: every failure, including
// adapter exceptions during relist, is captured in the returned result so
// batch callers can keep processing the remaining auctions.
func (s *AuctionCycleService) HandleAuctionEnd(ctx context.Context, event *listing.AuctionEndEvent, opts RelistOptions) *RelistResult {
	if err := event.Validate(); err != nil {
		return &RelistResult{
			MarketplaceCode: event.MarketplaceCode,
			ListingID:       event.ListingID,
			Format:          marketplace.FormatAuction,
			Err:             fmt.Errorf("%w: %v", ErrInvalidEvent, err),
		}
	}
	opts = opts.withDefaults()

	if event.Sold {
		return s.handleSold(ctx, event)
	}

	switch opts.Strategy {
	case StrategyAbandon:
		return s.handleAbandon(ctx, event)
	default:
		return s.handleRelist(ctx, event, opts)
	}
}

// handleSold records the sale and delegates the cross-marketplace stock
// decrement to the sync engine
func (s *AuctionCycleService) handleSold(ctx context.Context, event *listing.AuctionEndEvent) *RelistResult {
	// multi-unit auctions report the won quantity; single-unit events
	// leave it zero
	quantity := event.QuantitySold
	if quantity <= 0 {
		quantity = 1
	}
	saleEvent, err := listing.NewInventoryUpdateEvent(event.SKU, event.MarketplaceCode, event.ListingID, quantity)
	if err != nil {
		return &RelistResult{
			MarketplaceCode: event.MarketplaceCode,
			ListingID:       event.ListingID,
			Format:          marketplace.FormatAuction,
			Err:             err,
		}
	}

	if _, err := s.syncer.SyncInventory(ctx, saleEvent); err != nil && !errors.Is(err, appsync.ErrDuplicateEvent) {
		// the sale itself stands; the failed fan-out is the reconcile
		// scheduler's problem now
		s.logger.Error("Stock fan-out for sold auction failed",
			zap.String("sku", event.SKU),
			zap.String("marketplace", event.MarketplaceCode.String()),
			zap.String("listing_id", event.ListingID),
			zap.Error(err),
		)
	}

	s.deactivateLocal(ctx, event.MarketplaceCode, event.ListingID)

	s.logger.Info("Auction sold",
		zap.String("sku", event.SKU),
		zap.String("marketplace", event.MarketplaceCode.String()),
		zap.String("listing_id", event.ListingID),
		zap.Int("bid_count", event.BidCount),
	)
	return &RelistResult{
		Success:         true,
		MarketplaceCode: event.MarketplaceCode,
		ListingID:       event.ListingID,
		Format:          marketplace.FormatAuction,
		NewPrice:        event.FinalPrice,
	}
}

// handleAbandon retires the ended listing without replacement
func (s *AuctionCycleService) handleAbandon(ctx context.Context, event *listing.AuctionEndEvent) *RelistResult {
	s.deactivateLocal(ctx, event.MarketplaceCode, event.ListingID)
	s.logger.Info("Unsold auction abandoned",
		zap.String("sku", event.SKU),
		zap.String("marketplace", event.MarketplaceCode.String()),
		zap.String("listing_id", event.ListingID),
	)
	return &RelistResult{
		Success:         true,
		MarketplaceCode: event.MarketplaceCode,
		ListingID:       event.ListingID,
		Format:          marketplace.FormatAuction,
	}
}

// handleRelist dispatches to the marketplace's relist routine and records
// the replacement listing locally
func (s *AuctionCycleService) handleRelist(ctx context.Context, event *listing.AuctionEndEvent, opts RelistOptions) *RelistResult {
	handler, ok := s.relisters[event.MarketplaceCode]
	if !ok {
		return &RelistResult{
			MarketplaceCode: event.MarketplaceCode,
			ListingID:       event.ListingID,
			Format:          marketplace.FormatAuction,
			Err:             fmt.Errorf("%w: %s", ErrNoRelistHandler, event.MarketplaceCode),
		}
	}

	result, err := handler.Relist(ctx, event, opts)
	if err != nil {
		s.logger.Warn("Relist failed",
			zap.String("sku", event.SKU),
			zap.String("marketplace", event.MarketplaceCode.String()),
			zap.String("listing_id", event.ListingID),
			zap.String("strategy", opts.Strategy.String()),
			zap.Error(err),
		)
		return &RelistResult{
			MarketplaceCode: event.MarketplaceCode,
			ListingID:       event.ListingID,
			Format:          formatForStrategy(opts.Strategy),
			Err:             err,
		}
	}

	s.recordRelisting(ctx, event, result)
	s.logger.Info("Auction relisted",
		zap.String("sku", event.SKU),
		zap.String("marketplace", event.MarketplaceCode.String()),
		zap.String("listing_id", event.ListingID),
		zap.String("new_listing_id", result.NewListingID),
		zap.String("format", result.Format.String()),
	)
	return result
}

// ---------------------------------------------------------------------------
// MonitorUpcomingAuctionEnds
// ---------------------------------------------------------------------------

// MonitorUpcomingAuctionEnds returns synthetic "upcoming end" events for
// every active auction ending within the horizon, for proactive alerting
// and pre-staging of relist decisions. Advisory only: it never mutates
// remote or local state, and the events it returns carry sold=false as a
// placeholder.
func (s *AuctionCycleService) MonitorUpcomingAuctionEnds(ctx context.Context, within time.Duration) ([]listing.AuctionEndEvent, error) {
	rows, err := s.listingRepo.FindActiveByFormat(ctx, marketplace.FormatAuction)
	if err != nil {
		return nil, fmt.Errorf("auction: listing active auctions failed: %w", err)
	}

	horizon := time.Now().Add(within)
	upcoming := make([]listing.AuctionEndEvent, 0)
	for i := range rows {
		row := &rows[i]
		snapshot, err := s.fetchSnapshot(ctx, row)
		if err != nil {
			s.logger.Warn("Failed to fetch auction snapshot",
				zap.String("sku", row.SKU),
				zap.String("marketplace", row.MarketplaceCode.String()),
				zap.String("listing_id", row.ListingID),
				zap.Error(err),
			)
			continue
		}
		if snapshot.EndTime == nil || !snapshot.IsActive {
			continue
		}
		if snapshot.EndTime.After(horizon) {
			continue
		}
		upcoming = append(upcoming, listing.AuctionEndEvent{
			MarketplaceCode: row.MarketplaceCode,
			ListingID:       row.ListingID,
			SKU:             row.SKU,
			Sold:            false,
			BidCount:        snapshot.BidCount,
			EndTime:         *snapshot.EndTime,
		})
	}
	return upcoming, nil
}

// ---------------------------------------------------------------------------
// ProcessEndedAuctions
// ---------------------------------------------------------------------------

// ProcessEndedAuctions is the batch entry point: it polls every auction
// marketplace for listings that have ended, builds an AuctionEndEvent for
// each, and handles them independently. One listing's failure never stops
// the batch.
func (s *AuctionCycleService) ProcessEndedAuctions(ctx context.Context, opts RelistOptions) (*BatchRelistReport, error) {
	rows, err := s.listingRepo.FindActiveByFormat(ctx, marketplace.FormatAuction)
	if err != nil {
		return nil, fmt.Errorf("auction: listing active auctions failed: %w", err)
	}

	report := &BatchRelistReport{Results: make([]RelistResult, 0, len(rows))}
	now := time.Now()

	for i := range rows {
		row := &rows[i]
		snapshot, err := s.fetchSnapshot(ctx, row)
		if err != nil {
			report.Processed++
			report.Failed++
			report.Results = append(report.Results, RelistResult{
				MarketplaceCode: row.MarketplaceCode,
				ListingID:       row.ListingID,
				Format:          marketplace.FormatAuction,
				Err:             err,
			})
			continue
		}
		if !auctionEnded(snapshot, now) {
			continue
		}

		event := &listing.AuctionEndEvent{
			MarketplaceCode: row.MarketplaceCode,
			ListingID:       row.ListingID,
			SKU:             row.SKU,
			Sold:            snapshot.BidCount > 0,
			BidCount:        snapshot.BidCount,
			EndTime:         endTimeOrNow(snapshot, now),
		}
		if event.Sold {
			price := snapshot.Price
			event.FinalPrice = &price
		}

		result := s.HandleAuctionEnd(ctx, event, opts)
		report.Processed++
		if result.Success {
			report.Succeeded++
		} else {
			report.Failed++
		}
		report.Results = append(report.Results, *result)
	}

	report.CompletedAt = time.Now()
	s.logger.Info("Ended auction batch completed",
		zap.Int("processed", report.Processed),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (s *AuctionCycleService) fetchSnapshot(ctx context.Context, row *listing.MarketplaceListing) (*marketplace.ListingSnapshot, error) {
	adapter, err := s.adapters.GetAdapter(row.MarketplaceCode)
	if err != nil {
		return nil, err
	}
	return adapter.GetListing(ctx, row.ListingID)
}

// recordRelisting deactivates the ended listing's local row and records
// the replacement
func (s *AuctionCycleService) recordRelisting(ctx context.Context, event *listing.AuctionEndEvent, result *RelistResult) {
	old, err := s.listingRepo.FindByMarketplaceListing(ctx, event.MarketplaceCode, event.ListingID)
	if err != nil {
		s.logger.Warn("Ended listing has no local row",
			zap.String("marketplace", event.MarketplaceCode.String()),
			zap.String("listing_id", event.ListingID),
			zap.Error(err),
		)
		return
	}

	old.Deactivate()
	if err := s.listingRepo.Save(ctx, old); err != nil {
		s.logger.Warn("Failed to deactivate local row", zap.String("sku", old.SKU), zap.Error(err))
	}

	price := old.Price
	if result.NewPrice != nil {
		if converted, err := valueobject.NewMoney(*result.NewPrice, old.Price.Currency()); err == nil {
			price = converted
		}
	}
	replacement, err := listing.NewMarketplaceListing(event.MarketplaceCode, result.NewListingID, old.SKU, price, maxQuantity(old.Stock, 1), result.Format)
	if err != nil {
		s.logger.Warn("Failed to build replacement row", zap.String("sku", old.SKU), zap.Error(err))
		return
	}
	if err := s.listingRepo.Save(ctx, replacement); err != nil {
		s.logger.Warn("Failed to persist replacement row", zap.String("sku", old.SKU), zap.Error(err))
	}
}

func (s *AuctionCycleService) deactivateLocal(ctx context.Context, code marketplace.Code, listingID string) {
	row, err := s.listingRepo.FindByMarketplaceListing(ctx, code, listingID)
	if err != nil {
		return
	}
	row.Deactivate()
	if err := s.listingRepo.Save(ctx, row); err != nil {
		s.logger.Warn("Failed to deactivate local row",
			zap.String("marketplace", code.String()),
			zap.String("listing_id", listingID),
			zap.Error(err),
		)
	}
}

func formatForStrategy(strategy RelistStrategy) marketplace.ListingFormat {
	if strategy == StrategyFixedPrice {
		return marketplace.FormatFixedPrice
	}
	return marketplace.FormatAuction
}

func auctionEnded(snapshot *marketplace.ListingSnapshot, now time.Time) bool {
	if !snapshot.IsActive {
		return true
	}
	return snapshot.EndTime != nil && snapshot.EndTime.Before(now)
}

func endTimeOrNow(snapshot *marketplace.ListingSnapshot, now time.Time) time.Time {
	if snapshot.EndTime != nil {
		return *snapshot.EndTime
	}
	return now
}
