package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/pricing"
	"github.com/resell/backend/internal/domain/shared"
	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// InventorySyncService propagates stock and price changes for one SKU to
// every other marketplace where the SKU is listed.
//
// The fan-out is a best-effort broadcast with audit, not a two-phase
// commit: marketplaces offer no transactional API, so the engine accepts
// temporary divergence and makes it observable through per-target
// SyncResults and the consistency check. One target's failure never
// aborts, cancels, or rolls back the others. The engine is a single-pass
// reconciler; retry with backoff is the caller's job (see the reconcile
// scheduler).
type InventorySyncService struct {
	listingRepo listing.ListingRepository
	recordRepo  listing.SyncRecordRepository
	adapters    marketplace.AdapterRegistry
	converter   *pricing.CurrencyConverter
	idempotency shared.IdempotencyStore
	config      Config
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewInventorySyncService creates a new sync engine
func NewInventorySyncService(
	listingRepo listing.ListingRepository,
	adapters marketplace.AdapterRegistry,
	converter *pricing.CurrencyConverter,
	config Config,
	logger *zap.Logger,
) (*InventorySyncService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &InventorySyncService{
		listingRepo: listingRepo,
		adapters:    adapters,
		converter:   converter,
		config:      config,
		logger:      logger,
		tracer:      otel.Tracer("inventory-sync"),
	}, nil
}

// SetSyncRecordRepository enables persistence of the audit trail
func (s *InventorySyncService) SetSyncRecordRepository(repo listing.SyncRecordRepository) {
	s.recordRepo = repo
}

// SetIdempotencyStore enables event deduplication by event ID
func (s *InventorySyncService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// ---------------------------------------------------------------------------
// SyncInventory
// ---------------------------------------------------------------------------

// SyncInventory reacts to a sale on one marketplace by decrementing stock on
// every other active listing of the same SKU, concurrently and independently.
// The origin marketplace already reflects the sale and is never re-updated.
// The propagated stock is always max(0, current - sold). If any computed
// stock reaches zero the engine sweeps every listing of the SKU toward
// paused, including targets whose earlier update failed.
//
// The returned results contain one entry per attempted mutation, success or
// failure. An empty slice for an unknown SKU is a valid outcome, not an error.
func (s *InventorySyncService) SyncInventory(ctx context.Context, event *listing.InventoryUpdateEvent) ([]listing.SyncResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.markEventProcessed(ctx, event.EventID); err != nil {
		return nil, err
	}

	listings, err := s.listingRepo.FindBySKU(ctx, event.SKU)
	if err != nil {
		return nil, fmt.Errorf("sync: listing lookup for %q failed: %w", event.SKU, err)
	}
	if len(listings) == 0 {
		s.logger.Debug("Sale event for SKU with no cross-listings",
			zap.String("sku", event.SKU),
			zap.String("sold_on", event.SoldOn.String()),
		)
		return []listing.SyncResult{}, nil
	}

	// Keep the local copy of the origin listing current. The origin
	// marketplace itself already reflects the sale and must not be
	// double-updated remotely.
	s.recordOriginSale(ctx, listings, event)

	targets := make([]listing.MarketplaceListing, 0, len(listings))
	for _, l := range listings {
		if l.MarketplaceCode != event.SoldOn && l.IsActive {
			targets = append(targets, l)
		}
	}

	// The sweep decision keys off the computed stock, evaluated before the
	// fan-out: a target whose SetStock call later fails still depletes the
	// SKU when its computed stock bottomed out.
	depleted := stockDepleted(targets, listings, event)

	results := s.fanOut(ctx, targets, func(callCtx context.Context, target *listing.MarketplaceListing) listing.SyncResult {
		previousStock := target.Stock
		newStock := clampStock(target.Stock - event.QuantitySold)

		adapter, err := s.adapters.GetAdapter(target.MarketplaceCode)
		if err != nil {
			return listing.NewFailedSyncResult(event.EventID, event.SKU, target.MarketplaceCode, target.ListingID, listing.SyncOperationStock, err.Error())
		}
		if err := adapter.SetStock(callCtx, target.ListingID, newStock); err != nil {
			return listing.NewFailedSyncResult(event.EventID, event.SKU, target.MarketplaceCode, target.ListingID, listing.SyncOperationStock, err.Error())
		}

		s.saveStock(ctx, target, newStock)
		return listing.NewStockSyncResult(event.EventID, event.SKU, target.MarketplaceCode, target.ListingID, previousStock, newStock)
	})

	if depleted {
		s.logger.Info("Stock depleted, pausing all listings",
			zap.String("sku", event.SKU),
			zap.String("sold_on", event.SoldOn.String()),
		)
		results = append(results, s.pauseListings(ctx, event.EventID, event.SKU, listings)...)
	}

	s.appendRecords(ctx, results)
	s.logOutcome("inventory sync", event.SKU, results)
	return results, nil
}

// ---------------------------------------------------------------------------
// SyncPrice
// ---------------------------------------------------------------------------

// SyncPrice reacts to a price change on one marketplace by propagating the
// new price to every other active listing of the same SKU. Conversion into
// each target's own currency happens per target: listings on different
// marketplaces may be priced in different currencies, and a conversion
// failure for one target is that target's failure alone.
func (s *InventorySyncService) SyncPrice(ctx context.Context, event *listing.PriceUpdateEvent) ([]listing.SyncResult, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.markEventProcessed(ctx, event.EventID); err != nil {
		return nil, err
	}

	listings, err := s.listingRepo.FindBySKU(ctx, event.SKU)
	if err != nil {
		return nil, fmt.Errorf("sync: listing lookup for %q failed: %w", event.SKU, err)
	}
	if len(listings) == 0 {
		return []listing.SyncResult{}, nil
	}

	s.recordOriginPrice(ctx, listings, event)

	targets := make([]listing.MarketplaceListing, 0, len(listings))
	for _, l := range listings {
		if l.MarketplaceCode != event.UpdatedOn && l.IsActive {
			targets = append(targets, l)
		}
	}

	results := s.fanOut(ctx, targets, func(callCtx context.Context, target *listing.MarketplaceListing) listing.SyncResult {
		targetCurrency := target.Price.Currency()
		converted, err := s.converter.Convert(event.NewPrice, event.Currency, targetCurrency)
		if err != nil {
			return listing.NewFailedSyncResult(event.EventID, event.SKU, target.MarketplaceCode, target.ListingID, listing.SyncOperationPrice, err.Error())
		}

		adapter, err := s.adapters.GetAdapter(target.MarketplaceCode)
		if err != nil {
			return listing.NewFailedSyncResult(event.EventID, event.SKU, target.MarketplaceCode, target.ListingID, listing.SyncOperationPrice, err.Error())
		}
		if err := adapter.SetPrice(callCtx, target.ListingID, converted, targetCurrency); err != nil {
			return listing.NewFailedSyncResult(event.EventID, event.SKU, target.MarketplaceCode, target.ListingID, listing.SyncOperationPrice, err.Error())
		}

		previousPrice := target.Price.Amount()
		s.savePrice(ctx, target, converted, targetCurrency)
		return listing.NewPriceSyncResult(event.EventID, event.SKU, target.MarketplaceCode, target.ListingID, previousPrice, converted)
	})

	s.appendRecords(ctx, results)
	s.logOutcome("price sync", event.SKU, results)
	return results, nil
}

// ---------------------------------------------------------------------------
// PauseAllListings
// ---------------------------------------------------------------------------

// PauseAllListings drives every listing of a SKU toward paused: stock set to
// zero on the marketplace, then the listing taken off sale and deactivated
// locally. The sweep is best-effort per listing; failures are captured in
// the returned results and retried by the reconcile scheduler, never
// silently dropped.
func (s *InventorySyncService) PauseAllListings(ctx context.Context, sku string) ([]listing.SyncResult, error) {
	listings, err := s.listingRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("sync: listing lookup for %q failed: %w", sku, err)
	}
	results := s.pauseListings(ctx, uuid.New(), sku, listings)
	s.appendRecords(ctx, results)
	return results, nil
}

// pauseListings sweeps every listing, including ones whose earlier update
// failed. One sweep record per listing.
func (s *InventorySyncService) pauseListings(ctx context.Context, eventID uuid.UUID, sku string, listings []listing.MarketplaceListing) []listing.SyncResult {
	return s.fanOut(ctx, listings, func(callCtx context.Context, target *listing.MarketplaceListing) listing.SyncResult {
		adapter, err := s.adapters.GetAdapter(target.MarketplaceCode)
		if err != nil {
			return listing.NewPauseSyncResult(eventID, sku, target.MarketplaceCode, target.ListingID, false, err.Error())
		}
		if err := adapter.SetStock(callCtx, target.ListingID, 0); err != nil {
			return listing.NewPauseSyncResult(eventID, sku, target.MarketplaceCode, target.ListingID, false, err.Error())
		}
		if err := adapter.PauseListing(callCtx, target.ListingID); err != nil {
			return listing.NewPauseSyncResult(eventID, sku, target.MarketplaceCode, target.ListingID, false, err.Error())
		}

		target.Stock = 0
		target.Deactivate()
		if err := s.listingRepo.Save(ctx, target); err != nil {
			s.logger.Warn("Failed to record paused listing locally",
				zap.String("sku", sku),
				zap.String("marketplace", target.MarketplaceCode.String()),
				zap.Error(err),
			)
		}
		return listing.NewPauseSyncResult(eventID, sku, target.MarketplaceCode, target.ListingID, true, "")
	})
}

// ---------------------------------------------------------------------------
// CheckInventoryConsistency
// ---------------------------------------------------------------------------

// CheckInventoryConsistency reads every listing of a SKU and reports drift
// against the first listing's stock. It never mutates anything: correction
// goes through the audited sync operations so it lands in the audit trail.
func (s *InventorySyncService) CheckInventoryConsistency(ctx context.Context, sku string) (*ConsistencyReport, error) {
	listings, err := s.listingRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("sync: listing lookup for %q failed: %w", sku, err)
	}

	report := &ConsistencyReport{
		SKU:          sku,
		IsConsistent: true,
		CheckedAt:    time.Now(),
	}
	if len(listings) == 0 {
		return report, nil
	}

	report.ReferenceStock = listings[0].Stock
	report.Listings = make([]ListingStock, 0, len(listings))
	for _, l := range listings {
		report.Listings = append(report.Listings, ListingStock{
			MarketplaceCode: l.MarketplaceCode,
			ListingID:       l.ListingID,
			Stock:           l.Stock,
			IsActive:        l.IsActive,
		})
		if l.Stock != report.ReferenceStock {
			report.IsConsistent = false
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				MarketplaceCode: l.MarketplaceCode,
				ListingID:       l.ListingID,
				ExpectedStock:   report.ReferenceStock,
				ActualStock:     l.Stock,
			})
		}
	}
	return report, nil
}

// ---------------------------------------------------------------------------
// ReconcileInventory
// ---------------------------------------------------------------------------

// ReconcileInventory is the corrective counterpart of the consistency check:
// it pushes the reference stock (the first listing's) to every active listing
// that disagrees, through the same audited per-target path as a regular sync.
// Used by the reconcile scheduler after a failed fan-out left targets behind.
func (s *InventorySyncService) ReconcileInventory(ctx context.Context, sku string) ([]listing.SyncResult, error) {
	listings, err := s.listingRepo.FindBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("sync: listing lookup for %q failed: %w", sku, err)
	}
	if len(listings) == 0 {
		return []listing.SyncResult{}, nil
	}

	runID := uuid.New()
	reference := listings[0].Stock

	if reference <= 0 {
		results := s.pauseListings(ctx, runID, sku, listings)
		s.appendRecords(ctx, results)
		return results, nil
	}

	divergent := make([]listing.MarketplaceListing, 0, len(listings))
	for _, l := range listings[1:] {
		if l.IsActive && l.Stock != reference {
			divergent = append(divergent, l)
		}
	}
	if len(divergent) == 0 {
		return []listing.SyncResult{}, nil
	}

	results := s.fanOut(ctx, divergent, func(callCtx context.Context, target *listing.MarketplaceListing) listing.SyncResult {
		previousStock := target.Stock

		adapter, err := s.adapters.GetAdapter(target.MarketplaceCode)
		if err != nil {
			return listing.NewFailedSyncResult(runID, sku, target.MarketplaceCode, target.ListingID, listing.SyncOperationStock, err.Error())
		}
		if err := adapter.SetStock(callCtx, target.ListingID, reference); err != nil {
			return listing.NewFailedSyncResult(runID, sku, target.MarketplaceCode, target.ListingID, listing.SyncOperationStock, err.Error())
		}

		s.saveStock(ctx, target, reference)
		return listing.NewStockSyncResult(runID, sku, target.MarketplaceCode, target.ListingID, previousStock, reference)
	})

	s.appendRecords(ctx, results)
	s.logOutcome("inventory reconcile", sku, results)
	return results, nil
}

// ---------------------------------------------------------------------------
// Fan-out machinery
// ---------------------------------------------------------------------------

// fanOut runs one task per target with bounded concurrency and collects all
// results behind a join barrier. Each task writes a distinct result slot, so
// there is no contention between tasks; the order targets are updated in is
// unspecified.
func (s *InventorySyncService) fanOut(ctx context.Context, targets []listing.MarketplaceListing, task func(context.Context, *listing.MarketplaceListing) listing.SyncResult) []listing.SyncResult {
	if len(targets) == 0 {
		return []listing.SyncResult{}
	}

	ctx, span := s.tracer.Start(ctx, "sync.fan_out",
		trace.WithAttributes(attribute.Int("sync.targets", len(targets))),
	)
	defer span.End()

	results := make([]listing.SyncResult, len(targets))
	sem := make(chan struct{}, s.config.MaxConcurrentTargets)
	var wg sync.WaitGroup

	for i := range targets {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, s.config.AdapterTimeout)
			defer cancel()

			results[slot] = task(callCtx, &targets[slot])
		}(i)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	span.SetAttributes(attribute.Int("sync.failed", failed))

	return results
}

// markEventProcessed enforces at-most-once consumption per event instance
func (s *InventorySyncService) markEventProcessed(ctx context.Context, eventID uuid.UUID) error {
	if s.idempotency == nil {
		return nil
	}
	fresh, err := s.idempotency.MarkProcessed(ctx, eventID.String(), s.config.EventTTL)
	if err != nil {
		return fmt.Errorf("sync: idempotency check failed: %w", err)
	}
	if !fresh {
		return ErrDuplicateEvent
	}
	return nil
}

// recordOriginSale decrements the local copy of the origin listing. No
// remote call: the origin marketplace already reflects the sale.
func (s *InventorySyncService) recordOriginSale(ctx context.Context, listings []listing.MarketplaceListing, event *listing.InventoryUpdateEvent) {
	for i := range listings {
		if listings[i].MarketplaceCode == event.SoldOn {
			s.saveStock(ctx, &listings[i], clampStock(listings[i].Stock-event.QuantitySold))
			return
		}
	}
}

// recordOriginPrice updates the local copy of the origin listing's price
func (s *InventorySyncService) recordOriginPrice(ctx context.Context, listings []listing.MarketplaceListing, event *listing.PriceUpdateEvent) {
	for i := range listings {
		if listings[i].MarketplaceCode == event.UpdatedOn {
			s.savePrice(ctx, &listings[i], event.NewPrice, event.Currency)
			return
		}
	}
}

func (s *InventorySyncService) saveStock(ctx context.Context, l *listing.MarketplaceListing, stock int) {
	if err := l.UpdateStock(stock); err != nil {
		s.logger.Warn("Failed to update local stock", zap.String("sku", l.SKU), zap.Error(err))
		return
	}
	if err := s.listingRepo.Save(ctx, l); err != nil {
		s.logger.Warn("Failed to persist local stock",
			zap.String("sku", l.SKU),
			zap.String("marketplace", l.MarketplaceCode.String()),
			zap.Error(err),
		)
	}
}

func (s *InventorySyncService) savePrice(ctx context.Context, l *listing.MarketplaceListing, amount decimal.Decimal, currency valueobject.Currency) {
	price, err := valueobject.NewMoney(amount, currency)
	if err != nil {
		s.logger.Warn("Failed to build local price", zap.String("sku", l.SKU), zap.Error(err))
		return
	}
	l.UpdatePrice(price)
	if err := s.listingRepo.Save(ctx, l); err != nil {
		s.logger.Warn("Failed to persist local price",
			zap.String("sku", l.SKU),
			zap.String("marketplace", l.MarketplaceCode.String()),
			zap.Error(err),
		)
	}
}

// appendRecords persists audit records when a record repository is wired.
// Audit persistence failure is logged, never surfaced: the in-memory
// results the caller gets back are the source of truth for this pass.
func (s *InventorySyncService) appendRecords(ctx context.Context, results []listing.SyncResult) {
	if s.recordRepo == nil || len(results) == 0 {
		return
	}
	if err := s.recordRepo.Append(ctx, results); err != nil {
		s.logger.Error("Failed to persist sync audit records", zap.Error(err))
	}
}

func (s *InventorySyncService) logOutcome(operation, sku string, results []listing.SyncResult) {
	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	s.logger.Info("Fan-out completed",
		zap.String("operation", operation),
		zap.String("sku", sku),
		zap.Int("targets", len(results)),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", len(results)-succeeded),
	)
}

// stockDepleted reports whether this sale drives the SKU to zero anywhere:
// a target's computed post-sale stock bottoms out, or the origin listing's
// post-sale stock does. Targets carry their pre-fan-out stock here, so the
// answer does not depend on which adapter calls succeed.
func stockDepleted(targets, listings []listing.MarketplaceListing, event *listing.InventoryUpdateEvent) bool {
	for _, l := range targets {
		if l.Stock-event.QuantitySold <= 0 {
			return true
		}
	}
	for _, l := range listings {
		if l.MarketplaceCode == event.SoldOn && l.Stock <= 0 {
			return true
		}
	}
	return false
}

func clampStock(stock int) int {
	if stock < 0 {
		return 0
	}
	return stock
}
