package listing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// SyncResult Audit Record
// ---------------------------------------------------------------------------

// SyncOperation identifies what a propagation attempt mutated
type SyncOperation string

const (
	// SyncOperationStock is a stock quantity propagation
	SyncOperationStock SyncOperation = "STOCK"
	// SyncOperationPrice is a price propagation
	SyncOperationPrice SyncOperation = "PRICE"
	// SyncOperationPause is a zero-stock pause sweep
	SyncOperationPause SyncOperation = "PAUSE"
)

// String returns the string representation of SyncOperation
func (o SyncOperation) String() string {
	return string(o)
}

// SyncResult is one append-only audit record: the outcome of one
// propagation attempt against one target listing. It is never mutated
// after creation. Partial failure stays visible because every target
// gets its own record, success or not.
type SyncResult struct {
	// ID is the audit record identifier
	ID uuid.UUID
	// EventID is the event that triggered this attempt
	EventID uuid.UUID
	// SKU is the canonical product identifier
	SKU string
	// MarketplaceCode is the target marketplace
	MarketplaceCode marketplace.Code
	// ListingID is the target listing's ID on the marketplace
	ListingID string
	// Operation is what the attempt mutated
	Operation SyncOperation
	// Success is true if the remote mutation was applied
	Success bool
	// PreviousStock is the stock before the attempt (stock operations only)
	PreviousStock *int
	// NewStock is the stock sent to the marketplace (stock operations only)
	NewStock *int
	// PreviousPrice is the price before the attempt (price operations only)
	PreviousPrice *decimal.Decimal
	// NewPrice is the price sent to the marketplace, converted to the
	// target's currency (price operations only)
	NewPrice *decimal.Decimal
	// Error is the captured failure description (empty on success)
	Error string
	// SyncedAt is when the attempt resolved
	SyncedAt time.Time
}

// NewStockSyncResult creates a successful stock propagation record
func NewStockSyncResult(eventID uuid.UUID, sku string, code marketplace.Code, listingID string, previousStock, newStock int) SyncResult {
	return SyncResult{
		ID:              uuid.New(),
		EventID:         eventID,
		SKU:             sku,
		MarketplaceCode: code,
		ListingID:       listingID,
		Operation:       SyncOperationStock,
		Success:         true,
		PreviousStock:   &previousStock,
		NewStock:        &newStock,
		SyncedAt:        time.Now(),
	}
}

// NewPriceSyncResult creates a successful price propagation record
func NewPriceSyncResult(eventID uuid.UUID, sku string, code marketplace.Code, listingID string, previousPrice, newPrice decimal.Decimal) SyncResult {
	return SyncResult{
		ID:              uuid.New(),
		EventID:         eventID,
		SKU:             sku,
		MarketplaceCode: code,
		ListingID:       listingID,
		Operation:       SyncOperationPrice,
		Success:         true,
		PreviousPrice:   &previousPrice,
		NewPrice:        &newPrice,
		SyncedAt:        time.Now(),
	}
}

// NewPauseSyncResult creates a pause sweep record
func NewPauseSyncResult(eventID uuid.UUID, sku string, code marketplace.Code, listingID string, success bool, errMsg string) SyncResult {
	return SyncResult{
		ID:              uuid.New(),
		EventID:         eventID,
		SKU:             sku,
		MarketplaceCode: code,
		ListingID:       listingID,
		Operation:       SyncOperationPause,
		Success:         success,
		Error:           errMsg,
		SyncedAt:        time.Now(),
	}
}

// NewFailedSyncResult creates a failed propagation record
func NewFailedSyncResult(eventID uuid.UUID, sku string, code marketplace.Code, listingID string, op SyncOperation, errMsg string) SyncResult {
	return SyncResult{
		ID:              uuid.New(),
		EventID:         eventID,
		SKU:             sku,
		MarketplaceCode: code,
		ListingID:       listingID,
		Operation:       op,
		Success:         false,
		Error:           errMsg,
		SyncedAt:        time.Now(),
	}
}
