package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/domain/shared/valueobject"
)

// MarketplaceListingModel is the persistence model for the MarketplaceListing
// domain entity. One row per (marketplace, SKU).
type MarketplaceListingModel struct {
	ID              uuid.UUID                 `gorm:"type:uuid;primary_key"`
	MarketplaceCode marketplace.Code          `gorm:"type:varchar(20);not null;index:idx_listing_marketplace_listing,unique,priority:1"`
	ListingID       string                    `gorm:"type:varchar(100);not null;index:idx_listing_marketplace_listing,unique,priority:2"`
	SKU             string                    `gorm:"type:varchar(100);not null;index:idx_listing_sku"`
	PriceAmount     decimal.Decimal           `gorm:"type:decimal(12,2);not null"`
	PriceCurrency   string                    `gorm:"type:varchar(3);not null"`
	Stock           int                       `gorm:"not null"`
	Format          marketplace.ListingFormat `gorm:"type:varchar(20);not null;index:idx_listing_format"`
	IsActive        bool                      `gorm:"not null;index:idx_listing_active"`
	CreatedAt       time.Time                 `gorm:"not null"`
	UpdatedAt       time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (MarketplaceListingModel) TableName() string {
	return "marketplace_listings"
}

// ToDomain converts the persistence model to a domain MarketplaceListing
func (m *MarketplaceListingModel) ToDomain() (*listing.MarketplaceListing, error) {
	price, err := valueobject.NewMoney(m.PriceAmount, valueobject.Currency(m.PriceCurrency))
	if err != nil {
		return nil, err
	}
	return &listing.MarketplaceListing{
		ID:              m.ID,
		MarketplaceCode: m.MarketplaceCode,
		ListingID:       m.ListingID,
		SKU:             m.SKU,
		Price:           price,
		Stock:           m.Stock,
		Format:          m.Format,
		IsActive:        m.IsActive,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

// FromDomain populates the persistence model from a domain MarketplaceListing
func (m *MarketplaceListingModel) FromDomain(l *listing.MarketplaceListing) {
	m.ID = l.ID
	m.MarketplaceCode = l.MarketplaceCode
	m.ListingID = l.ListingID
	m.SKU = l.SKU
	m.PriceAmount = l.Price.Amount()
	m.PriceCurrency = string(l.Price.Currency())
	m.Stock = l.Stock
	m.Format = l.Format
	m.IsActive = l.IsActive
	m.CreatedAt = l.CreatedAt
	m.UpdatedAt = l.UpdatedAt
}

// MarketplaceListingModelFromDomain creates a new persistence model from a
// domain MarketplaceListing
func MarketplaceListingModelFromDomain(l *listing.MarketplaceListing) *MarketplaceListingModel {
	m := &MarketplaceListingModel{}
	m.FromDomain(l)
	return m
}

// SyncRecordModel is the persistence model for the append-only SyncResult
// audit record. Rows are inserted once and never updated.
type SyncRecordModel struct {
	ID              uuid.UUID             `gorm:"type:uuid;primary_key"`
	EventID         uuid.UUID             `gorm:"type:uuid;not null;index:idx_sync_record_event"`
	SKU             string                `gorm:"type:varchar(100);not null;index:idx_sync_record_sku"`
	MarketplaceCode marketplace.Code      `gorm:"type:varchar(20);not null"`
	ListingID       string                `gorm:"type:varchar(100);not null"`
	Operation       listing.SyncOperation `gorm:"type:varchar(10);not null"`
	Success         bool                  `gorm:"not null;index:idx_sync_record_success"`
	PreviousStock   *int
	NewStock        *int
	PreviousPrice   *decimal.Decimal `gorm:"type:decimal(12,2)"`
	NewPrice        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Error           string           `gorm:"type:text"`
	SyncedAt        time.Time        `gorm:"not null;index:idx_sync_record_synced_at"`
}

// TableName returns the table name for GORM
func (SyncRecordModel) TableName() string {
	return "sync_records"
}

// ToDomain converts the persistence model to a domain SyncResult
func (m *SyncRecordModel) ToDomain() listing.SyncResult {
	return listing.SyncResult{
		ID:              m.ID,
		EventID:         m.EventID,
		SKU:             m.SKU,
		MarketplaceCode: m.MarketplaceCode,
		ListingID:       m.ListingID,
		Operation:       m.Operation,
		Success:         m.Success,
		PreviousStock:   m.PreviousStock,
		NewStock:        m.NewStock,
		PreviousPrice:   m.PreviousPrice,
		NewPrice:        m.NewPrice,
		Error:           m.Error,
		SyncedAt:        m.SyncedAt,
	}
}

// SyncRecordModelFromDomain creates a new persistence model from a domain
// SyncResult
func SyncRecordModelFromDomain(r *listing.SyncResult) *SyncRecordModel {
	return &SyncRecordModel{
		ID:              r.ID,
		EventID:         r.EventID,
		SKU:             r.SKU,
		MarketplaceCode: r.MarketplaceCode,
		ListingID:       r.ListingID,
		Operation:       r.Operation,
		Success:         r.Success,
		PreviousStock:   r.PreviousStock,
		NewStock:        r.NewStock,
		PreviousPrice:   r.PreviousPrice,
		NewPrice:        r.NewPrice,
		Error:           r.Error,
		SyncedAt:        r.SyncedAt,
	}
}
