package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// GormListingRepository implements ListingRepository using GORM
type GormListingRepository struct {
	db *gorm.DB
}

// NewGormListingRepository creates a new GormListingRepository
func NewGormListingRepository(db *gorm.DB) *GormListingRepository {
	return &GormListingRepository{db: db}
}

// FindBySKU returns every listing for a SKU, ordered by marketplace code so
// callers always see the same reference listing first
func (r *GormListingRepository) FindBySKU(ctx context.Context, sku string) ([]listing.MarketplaceListing, error) {
	var listingModels []models.MarketplaceListingModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("marketplace_code ASC").
		Find(&listingModels).Error; err != nil {
		return nil, err
	}
	return toDomainListings(listingModels)
}

// FindByMarketplaceListing returns the listing with the given marketplace
// listing ID, or ErrListingNotFound
func (r *GormListingRepository) FindByMarketplaceListing(ctx context.Context, code marketplace.Code, listingID string) (*listing.MarketplaceListing, error) {
	var model models.MarketplaceListingModel
	if err := r.db.WithContext(ctx).
		Where("marketplace_code = ? AND listing_id = ?", code, listingID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listing.ErrListingNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindActiveByFormat returns all active listings with the given format
func (r *GormListingRepository) FindActiveByFormat(ctx context.Context, format marketplace.ListingFormat) ([]listing.MarketplaceListing, error) {
	var listingModels []models.MarketplaceListingModel
	if err := r.db.WithContext(ctx).
		Where("format = ? AND is_active = ?", format, true).
		Order("marketplace_code ASC, sku ASC").
		Find(&listingModels).Error; err != nil {
		return nil, err
	}
	return toDomainListings(listingModels)
}

// ListActiveSKUs returns the distinct SKUs with at least one active listing
func (r *GormListingRepository) ListActiveSKUs(ctx context.Context) ([]string, error) {
	var skus []string
	if err := r.db.WithContext(ctx).
		Model(&models.MarketplaceListingModel{}).
		Where("is_active = ?", true).
		Distinct("sku").
		Order("sku ASC").
		Pluck("sku", &skus).Error; err != nil {
		return nil, err
	}
	return skus, nil
}

// Save inserts or updates a listing record
func (r *GormListingRepository) Save(ctx context.Context, l *listing.MarketplaceListing) error {
	model := models.MarketplaceListingModelFromDomain(l)
	return r.db.WithContext(ctx).Save(model).Error
}

func toDomainListings(listingModels []models.MarketplaceListingModel) ([]listing.MarketplaceListing, error) {
	listings := make([]listing.MarketplaceListing, len(listingModels))
	for i := range listingModels {
		l, err := listingModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		listings[i] = *l
	}
	return listings, nil
}

var _ listing.ListingRepository = (*GormListingRepository)(nil)
