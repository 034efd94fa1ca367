package persistence

import (
	"context"

	"gorm.io/gorm"

	"github.com/resell/backend/internal/domain/listing"
	"github.com/resell/backend/internal/infrastructure/persistence/models"
)

// GormSyncRecordRepository implements SyncRecordRepository using GORM.
// Records are insert-only: nothing here updates or deletes a row.
type GormSyncRecordRepository struct {
	db *gorm.DB
}

// NewGormSyncRecordRepository creates a new GormSyncRecordRepository
func NewGormSyncRecordRepository(db *gorm.DB) *GormSyncRecordRepository {
	return &GormSyncRecordRepository{db: db}
}

// Append stores audit records
func (r *GormSyncRecordRepository) Append(ctx context.Context, results []listing.SyncResult) error {
	if len(results) == 0 {
		return nil
	}

	recordModels := make([]*models.SyncRecordModel, len(results))
	for i := range results {
		recordModels[i] = models.SyncRecordModelFromDomain(&results[i])
	}

	return r.db.WithContext(ctx).Create(recordModels).Error
}

// FindBySKU returns the most recent audit records for a SKU, newest first
func (r *GormSyncRecordRepository) FindBySKU(ctx context.Context, sku string, limit int) ([]listing.SyncResult, error) {
	var recordModels []models.SyncRecordModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("synced_at DESC").
		Limit(limit).
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainRecords(recordModels), nil
}

// FindFailures returns the most recent failed records for a SKU, newest first
func (r *GormSyncRecordRepository) FindFailures(ctx context.Context, sku string, limit int) ([]listing.SyncResult, error) {
	var recordModels []models.SyncRecordModel
	if err := r.db.WithContext(ctx).
		Where("sku = ? AND success = ?", sku, false).
		Order("synced_at DESC").
		Limit(limit).
		Find(&recordModels).Error; err != nil {
		return nil, err
	}
	return toDomainRecords(recordModels), nil
}

func toDomainRecords(recordModels []models.SyncRecordModel) []listing.SyncResult {
	records := make([]listing.SyncResult, len(recordModels))
	for i := range recordModels {
		records[i] = recordModels[i].ToDomain()
	}
	return records
}

var _ listing.SyncRecordRepository = (*GormSyncRecordRepository)(nil)
