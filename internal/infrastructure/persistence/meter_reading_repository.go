package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/infrastructure/persistence/models"
)

// GormMeterReadingRepository implements MeterReadingRepository using GORM
type GormMeterReadingRepository struct {
	db *gorm.DB
}

// NewGormMeterReadingRepository creates a new GormMeterReadingRepository
func NewGormMeterReadingRepository(db *gorm.DB) *GormMeterReadingRepository {
	return &GormMeterReadingRepository{db: db}
}

// BatchForMetersInWindow returns all readings of the given meters inside the
// buffered period window in a single query, ordered by reading date
func (r *GormMeterReadingRepository) BatchForMetersInWindow(ctx context.Context, meterIDs []uuid.UUID, periodStart, periodEnd time.Time, bufferDays int) ([]billing.MeterReading, error) {
	if len(meterIDs) == 0 {
		return []billing.MeterReading{}, nil
	}

	windowStart := periodStart.AddDate(0, 0, -bufferDays)
	windowEnd := periodEnd.AddDate(0, 0, bufferDays)

	var readingModels []models.MeterReadingModel
	if err := r.db.WithContext(ctx).
		Where("meter_id IN ? AND reading_date >= ? AND reading_date <= ?", meterIDs, windowStart, windowEnd).
		Order("reading_date ASC").
		Find(&readingModels).Error; err != nil {
		return nil, err
	}

	return toDomainReadings(readingModels), nil
}

// BatchForBuildingByType returns all period readings of every meter of the
// given type installed in the building, resolved through a meter subquery so
// the call stays a single round trip
func (r *GormMeterReadingRepository) BatchForBuildingByType(ctx context.Context, buildingID uuid.UUID, meterType billing.MeterType, periodStart, periodEnd time.Time) ([]billing.MeterReading, error) {
	meterIDs := r.db.Model(&models.MeterModel{}).
		Select("meters.id").
		Joins("JOIN properties ON properties.id = meters.property_id").
		Where("properties.building_id = ? AND meters.type = ?", buildingID, meterType)

	var readingModels []models.MeterReadingModel
	if err := r.db.WithContext(ctx).
		Where("meter_id IN (?) AND reading_date >= ? AND reading_date <= ?", meterIDs, periodStart, periodEnd).
		Order("reading_date ASC").
		Find(&readingModels).Error; err != nil {
		return nil, err
	}

	return toDomainReadings(readingModels), nil
}

func toDomainReadings(readingModels []models.MeterReadingModel) []billing.MeterReading {
	readings := make([]billing.MeterReading, len(readingModels))
	for i := range readingModels {
		readings[i] = readingModels[i].ToDomain()
	}
	return readings
}

// Ensure GormMeterReadingRepository implements MeterReadingRepository
var _ billing.MeterReadingRepository = (*GormMeterReadingRepository)(nil)
