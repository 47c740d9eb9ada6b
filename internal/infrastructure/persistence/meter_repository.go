package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/infrastructure/persistence/models"
)

// GormMeterRepository implements MeterRepository using GORM
type GormMeterRepository struct {
	db *gorm.DB
}

// NewGormMeterRepository creates a new GormMeterRepository
func NewGormMeterRepository(db *gorm.DB) *GormMeterRepository {
	return &GormMeterRepository{db: db}
}

// ForProperty returns the property's meters in creation order with the
// provider preloaded and the property's service configuration for the meter's
// service attached. One meter query, one preload, one configuration query,
// regardless of meter count.
func (r *GormMeterRepository) ForProperty(ctx context.Context, propertyID uuid.UUID) ([]billing.Meter, error) {
	var meterModels []models.MeterModel
	if err := r.db.WithContext(ctx).
		Preload("Provider").
		Where("property_id = ?", propertyID).
		Order("created_at ASC").
		Find(&meterModels).Error; err != nil {
		return nil, err
	}

	var configModels []models.ServiceConfigurationModel
	if err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("effective_from DESC").
		Find(&configModels).Error; err != nil {
		return nil, err
	}

	configsByService := make(map[billing.ServiceType]*billing.ServiceConfiguration, len(configModels))
	for i := range configModels {
		cfg := configModels[i].ToDomain()
		if _, ok := configsByService[cfg.ServiceType]; !ok {
			configsByService[cfg.ServiceType] = &cfg
		}
	}

	meters := make([]billing.Meter, len(meterModels))
	for i := range meterModels {
		meter, err := meterModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		if service := meter.Type.ServiceType(); service != "" {
			meter.ServiceConfig = configsByService[service]
		}
		meters[i] = *meter
	}
	return meters, nil
}

// Ensure GormMeterRepository implements MeterRepository
var _ billing.MeterRepository = (*GormMeterRepository)(nil)
