package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared"
	"github.com/cflow/backend/internal/infrastructure/persistence/models"
)

// GormPropertyRepository implements PropertyRepository using GORM
type GormPropertyRepository struct {
	db *gorm.DB
}

// NewGormPropertyRepository creates a new GormPropertyRepository
func NewGormPropertyRepository(db *gorm.DB) *GormPropertyRepository {
	return &GormPropertyRepository{db: db}
}

// ForRenter returns the renter's property with the building and all service
// configurations eager-loaded. Three queries total: renter, property with
// building preload, configurations.
func (r *GormPropertyRepository) ForRenter(ctx context.Context, renterID uuid.UUID) (*billing.Property, error) {
	var renterModel models.RenterModel
	if err := r.db.WithContext(ctx).First(&renterModel, "id = ?", renterID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	var propertyModel models.PropertyModel
	if err := r.db.WithContext(ctx).
		Preload("Building").
		First(&propertyModel, "id = ?", renterModel.PropertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}

	var configModels []models.ServiceConfigurationModel
	if err := r.db.WithContext(ctx).
		Where("property_id = ?", propertyModel.ID).
		Order("effective_from DESC").
		Find(&configModels).Error; err != nil {
		return nil, err
	}

	property := propertyModel.ToDomain()
	property.ServiceConfigurations = make([]billing.ServiceConfiguration, len(configModels))
	for i := range configModels {
		property.ServiceConfigurations[i] = configModels[i].ToDomain()
	}
	return property, nil
}

// Ensure GormPropertyRepository implements PropertyRepository
var _ billing.PropertyRepository = (*GormPropertyRepository)(nil)
