package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared"
	"github.com/cflow/backend/internal/infrastructure/persistence/models"
)

// GormBuildingRepository implements BuildingRepository using GORM
type GormBuildingRepository struct {
	db *gorm.DB
}

// NewGormBuildingRepository creates a new GormBuildingRepository
func NewGormBuildingRepository(db *gorm.DB) *GormBuildingRepository {
	return &GormBuildingRepository{db: db}
}

// FindByID finds a building by its ID
func (r *GormBuildingRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Building, error) {
	var model models.BuildingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// PropertiesForDistribution returns the building's properties ordered by ID.
// The stable ordering makes the remainder-absorbing first share deterministic.
func (r *GormBuildingRepository) PropertiesForDistribution(ctx context.Context, buildingID uuid.UUID) ([]billing.Property, error) {
	var propertyModels []models.PropertyModel
	if err := r.db.WithContext(ctx).
		Where("building_id = ?", buildingID).
		Order("id ASC").
		Find(&propertyModels).Error; err != nil {
		return nil, err
	}

	properties := make([]billing.Property, len(propertyModels))
	for i := range propertyModels {
		properties[i] = *propertyModels[i].ToDomain()
	}
	return properties, nil
}

// UpdateCirculationAverage stores a freshly computed summer baseline
func (r *GormBuildingRepository) UpdateCirculationAverage(ctx context.Context, buildingID uuid.UUID, average decimal.Decimal, calculatedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.BuildingModel{}).
		Where("id = ?", buildingID).
		Updates(map[string]interface{}{
			"circulation_summer_average": average,
			"circulation_calculated_at":  calculatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormBuildingRepository implements BuildingRepository
var _ billing.BuildingRepository = (*GormBuildingRepository)(nil)
