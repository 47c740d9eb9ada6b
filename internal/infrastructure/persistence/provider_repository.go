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

// GormProviderRepository implements ProviderRepository using GORM
type GormProviderRepository struct {
	db *gorm.DB
}

// NewGormProviderRepository creates a new GormProviderRepository
func NewGormProviderRepository(db *gorm.DB) *GormProviderRepository {
	return &GormProviderRepository{db: db}
}

// FindByID finds a provider by its ID
func (r *GormProviderRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Provider, error) {
	var model models.ProviderModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByServiceType finds the tenant's provider for a service type
func (r *GormProviderRepository) FindByServiceType(ctx context.Context, tenantID uuid.UUID, serviceType billing.ServiceType) (*billing.Provider, error) {
	var model models.ProviderModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND service_type = ?", tenantID, serviceType).
		Order("created_at ASC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormProviderRepository implements ProviderRepository
var _ billing.ProviderRepository = (*GormProviderRepository)(nil)
