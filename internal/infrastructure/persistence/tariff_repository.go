package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared"
	"github.com/cflow/backend/internal/infrastructure/persistence/models"
)

// GormTariffRepository implements TariffRepository using GORM
type GormTariffRepository struct {
	db *gorm.DB
}

// NewGormTariffRepository creates a new GormTariffRepository
func NewGormTariffRepository(db *gorm.DB) *GormTariffRepository {
	return &GormTariffRepository{db: db}
}

// FindByID finds a tariff by its ID
func (r *GormTariffRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Tariff, error) {
	var model models.TariffModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindCandidates returns the provider's tariffs whose validity window covers
// onDate. The ordering matches the resolution tie-break, so the first row is
// the winning tariff.
func (r *GormTariffRepository) FindCandidates(ctx context.Context, providerID uuid.UUID, onDate time.Time) ([]billing.Tariff, error) {
	var tariffModels []models.TariffModel
	if err := r.db.WithContext(ctx).
		Where("provider_id = ? AND active_from <= ? AND (active_until IS NULL OR active_until >= ?)",
			providerID, onDate, onDate).
		Order("active_from DESC, created_at DESC").
		Find(&tariffModels).Error; err != nil {
		return nil, err
	}

	tariffs := make([]billing.Tariff, len(tariffModels))
	for i := range tariffModels {
		tariff, err := tariffModels[i].ToDomain()
		if err != nil {
			return nil, err
		}
		tariffs[i] = *tariff
	}
	return tariffs, nil
}

// Ensure GormTariffRepository implements TariffRepository
var _ billing.TariffRepository = (*GormTariffRepository)(nil)
