package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderRepository resolves utility providers
type ProviderRepository interface {
	// FindByID retrieves a provider by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Provider, error)

	// FindByServiceType retrieves the tenant's provider for a service type
	FindByServiceType(ctx context.Context, tenantID uuid.UUID, serviceType ServiceType) (*Provider, error)
}

// TariffRepository loads tariff candidates for resolution
type TariffRepository interface {
	// FindByID retrieves a tariff by its ID, for configurations that pin a
	// specific tariff instead of resolving by date
	FindByID(ctx context.Context, id uuid.UUID) (*Tariff, error)

	// FindCandidates returns all tariffs of the provider whose validity
	// window covers onDate, newest ActiveFrom first
	FindCandidates(ctx context.Context, providerID uuid.UUID, onDate time.Time) ([]Tariff, error)
}

// MeterRepository loads meters with their billing context
type MeterRepository interface {
	// ForProperty returns the property's meters in creation order, with the
	// provider and service configuration attached so no per-meter lookups
	// are needed afterwards
	ForProperty(ctx context.Context, propertyID uuid.UUID) ([]Meter, error)
}

// MeterReadingRepository batch-loads raw readings
type MeterReadingRepository interface {
	// BatchForMetersInWindow returns all readings of the given meters whose
	// date falls in [periodStart-bufferDays, periodEnd+bufferDays], in one
	// query keyed by the meter-id set, ordered by reading date
	BatchForMetersInWindow(ctx context.Context, meterIDs []uuid.UUID, periodStart, periodEnd time.Time, bufferDays int) ([]MeterReading, error)

	// BatchForBuildingByType returns all readings within [periodStart,
	// periodEnd] of every meter of the given type installed anywhere in the
	// building, in one query, ordered by reading date
	BatchForBuildingByType(ctx context.Context, buildingID uuid.UUID, meterType MeterType, periodStart, periodEnd time.Time) ([]MeterReading, error)
}

// PropertyRepository loads rental units with their billing context
type PropertyRepository interface {
	// ForRenter returns the renter's property with building and effective
	// service configurations eager-loaded
	ForRenter(ctx context.Context, renterID uuid.UUID) (*Property, error)
}

// BuildingRepository loads buildings and their distribution context
type BuildingRepository interface {
	// FindByID retrieves a building by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Building, error)

	// PropertiesForDistribution returns the building's properties ordered by
	// ID, carrying only the fields distribution needs (id, area)
	PropertiesForDistribution(ctx context.Context, buildingID uuid.UUID) ([]Property, error)

	// UpdateCirculationAverage stores a freshly computed summer baseline
	UpdateCirculationAverage(ctx context.Context, buildingID uuid.UUID, average decimal.Decimal, calculatedAt time.Time) error
}

// InvoiceRepository persists invoice aggregates
type InvoiceRepository interface {
	// Create persists the invoice and all its items atomically, replacing a
	// still-draft invoice for the same (renter, period) if one exists. Items
	// are written in a bounded number of batched inserts.
	Create(ctx context.Context, invoice *Invoice) error

	// FindByID retrieves an invoice with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// Finalize transitions the invoice from draft to finalized with a
	// conditional update, so at most one concurrent caller succeeds. Returns
	// ConcurrentFinalizationError when the invoice already left draft.
	Finalize(ctx context.Context, invoiceID uuid.UUID, at time.Time) error
}
