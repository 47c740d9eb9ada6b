package billing

import (
	"time"

	"github.com/cflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DistributionMethod selects how a building-level shared cost is split
// across the building's properties
type DistributionMethod string

const (
	DistributionEqual DistributionMethod = "equal"
	DistributionArea  DistributionMethod = "area"
)

// IsValid returns true for a known distribution method
func (m DistributionMethod) IsValid() bool {
	return m == DistributionEqual || m == DistributionArea
}

// PricingModel selects how a service configuration prices consumption
type PricingModel string

const (
	PricingModelMetered   PricingModel = "metered"
	PricingModelFixed     PricingModel = "fixed"
	PricingModelComposite PricingModel = "composite" // metered consumption plus fixed fee
)

// Building owns properties and carries the shared circulation-heating state.
// TotalApartments is the equal-split denominator; TotalAreaSqm the
// area-weighted one.
type Building struct {
	shared.TenantEntity
	Address                  string
	TotalApartments          int
	TotalAreaSqm             decimal.Decimal
	CirculationSummerAverage *decimal.Decimal // kWh, rolling summer baseline
	CirculationCalculatedAt  *time.Time
}

// Property is a rentable unit inside a building.
//
// Building and ServiceConfigurations are eager-load context attached by the
// property repository so the orchestrator never issues follow-up lookups.
type Property struct {
	shared.TenantEntity
	BuildingID uuid.UUID
	Address    string
	AreaSqm    decimal.Decimal

	Building              *Building
	ServiceConfigurations []ServiceConfiguration
}

// ServiceConfigurationFor returns the configuration effective for the
// service on the given date, or nil when the service is not configured
func (p *Property) ServiceConfigurationFor(service ServiceType, onDate time.Time) *ServiceConfiguration {
	for i := range p.ServiceConfigurations {
		cfg := &p.ServiceConfigurations[i]
		if cfg.ServiceType == service && cfg.IsEffectiveOn(onDate) {
			return cfg
		}
	}
	return nil
}

// Renter occupies a property and is the party invoices are generated for
type Renter struct {
	shared.TenantEntity
	PropertyID uuid.UUID
	Name       string

	Property *Property
}

// ServiceConfiguration binds a property and a utility service to a pricing
// model, a distribution method and a shared-service flag, within an
// effective window. Optional overrides pin a specific provider or tariff
// instead of the service-type default.
type ServiceConfiguration struct {
	shared.TenantEntity
	PropertyID         uuid.UUID
	ServiceType        ServiceType
	PricingModel       PricingModel
	DistributionMethod DistributionMethod
	IsSharedService    bool
	StrictReadings     bool // missing readings abort instead of skipping
	EffectiveFrom      time.Time
	EffectiveUntil     *time.Time
	ProviderOverrideID *uuid.UUID
	TariffOverrideID   *uuid.UUID
}

// IsEffectiveOn reports whether the configuration window covers the date
func (c *ServiceConfiguration) IsEffectiveOn(date time.Time) bool {
	if date.Before(c.EffectiveFrom) {
		return false
	}
	if c.EffectiveUntil != nil && date.After(*c.EffectiveUntil) {
		return false
	}
	return true
}
