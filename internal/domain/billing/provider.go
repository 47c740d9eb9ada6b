package billing

import (
	"github.com/cflow/backend/internal/domain/shared"
)

// ServiceType identifies the kind of utility service a provider supplies
type ServiceType string

const (
	ServiceTypeElectricity ServiceType = "electricity"
	ServiceTypeWater       ServiceType = "water"
	ServiceTypeHeating     ServiceType = "heating"
	ServiceTypeGas         ServiceType = "gas"
)

// IsValid returns true for a known service type
func (s ServiceType) IsValid() bool {
	switch s {
	case ServiceTypeElectricity, ServiceTypeWater, ServiceTypeHeating, ServiceTypeGas:
		return true
	}
	return false
}

// DisplayName returns a human-readable label for the service type
func (s ServiceType) DisplayName() string {
	switch s {
	case ServiceTypeElectricity:
		return "Electricity"
	case ServiceTypeWater:
		return "Water"
	case ServiceTypeHeating:
		return "Heating"
	case ServiceTypeGas:
		return "Gas"
	default:
		return string(s)
	}
}

// Unit returns the measurement unit consumption of this service is billed in
func (s ServiceType) Unit() string {
	switch s {
	case ServiceTypeElectricity, ServiceTypeHeating:
		return "kWh"
	case ServiceTypeWater:
		return "m³"
	case ServiceTypeGas:
		return "m³"
	default:
		return ""
	}
}

// Provider is an external utility supplier associated with one service type.
// Providers are read-only inputs to the billing core.
type Provider struct {
	shared.TenantEntity
	Name        string
	ServiceType ServiceType
}
