package billing

import (
	"time"

	"github.com/cflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MeterType identifies what a metering device measures
type MeterType string

const (
	MeterTypeElectricity MeterType = "electricity"
	MeterTypeWaterCold   MeterType = "water_cold"
	MeterTypeWaterHot    MeterType = "water_hot"
	MeterTypeHeating     MeterType = "heating"
	MeterTypeCustom      MeterType = "custom"
)

// IsValid returns true for a known meter type
func (t MeterType) IsValid() bool {
	switch t {
	case MeterTypeElectricity, MeterTypeWaterCold, MeterTypeWaterHot, MeterTypeHeating, MeterTypeCustom:
		return true
	}
	return false
}

// IsWater returns true for cold and hot water meters
func (t MeterType) IsWater() bool {
	return t == MeterTypeWaterCold || t == MeterTypeWaterHot
}

// ServiceType maps a meter type to the utility service billed for it
func (t MeterType) ServiceType() ServiceType {
	switch t {
	case MeterTypeElectricity:
		return ServiceTypeElectricity
	case MeterTypeWaterCold, MeterTypeWaterHot:
		return ServiceTypeWater
	case MeterTypeHeating:
		return ServiceTypeHeating
	default:
		return ""
	}
}

// DisplayName returns a human-readable label for invoice item descriptions
func (t MeterType) DisplayName() string {
	switch t {
	case MeterTypeElectricity:
		return "Electricity"
	case MeterTypeWaterCold:
		return "Cold Water"
	case MeterTypeWaterHot:
		return "Hot Water"
	case MeterTypeHeating:
		return "Heating"
	case MeterTypeCustom:
		return "Custom Meter"
	default:
		return string(t)
	}
}

// Unit returns the unit the meter's readings are expressed in
func (t MeterType) Unit() string {
	switch t {
	case MeterTypeElectricity, MeterTypeHeating:
		return "kWh"
	case MeterTypeWaterCold, MeterTypeWaterHot:
		return "m³"
	default:
		return ""
	}
}

// Meter is a metering device installed in a property. Read-only to the
// billing core; mutation happens through device management workflows.
//
// Provider and ServiceConfig are eager-load context attached by the meter
// repository so the orchestrator never issues per-meter lookups.
type Meter struct {
	shared.TenantEntity
	PropertyID       uuid.UUID
	ProviderID       *uuid.UUID
	Type             MeterType
	SerialNumber     string
	SupportsZones    bool
	ReadingStructure map[string]string // free-form field layout for custom meters

	Provider      *Provider
	ServiceConfig *ServiceConfiguration
}

// ReadingValidationStatus marks the review state of a submitted reading
type ReadingValidationStatus string

const (
	ReadingStatusPending  ReadingValidationStatus = "pending"
	ReadingStatusApproved ReadingValidationStatus = "approved"
	ReadingStatusRejected ReadingValidationStatus = "rejected"
)

// MeterReading is a time-stamped value observation for one meter, optionally
// scoped to a zone (day/night channel). Values are monotonically
// non-decreasing under normal operation. Read-only to the billing core.
type MeterReading struct {
	shared.BaseEntity
	MeterID          uuid.UUID
	ReadingDate      time.Time
	Value            decimal.Decimal
	Zone             string // empty for single-zone meters
	ValidationStatus ReadingValidationStatus
}
