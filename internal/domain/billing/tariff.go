package billing

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cflow/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TariffKind discriminates the pricing-model variants of a tariff
type TariffKind string

const (
	TariffKindFlat      TariffKind = "flat"
	TariffKindTimeOfUse TariffKind = "time_of_use"
	TariffKindFixedFee  TariffKind = "fixed_fee"
)

// IsValid returns true for a known tariff kind
func (k TariffKind) IsValid() bool {
	switch k {
	case TariffKindFlat, TariffKindTimeOfUse, TariffKindFixedFee:
		return true
	}
	return false
}

// TariffConfiguration is the tagged union of pricing-model variants.
// Exactly one variant's fields are meaningful, selected by Kind:
//
//   - flat: Rate per consumed unit
//   - time_of_use: ZoneRates per zone, optional DefaultZoneRate for zones
//     missing from the table
//   - fixed_fee: Amount charged once per billing period per service
//
// Configurations are validated when loaded from storage, so the pricing
// engine never sees a malformed variant.
type TariffConfiguration struct {
	Kind            TariffKind                 `json:"type"`
	Rate            decimal.Decimal            `json:"rate,omitempty"`
	ZoneRates       map[string]decimal.Decimal `json:"zone_rates,omitempty"`
	DefaultZoneRate *decimal.Decimal           `json:"default_zone_rate,omitempty"`
	Amount          decimal.Decimal            `json:"amount,omitempty"`
}

// NewFlatConfiguration creates a flat-rate tariff configuration
func NewFlatConfiguration(rate decimal.Decimal) TariffConfiguration {
	return TariffConfiguration{Kind: TariffKindFlat, Rate: rate}
}

// NewTimeOfUseConfiguration creates a time-of-use tariff configuration
func NewTimeOfUseConfiguration(zoneRates map[string]decimal.Decimal) TariffConfiguration {
	return TariffConfiguration{Kind: TariffKindTimeOfUse, ZoneRates: zoneRates}
}

// NewFixedFeeConfiguration creates a fixed-fee tariff configuration
func NewFixedFeeConfiguration(amount decimal.Decimal) TariffConfiguration {
	return TariffConfiguration{Kind: TariffKindFixedFee, Amount: amount}
}

// Validate checks that the selected variant is complete and well-formed
func (c TariffConfiguration) Validate() error {
	switch c.Kind {
	case TariffKindFlat:
		if c.Rate.IsNegative() {
			return shared.NewDomainError("INVALID_TARIFF_CONFIG", "Flat rate cannot be negative")
		}
	case TariffKindTimeOfUse:
		if len(c.ZoneRates) == 0 {
			return shared.NewDomainError("INVALID_TARIFF_CONFIG", "Time-of-use tariff requires at least one zone rate")
		}
		for zone, rate := range c.ZoneRates {
			if zone == "" {
				return shared.NewDomainError("INVALID_TARIFF_CONFIG", "Zone identifier cannot be empty")
			}
			if rate.IsNegative() {
				return shared.NewDomainError("INVALID_TARIFF_CONFIG", fmt.Sprintf("Zone %q rate cannot be negative", zone))
			}
		}
		if c.DefaultZoneRate != nil && c.DefaultZoneRate.IsNegative() {
			return shared.NewDomainError("INVALID_TARIFF_CONFIG", "Default zone rate cannot be negative")
		}
	case TariffKindFixedFee:
		if c.Amount.IsNegative() {
			return shared.NewDomainError("INVALID_TARIFF_CONFIG", "Fixed fee amount cannot be negative")
		}
	default:
		return shared.NewDomainError("INVALID_TARIFF_CONFIG", fmt.Sprintf("Unknown tariff kind: %q", c.Kind))
	}
	return nil
}

// ParseTariffConfiguration decodes and validates a configuration document.
// This is the only way configurations enter the domain from storage.
func ParseTariffConfiguration(data []byte) (TariffConfiguration, error) {
	var c TariffConfiguration
	if err := json.Unmarshal(data, &c); err != nil {
		return TariffConfiguration{}, fmt.Errorf("failed to decode tariff configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return TariffConfiguration{}, err
	}
	return c, nil
}

// Tariff is a priced rule bound to a provider with a validity window.
// ActiveFrom is inclusive; a nil ActiveUntil means open-ended.
type Tariff struct {
	shared.TenantEntity
	ProviderID    uuid.UUID
	Name          string
	Configuration TariffConfiguration
	ActiveFrom    time.Time
	ActiveUntil   *time.Time
}

// IsActiveOn reports whether the tariff's validity window covers the date.
// Both window bounds are inclusive.
func (t *Tariff) IsActiveOn(date time.Time) bool {
	if date.Before(t.ActiveFrom) {
		return false
	}
	if t.ActiveUntil != nil && date.After(*t.ActiveUntil) {
		return false
	}
	return true
}

// RatePerUnit returns the per-unit rate a consumption-based calculation
// should use: the flat rate, or the time-of-use rate for the given zone.
// Fixed-fee tariffs have no per-unit rate.
func (t *Tariff) RatePerUnit(zone string) (decimal.Decimal, error) {
	switch t.Configuration.Kind {
	case TariffKindFlat:
		return t.Configuration.Rate, nil
	case TariffKindTimeOfUse:
		if rate, ok := t.Configuration.ZoneRates[zone]; ok {
			return rate, nil
		}
		if t.Configuration.DefaultZoneRate != nil {
			return *t.Configuration.DefaultZoneRate, nil
		}
		return decimal.Zero, shared.NewDomainError("UNKNOWN_ZONE", fmt.Sprintf("Tariff %q has no rate for zone %q", t.Name, zone))
	case TariffKindFixedFee:
		return decimal.Zero, shared.NewDomainError("INVALID_STATE", "Fixed-fee tariffs have no per-unit rate")
	default:
		return decimal.Zero, shared.NewDomainError("INVALID_TARIFF_CONFIG", fmt.Sprintf("Unknown tariff kind: %q", t.Configuration.Kind))
	}
}
