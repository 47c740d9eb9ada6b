package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MissingTariffError signals that no active tariff resolves for a
// provider/service/date. Fatal: consumption cannot safely be charged
// without a priced rule, so invoice generation aborts.
type MissingTariffError struct {
	ProviderID  uuid.UUID
	ServiceType ServiceType
	OnDate      time.Time
}

func (e *MissingTariffError) Error() string {
	return fmt.Sprintf("no active tariff for provider %s service %s on %s",
		e.ProviderID, e.ServiceType, e.OnDate.Format("2006-01-02"))
}

// NewMissingTariffError creates a MissingTariffError
func NewMissingTariffError(providerID uuid.UUID, service ServiceType, onDate time.Time) *MissingTariffError {
	return &MissingTariffError{ProviderID: providerID, ServiceType: service, OnDate: onDate}
}

// MissingReadingError signals that no reading resolves within the buffer
// window for a meter/zone at a period bound. Recoverable by default: the
// meter's line is skipped and generation continues.
type MissingReadingError struct {
	MeterID uuid.UUID
	Zone    string
	Target  time.Time
}

func (e *MissingReadingError) Error() string {
	if e.Zone != "" {
		return fmt.Sprintf("no reading for meter %s zone %q around %s",
			e.MeterID, e.Zone, e.Target.Format("2006-01-02"))
	}
	return fmt.Sprintf("no reading for meter %s around %s",
		e.MeterID, e.Target.Format("2006-01-02"))
}

// NewMissingReadingError creates a MissingReadingError
func NewMissingReadingError(meterID uuid.UUID, zone string, target time.Time) *MissingReadingError {
	return &MissingReadingError{MeterID: meterID, Zone: zone, Target: target}
}

// NegativeConsumptionError signals a reading pair whose delta is negative
// (meter rollover or data entry error). The item is flagged and skipped,
// never silently inverted or charged as zero.
type NegativeConsumptionError struct {
	MeterID uuid.UUID
	Zone    string
	Delta   decimal.Decimal
}

func (e *NegativeConsumptionError) Error() string {
	if e.Zone != "" {
		return fmt.Sprintf("negative consumption %s for meter %s zone %q", e.Delta, e.MeterID, e.Zone)
	}
	return fmt.Sprintf("negative consumption %s for meter %s", e.Delta, e.MeterID)
}

// NewNegativeConsumptionError creates a NegativeConsumptionError
func NewNegativeConsumptionError(meterID uuid.UUID, zone string, delta decimal.Decimal) *NegativeConsumptionError {
	return &NegativeConsumptionError{MeterID: meterID, Zone: zone, Delta: delta}
}

// ConcurrentFinalizationError signals a finalize request against an invoice
// that already left draft. A validation failure for the caller, not a
// system fault.
type ConcurrentFinalizationError struct {
	InvoiceID uuid.UUID
	Status    InvoiceStatus
}

func (e *ConcurrentFinalizationError) Error() string {
	return fmt.Sprintf("invoice %s is already %s", e.InvoiceID, e.Status)
}

// NewConcurrentFinalizationError creates a ConcurrentFinalizationError
func NewConcurrentFinalizationError(invoiceID uuid.UUID, status InvoiceStatus) *ConcurrentFinalizationError {
	return &ConcurrentFinalizationError{InvoiceID: invoiceID, Status: status}
}
