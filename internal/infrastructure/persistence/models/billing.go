package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
)

// ProviderModel is the persistence model for utility providers
type ProviderModel struct {
	TenantModel
	Name        string              `gorm:"type:varchar(200);not null"`
	ServiceType billing.ServiceType `gorm:"type:varchar(20);not null;index:idx_providers_tenant_service,priority:2"`
}

// TableName returns the table name for GORM
func (ProviderModel) TableName() string {
	return "providers"
}

// ToDomain converts the persistence model to a domain Provider
func (m *ProviderModel) ToDomain() *billing.Provider {
	return &billing.Provider{
		TenantEntity: m.TenantModel.ToDomain(),
		Name:         m.Name,
		ServiceType:  m.ServiceType,
	}
}

// FromDomain populates the persistence model from a domain Provider
func (m *ProviderModel) FromDomain(p *billing.Provider) {
	m.FromDomainTenantEntity(p.TenantEntity)
	m.Name = p.Name
	m.ServiceType = p.ServiceType
}

// TariffModel is the persistence model for tariffs. The pricing rule is a
// JSON document validated on load; a malformed document fails the read
// instead of silently pricing at zero.
type TariffModel struct {
	TenantModel
	ProviderID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Name          string     `gorm:"type:varchar(200);not null"`
	Configuration []byte     `gorm:"type:jsonb;not null"`
	ActiveFrom    time.Time  `gorm:"not null;index"`
	ActiveUntil   *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (TariffModel) TableName() string {
	return "tariffs"
}

// ToDomain converts the persistence model to a domain Tariff
func (m *TariffModel) ToDomain() (*billing.Tariff, error) {
	cfg, err := billing.ParseTariffConfiguration(m.Configuration)
	if err != nil {
		return nil, fmt.Errorf("tariff %s: %w", m.ID, err)
	}
	return &billing.Tariff{
		TenantEntity:  m.TenantModel.ToDomain(),
		ProviderID:    m.ProviderID,
		Name:          m.Name,
		Configuration: cfg,
		ActiveFrom:    m.ActiveFrom,
		ActiveUntil:   m.ActiveUntil,
	}, nil
}

// FromDomain populates the persistence model from a domain Tariff
func (m *TariffModel) FromDomain(t *billing.Tariff) error {
	data, err := json.Marshal(t.Configuration)
	if err != nil {
		return err
	}
	m.FromDomainTenantEntity(t.TenantEntity)
	m.ProviderID = t.ProviderID
	m.Name = t.Name
	m.Configuration = data
	m.ActiveFrom = t.ActiveFrom
	m.ActiveUntil = t.ActiveUntil
	return nil
}

// MeterModel is the persistence model for metering devices
type MeterModel struct {
	TenantModel
	PropertyID       uuid.UUID         `gorm:"type:uuid;not null;index"`
	ProviderID       *uuid.UUID        `gorm:"type:uuid;index"`
	Type             billing.MeterType `gorm:"type:varchar(20);not null;index"`
	SerialNumber     string            `gorm:"type:varchar(100);not null"`
	SupportsZones    bool              `gorm:"not null;default:false"`
	ReadingStructure []byte            `gorm:"type:jsonb"`

	Provider *ProviderModel `gorm:"foreignKey:ProviderID"`
}

// TableName returns the table name for GORM
func (MeterModel) TableName() string {
	return "meters"
}

// ToDomain converts the persistence model to a domain Meter
func (m *MeterModel) ToDomain() (*billing.Meter, error) {
	meter := &billing.Meter{
		TenantEntity:  m.TenantModel.ToDomain(),
		PropertyID:    m.PropertyID,
		ProviderID:    m.ProviderID,
		Type:          m.Type,
		SerialNumber:  m.SerialNumber,
		SupportsZones: m.SupportsZones,
	}
	if len(m.ReadingStructure) > 0 {
		if err := json.Unmarshal(m.ReadingStructure, &meter.ReadingStructure); err != nil {
			return nil, fmt.Errorf("meter %s: invalid reading structure: %w", m.ID, err)
		}
	}
	if m.Provider != nil {
		meter.Provider = m.Provider.ToDomain()
	}
	return meter, nil
}

// FromDomain populates the persistence model from a domain Meter
func (m *MeterModel) FromDomain(meter *billing.Meter) error {
	m.FromDomainTenantEntity(meter.TenantEntity)
	m.PropertyID = meter.PropertyID
	m.ProviderID = meter.ProviderID
	m.Type = meter.Type
	m.SerialNumber = meter.SerialNumber
	m.SupportsZones = meter.SupportsZones
	if meter.ReadingStructure != nil {
		data, err := json.Marshal(meter.ReadingStructure)
		if err != nil {
			return err
		}
		m.ReadingStructure = data
	}
	return nil
}

// MeterReadingModel is the persistence model for meter readings
type MeterReadingModel struct {
	BaseModel
	MeterID          uuid.UUID                       `gorm:"type:uuid;not null;index:idx_readings_meter_date,priority:1"`
	ReadingDate      time.Time                       `gorm:"not null;index:idx_readings_meter_date,priority:2"`
	Value            decimal.Decimal                 `gorm:"type:decimal(18,4);not null"`
	Zone             string                          `gorm:"type:varchar(50);not null;default:''"`
	ValidationStatus billing.ReadingValidationStatus `gorm:"type:varchar(20);not null;default:'pending'"`
}

// TableName returns the table name for GORM
func (MeterReadingModel) TableName() string {
	return "meter_readings"
}

// ToDomain converts the persistence model to a domain MeterReading
func (m *MeterReadingModel) ToDomain() billing.MeterReading {
	return billing.MeterReading{
		BaseEntity:       m.BaseModel.ToDomain(),
		MeterID:          m.MeterID,
		ReadingDate:      m.ReadingDate,
		Value:            m.Value,
		Zone:             m.Zone,
		ValidationStatus: m.ValidationStatus,
	}
}

// FromDomain populates the persistence model from a domain MeterReading
func (m *MeterReadingModel) FromDomain(r billing.MeterReading) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.MeterID = r.MeterID
	m.ReadingDate = r.ReadingDate
	m.Value = r.Value
	m.Zone = r.Zone
	m.ValidationStatus = r.ValidationStatus
}

// BuildingModel is the persistence model for buildings
type BuildingModel struct {
	TenantModel
	Address                  string           `gorm:"type:varchar(300);not null"`
	TotalApartments          int              `gorm:"not null"`
	TotalAreaSqm             decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	CirculationSummerAverage *decimal.Decimal `gorm:"type:decimal(18,4)"`
	CirculationCalculatedAt  *time.Time
}

// TableName returns the table name for GORM
func (BuildingModel) TableName() string {
	return "buildings"
}

// ToDomain converts the persistence model to a domain Building
func (m *BuildingModel) ToDomain() *billing.Building {
	return &billing.Building{
		TenantEntity:             m.TenantModel.ToDomain(),
		Address:                  m.Address,
		TotalApartments:          m.TotalApartments,
		TotalAreaSqm:             m.TotalAreaSqm,
		CirculationSummerAverage: m.CirculationSummerAverage,
		CirculationCalculatedAt:  m.CirculationCalculatedAt,
	}
}

// FromDomain populates the persistence model from a domain Building
func (m *BuildingModel) FromDomain(b *billing.Building) {
	m.FromDomainTenantEntity(b.TenantEntity)
	m.Address = b.Address
	m.TotalApartments = b.TotalApartments
	m.TotalAreaSqm = b.TotalAreaSqm
	m.CirculationSummerAverage = b.CirculationSummerAverage
	m.CirculationCalculatedAt = b.CirculationCalculatedAt
}

// PropertyModel is the persistence model for rental units
type PropertyModel struct {
	TenantModel
	BuildingID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Address    string          `gorm:"type:varchar(300);not null"`
	AreaSqm    decimal.Decimal `gorm:"type:decimal(10,2);not null"`

	Building *BuildingModel `gorm:"foreignKey:BuildingID"`
}

// TableName returns the table name for GORM
func (PropertyModel) TableName() string {
	return "properties"
}

// ToDomain converts the persistence model to a domain Property
func (m *PropertyModel) ToDomain() *billing.Property {
	p := &billing.Property{
		TenantEntity: m.TenantModel.ToDomain(),
		BuildingID:   m.BuildingID,
		Address:      m.Address,
		AreaSqm:      m.AreaSqm,
	}
	if m.Building != nil {
		p.Building = m.Building.ToDomain()
	}
	return p
}

// FromDomain populates the persistence model from a domain Property
func (m *PropertyModel) FromDomain(p *billing.Property) {
	m.FromDomainTenantEntity(p.TenantEntity)
	m.BuildingID = p.BuildingID
	m.Address = p.Address
	m.AreaSqm = p.AreaSqm
}

// RenterModel is the persistence model for renters
type RenterModel struct {
	TenantModel
	PropertyID uuid.UUID `gorm:"type:uuid;not null;index"`
	Name       string    `gorm:"type:varchar(200);not null"`
}

// TableName returns the table name for GORM
func (RenterModel) TableName() string {
	return "renters"
}

// ToDomain converts the persistence model to a domain Renter
func (m *RenterModel) ToDomain() *billing.Renter {
	return &billing.Renter{
		TenantEntity: m.TenantModel.ToDomain(),
		PropertyID:   m.PropertyID,
		Name:         m.Name,
	}
}

// FromDomain populates the persistence model from a domain Renter
func (m *RenterModel) FromDomain(r *billing.Renter) {
	m.FromDomainTenantEntity(r.TenantEntity)
	m.PropertyID = r.PropertyID
	m.Name = r.Name
}

// ServiceConfigurationModel is the persistence model for per-property
// service billing configurations
type ServiceConfigurationModel struct {
	TenantModel
	PropertyID         uuid.UUID                  `gorm:"type:uuid;not null;index"`
	ServiceType        billing.ServiceType        `gorm:"type:varchar(20);not null"`
	PricingModel       billing.PricingModel       `gorm:"type:varchar(20);not null"`
	DistributionMethod billing.DistributionMethod `gorm:"type:varchar(20);not null;default:'equal'"`
	IsSharedService    bool                       `gorm:"not null;default:false"`
	StrictReadings     bool                       `gorm:"not null;default:false"`
	EffectiveFrom      time.Time                  `gorm:"not null"`
	EffectiveUntil     *time.Time
	ProviderOverrideID *uuid.UUID `gorm:"type:uuid"`
	TariffOverrideID   *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ServiceConfigurationModel) TableName() string {
	return "service_configurations"
}

// ToDomain converts the persistence model to a domain ServiceConfiguration
func (m *ServiceConfigurationModel) ToDomain() billing.ServiceConfiguration {
	return billing.ServiceConfiguration{
		TenantEntity:       m.TenantModel.ToDomain(),
		PropertyID:         m.PropertyID,
		ServiceType:        m.ServiceType,
		PricingModel:       m.PricingModel,
		DistributionMethod: m.DistributionMethod,
		IsSharedService:    m.IsSharedService,
		StrictReadings:     m.StrictReadings,
		EffectiveFrom:      m.EffectiveFrom,
		EffectiveUntil:     m.EffectiveUntil,
		ProviderOverrideID: m.ProviderOverrideID,
		TariffOverrideID:   m.TariffOverrideID,
	}
}

// FromDomain populates the persistence model from a domain ServiceConfiguration
func (m *ServiceConfigurationModel) FromDomain(c billing.ServiceConfiguration) {
	m.FromDomainTenantEntity(c.TenantEntity)
	m.PropertyID = c.PropertyID
	m.ServiceType = c.ServiceType
	m.PricingModel = c.PricingModel
	m.DistributionMethod = c.DistributionMethod
	m.IsSharedService = c.IsSharedService
	m.StrictReadings = c.StrictReadings
	m.EffectiveFrom = c.EffectiveFrom
	m.EffectiveUntil = c.EffectiveUntil
	m.ProviderOverrideID = c.ProviderOverrideID
	m.TariffOverrideID = c.TariffOverrideID
}

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Items are owned exclusively; deleting an invoice cascades to its items.
type InvoiceModel struct {
	TenantModel
	RenterID           uuid.UUID             `gorm:"type:uuid;not null;index:idx_invoices_renter_period,priority:1"`
	PropertyID         uuid.UUID             `gorm:"type:uuid;not null;index"`
	BillingPeriodStart time.Time             `gorm:"not null;index:idx_invoices_renter_period,priority:2"`
	BillingPeriodEnd   time.Time             `gorm:"not null"`
	DueDate            time.Time             `gorm:"not null"`
	Status             billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	TotalAmount        decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	Currency           string                `gorm:"type:varchar(3);not null;default:'EUR'"`
	FinalizedAt        *time.Time

	Items []InvoiceItemModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() (*billing.Invoice, error) {
	total, err := valueobject.NewMoney(m.TotalAmount, valueobject.Currency(m.Currency))
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", m.ID, err)
	}
	inv := &billing.Invoice{
		TenantEntity:       m.TenantModel.ToDomain(),
		RenterID:           m.RenterID,
		PropertyID:         m.PropertyID,
		BillingPeriodStart: m.BillingPeriodStart,
		BillingPeriodEnd:   m.BillingPeriodEnd,
		DueDate:            m.DueDate,
		Status:             m.Status,
		TotalAmount:        total,
		FinalizedAt:        m.FinalizedAt,
	}
	inv.Items = make([]billing.InvoiceItem, 0, len(m.Items))
	for i := range m.Items {
		item, err := m.Items[i].ToDomain()
		if err != nil {
			return nil, err
		}
		inv.Items = append(inv.Items, item)
	}
	return inv, nil
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) error {
	m.FromDomainTenantEntity(inv.TenantEntity)
	m.RenterID = inv.RenterID
	m.PropertyID = inv.PropertyID
	m.BillingPeriodStart = inv.BillingPeriodStart
	m.BillingPeriodEnd = inv.BillingPeriodEnd
	m.DueDate = inv.DueDate
	m.Status = inv.Status
	m.TotalAmount = inv.TotalAmount.Amount()
	m.Currency = string(inv.TotalAmount.Currency())
	m.FinalizedAt = inv.FinalizedAt

	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		if err := m.Items[i].FromDomain(&inv.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

// InvoiceItemModel is the persistence model for invoice items
type InvoiceItemModel struct {
	BaseModel
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	Description string          `gorm:"type:varchar(300);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Unit        string          `gorm:"type:varchar(20);not null"`
	Rate        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Currency    string          `gorm:"type:varchar(3);not null;default:'EUR'"`
	Snapshot    []byte          `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceItem
func (m *InvoiceItemModel) ToDomain() (billing.InvoiceItem, error) {
	amount, err := valueobject.NewMoney(m.Amount, valueobject.Currency(m.Currency))
	if err != nil {
		return billing.InvoiceItem{}, fmt.Errorf("invoice item %s: %w", m.ID, err)
	}
	item := billing.InvoiceItem{
		BaseEntity:  m.BaseModel.ToDomain(),
		InvoiceID:   m.InvoiceID,
		Description: m.Description,
		Quantity:    m.Quantity,
		Unit:        m.Unit,
		Rate:        m.Rate,
		Amount:      amount,
	}
	if len(m.Snapshot) > 0 {
		if err := json.Unmarshal(m.Snapshot, &item.Snapshot); err != nil {
			return billing.InvoiceItem{}, fmt.Errorf("invoice item %s: invalid snapshot: %w", m.ID, err)
		}
	}
	return item, nil
}

// FromDomain populates the persistence model from a domain InvoiceItem
func (m *InvoiceItemModel) FromDomain(item *billing.InvoiceItem) error {
	snapshot, err := json.Marshal(item.Snapshot)
	if err != nil {
		return err
	}
	m.FromDomainBaseEntity(item.BaseEntity)
	m.InvoiceID = item.InvoiceID
	m.Description = item.Description
	m.Quantity = item.Quantity
	m.Unit = item.Unit
	m.Rate = item.Rate
	m.Amount = item.Amount.Amount()
	m.Currency = string(item.Amount.Currency())
	m.Snapshot = snapshot
	return nil
}
