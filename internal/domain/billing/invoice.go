package billing

import (
	"time"

	"github.com/cflow/backend/internal/domain/shared"
	"github.com/cflow/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the one-directional lifecycle state of an invoice:
// draft -> finalized -> paid
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusFinalized InvoiceStatus = "finalized"
	InvoiceStatusPaid      InvoiceStatus = "paid"
)

// Invoice is the billing aggregate root for one (renter, period) generation.
// It exclusively owns its items; deleting an invoice deletes its items.
type Invoice struct {
	shared.TenantEntity
	RenterID           uuid.UUID
	PropertyID         uuid.UUID
	BillingPeriodStart time.Time
	BillingPeriodEnd   time.Time
	DueDate            time.Time
	Status             InvoiceStatus
	TotalAmount        valueobject.Money
	FinalizedAt        *time.Time
	Items              []InvoiceItem
}

// NewInvoice creates a draft invoice for a renter and billing period
func NewInvoice(tenantID, renterID, propertyID uuid.UUID, periodStart, periodEnd, dueDate time.Time) *Invoice {
	return &Invoice{
		TenantEntity:       shared.NewTenantEntity(tenantID),
		RenterID:           renterID,
		PropertyID:         propertyID,
		BillingPeriodStart: periodStart,
		BillingPeriodEnd:   periodEnd,
		DueDate:            dueDate,
		Status:             InvoiceStatusDraft,
		TotalAmount:        valueobject.ZeroEUR(),
	}
}

// IsDraft reports whether the invoice can still be regenerated or finalized
func (i *Invoice) IsDraft() bool {
	return i.Status == InvoiceStatusDraft
}

// AttachItems assigns the items to this invoice and sets the total to the
// exact sum of item amounts. Item amounts are already rounded to currency
// precision at creation, so the total carries no rounding drift.
func (i *Invoice) AttachItems(items []InvoiceItem) {
	total := valueobject.Zero(i.TotalAmount.Currency())
	for idx := range items {
		items[idx].InvoiceID = i.ID
		total = total.MustAdd(items[idx].Amount)
	}
	i.Items = items
	i.TotalAmount = total
}

// Finalize transitions the invoice out of draft. Only the aggregate-level
// guard; the repository enforces the same transition conditionally so two
// concurrent finalize calls cannot both succeed.
func (i *Invoice) Finalize(at time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return NewConcurrentFinalizationError(i.ID, i.Status)
	}
	i.Status = InvoiceStatusFinalized
	i.FinalizedAt = &at
	return nil
}

// MarkPaid transitions a finalized invoice to paid
func (i *Invoice) MarkPaid() error {
	if i.Status != InvoiceStatusFinalized {
		return shared.ErrInvalidState
	}
	i.Status = InvoiceStatusPaid
	return nil
}

// ItemSnapshot records the inputs an invoice item was computed from, so a
// finalized invoice stays auditable after tariffs or readings change.
type ItemSnapshot struct {
	MeterID        *uuid.UUID `json:"meter_id,omitempty"`
	MeterSerial    string     `json:"meter_serial,omitempty"`
	Zone           string     `json:"zone,omitempty"`
	StartReadingID *uuid.UUID `json:"start_reading_id,omitempty"`
	StartValue     string     `json:"start_value,omitempty"`
	StartDate      string     `json:"start_date,omitempty"`
	EndReadingID   *uuid.UUID `json:"end_reading_id,omitempty"`
	EndValue       string     `json:"end_value,omitempty"`
	EndDate        string     `json:"end_date,omitempty"`
	TariffID       *uuid.UUID `json:"tariff_id,omitempty"`
	TariffName     string     `json:"tariff_name,omitempty"`
	BuildingID     *uuid.UUID `json:"building_id,omitempty"`
	ChargeType     string     `json:"charge_type,omitempty"`
}

// InvoiceItem is one priced line of an invoice.
// Amount = Quantity * Rate rounded half-up to currency precision at creation.
type InvoiceItem struct {
	shared.BaseEntity
	InvoiceID   uuid.UUID
	Description string
	Quantity    decimal.Decimal
	Unit        string
	Rate        decimal.Decimal
	Amount      valueobject.Money
	Snapshot    ItemSnapshot
}

// NewInvoiceItem creates an item pricing a quantity at a per-unit rate
func NewInvoiceItem(description string, quantity decimal.Decimal, unit string, rate decimal.Decimal, snapshot ItemSnapshot) InvoiceItem {
	amount := valueobject.NewMoneyEUR(quantity.Mul(rate)).RoundToCurrency()
	return InvoiceItem{
		BaseEntity:  shared.NewBaseEntity(),
		Description: description,
		Quantity:    quantity,
		Unit:        unit,
		Rate:        rate,
		Amount:      amount,
		Snapshot:    snapshot,
	}
}

// NewFixedInvoiceItem creates an item charging a period-level fixed amount
func NewFixedInvoiceItem(description string, amount valueobject.Money, snapshot ItemSnapshot) InvoiceItem {
	rounded := amount.RoundToCurrency()
	return InvoiceItem{
		BaseEntity:  shared.NewBaseEntity(),
		Description: description,
		Quantity:    decimal.NewFromInt(1),
		Unit:        "period",
		Rate:        rounded.Amount(),
		Amount:      rounded,
		Snapshot:    snapshot,
	}
}
