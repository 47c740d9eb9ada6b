package dto

import (
	"time"

	"github.com/cflow/backend/internal/domain/billing"
)

// DateFormat is the wire format for billing period bounds
const DateFormat = "2006-01-02"

// MonthFormat is the wire format for circulation months
const MonthFormat = "2006-01"

// GenerateInvoiceRequest asks for a draft invoice covering one billing period
type GenerateInvoiceRequest struct {
	RenterID    string `json:"renter_id" binding:"required,uuid"`
	PeriodStart string `json:"period_start" binding:"required"`
	PeriodEnd   string `json:"period_end" binding:"required"`
}

// CirculationRequest asks for the shared circulation cost of one month
type CirculationRequest struct {
	Month              string `json:"month" binding:"required"`
	DistributionMethod string `json:"distribution_method" binding:"omitempty,oneof=equal area"`
}

// InvoiceItemResponse is one priced line of an invoice
type InvoiceItemResponse struct {
	ID          string               `json:"id"`
	Description string               `json:"description"`
	Quantity    string               `json:"quantity"`
	Unit        string               `json:"unit"`
	Rate        string               `json:"rate"`
	Amount      string               `json:"amount"`
	Snapshot    billing.ItemSnapshot `json:"snapshot"`
}

// InvoiceResponse is an invoice with its items
type InvoiceResponse struct {
	ID                 string                `json:"id"`
	RenterID           string                `json:"renter_id"`
	PropertyID         string                `json:"property_id"`
	BillingPeriodStart string                `json:"billing_period_start"`
	BillingPeriodEnd   string                `json:"billing_period_end"`
	DueDate            string                `json:"due_date"`
	Status             string                `json:"status"`
	TotalAmount        string                `json:"total_amount"`
	Currency           string                `json:"currency"`
	FinalizedAt        *time.Time            `json:"finalized_at,omitempty"`
	Items              []InvoiceItemResponse `json:"items"`
	Warnings           []string              `json:"warnings,omitempty"`
}

// NewInvoiceResponse maps a domain invoice onto the wire format
func NewInvoiceResponse(invoice *billing.Invoice, warnings []string) InvoiceResponse {
	items := make([]InvoiceItemResponse, len(invoice.Items))
	for i, item := range invoice.Items {
		items[i] = InvoiceItemResponse{
			ID:          item.ID.String(),
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			Unit:        item.Unit,
			Rate:        item.Rate.String(),
			Amount:      item.Amount.StringFixed(2),
			Snapshot:    item.Snapshot,
		}
	}
	return InvoiceResponse{
		ID:                 invoice.ID.String(),
		RenterID:           invoice.RenterID.String(),
		PropertyID:         invoice.PropertyID.String(),
		BillingPeriodStart: invoice.BillingPeriodStart.Format(DateFormat),
		BillingPeriodEnd:   invoice.BillingPeriodEnd.Format(DateFormat),
		DueDate:            invoice.DueDate.Format(DateFormat),
		Status:             string(invoice.Status),
		TotalAmount:        invoice.TotalAmount.StringFixed(2),
		Currency:           string(invoice.TotalAmount.Currency()),
		FinalizedAt:        invoice.FinalizedAt,
		Items:              items,
		Warnings:           warnings,
	}
}

// CirculationResponse is the shared circulation cost of a building month
type CirculationResponse struct {
	BuildingID string            `json:"building_id"`
	Month      string            `json:"month"`
	TotalCost  string            `json:"total_cost"`
	Currency   string            `json:"currency"`
	Shares     map[string]string `json:"shares,omitempty"`
}
