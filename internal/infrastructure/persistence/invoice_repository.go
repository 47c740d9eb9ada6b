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

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Create persists the invoice and its items atomically. A still-draft invoice
// for the same (renter, period) is replaced; finalized invoices are never
// touched. Items are inserted in batches of 100.
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *billing.Invoice) error {
	var model models.InvoiceModel
	if err := model.FromDomain(invoice); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.InvoiceModel
		err := tx.
			Where("renter_id = ? AND billing_period_start = ? AND billing_period_end = ?",
				invoice.RenterID, invoice.BillingPeriodStart, invoice.BillingPeriodEnd).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.Status != billing.InvoiceStatusDraft {
				return shared.NewDomainError("INVOICE_ALREADY_FINALIZED",
					"An invoice for this renter and period has already been finalized")
			}
			if err := tx.Where("invoice_id = ?", existing.ID).
				Delete(&models.InvoiceItemModel{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&models.InvoiceModel{}, "id = ?", existing.ID).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// no prior invoice for the period
		default:
			return err
		}

		items := model.Items
		model.Items = nil
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.CreateInBatches(items, 100).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID finds an invoice with its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// Finalize transitions the invoice from draft to finalized with a conditional
// update, so of two concurrent callers only one sees RowsAffected > 0
func (r *GormInvoiceRepository) Finalize(ctx context.Context, invoiceID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND status = ?", invoiceID, billing.InvoiceStatusDraft).
		Updates(map[string]interface{}{
			"status":       billing.InvoiceStatusFinalized,
			"finalized_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		var model models.InvoiceModel
		if err := r.db.WithContext(ctx).
			Select("id", "status").
			First(&model, "id = ?", invoiceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return shared.ErrNotFound
			}
			return err
		}
		return billing.NewConcurrentFinalizationError(invoiceID, model.Status)
	}
	return nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
