package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appbilling "github.com/cflow/backend/internal/application/billing"
	"github.com/cflow/backend/internal/interfaces/http/dto"
	"github.com/cflow/backend/internal/interfaces/http/middleware"
)

// BillingHandler handles invoice generation and lifecycle endpoints
type BillingHandler struct {
	BaseHandler
	service *appbilling.BillingService
	logger  *zap.Logger
}

// NewBillingHandler creates a new BillingHandler
func NewBillingHandler(service *appbilling.BillingService, logger *zap.Logger) *BillingHandler {
	return &BillingHandler{
		service: service,
		logger:  logger.Named("billing_handler"),
	}
}

// GenerateInvoice creates a draft invoice for a renter and billing period
func (h *BillingHandler) GenerateInvoice(c *gin.Context) {
	var req dto.GenerateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	renterID, err := uuid.Parse(req.RenterID)
	if err != nil {
		h.BadRequest(c, "Invalid renter ID")
		return
	}
	periodStart, err := time.Parse(dto.DateFormat, req.PeriodStart)
	if err != nil {
		h.BadRequest(c, "Invalid period start, expected YYYY-MM-DD")
		return
	}
	periodEnd, err := time.Parse(dto.DateFormat, req.PeriodEnd)
	if err != nil {
		h.BadRequest(c, "Invalid period end, expected YYYY-MM-DD")
		return
	}
	if !periodEnd.After(periodStart) {
		h.BadRequest(c, "Period end must be after period start")
		return
	}

	result, err := h.service.GenerateInvoice(c.Request.Context(), renterID, periodStart, periodEnd)
	if err != nil {
		h.logger.Warn("Invoice generation failed",
			zap.String("renter_id", renterID.String()),
			zap.Error(err))
		h.HandleError(c, err)
		return
	}

	h.Created(c, dto.NewInvoiceResponse(result.Invoice, result.Warnings))
}

// FinalizeInvoice transitions a draft invoice to finalized
func (h *BillingHandler) FinalizeInvoice(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}
	invoiceID := uuid.MustParse(req.ID)

	if err := h.service.FinalizeInvoice(c.Request.Context(), invoiceID); err != nil {
		h.HandleError(c, err)
		return
	}

	invoice, err := h.service.GetInvoice(c.Request.Context(), invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewInvoiceResponse(invoice, nil))
}

// RegisterRoutes registers all invoice routes
func (h *BillingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.POST("/generate", h.GenerateInvoice)
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("/:id/finalize", h.FinalizeInvoice)
	}
}

// GetInvoice returns an invoice with its items
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return
	}

	invoice, err := h.service.GetInvoice(c.Request.Context(), uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewInvoiceResponse(invoice, nil))
}
