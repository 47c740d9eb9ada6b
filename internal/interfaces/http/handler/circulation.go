package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appbilling "github.com/cflow/backend/internal/application/billing"
	"github.com/cflow/backend/internal/domain/billing"
	"github.com/cflow/backend/internal/interfaces/http/dto"
	"github.com/cflow/backend/internal/interfaces/http/middleware"
)

// CirculationHandler handles shared circulation cost endpoints
type CirculationHandler struct {
	BaseHandler
	service *appbilling.CirculationService
	logger  *zap.Logger
}

// NewCirculationHandler creates a new CirculationHandler
func NewCirculationHandler(service *appbilling.CirculationService, logger *zap.Logger) *CirculationHandler {
	return &CirculationHandler{
		service: service,
		logger:  logger.Named("circulation_handler"),
	}
}

// RegisterRoutes registers all circulation routes
func (h *CirculationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	circulation := rg.Group("/circulation")
	{
		circulation.POST("/buildings/:id", h.Calculate)
		circulation.DELETE("/buildings/:id/cache", h.ClearBuildingCache)
		circulation.DELETE("/cache", h.ClearCache)
	}
}

// Calculate computes the building's circulation cost for a month, optionally
// distributed across its properties
func (h *CirculationHandler) Calculate(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid building ID")
		return
	}
	buildingID := uuid.MustParse(uri.ID)

	var req dto.CirculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	month, err := time.Parse(dto.MonthFormat, req.Month)
	if err != nil {
		h.BadRequest(c, "Invalid month, expected YYYY-MM")
		return
	}

	cost, err := h.service.Calculate(c.Request.Context(), buildingID, month)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := dto.CirculationResponse{
		BuildingID: buildingID.String(),
		Month:      month.Format(dto.MonthFormat),
		TotalCost:  cost.StringFixed(2),
		Currency:   string(cost.Currency()),
	}

	if req.DistributionMethod != "" {
		shares, err := h.service.Distribute(c.Request.Context(), buildingID, month,
			billing.DistributionMethod(req.DistributionMethod))
		if err != nil {
			h.HandleError(c, err)
			return
		}
		resp.Shares = make(map[string]string, len(shares))
		for propertyID, share := range shares {
			resp.Shares[propertyID.String()] = share.StringFixed(2)
		}
	}

	h.Success(c, resp)
}

// ClearBuildingCache evicts the building's cached circulation results
func (h *CirculationHandler) ClearBuildingCache(c *gin.Context) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid building ID")
		return
	}

	if err := h.service.ClearBuildingCache(c.Request.Context(), uuid.MustParse(uri.ID)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// ClearCache evicts all cached circulation results
func (h *CirculationHandler) ClearCache(c *gin.Context) {
	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
