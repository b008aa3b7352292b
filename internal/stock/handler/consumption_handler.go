package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/panelworks/panelstock/internal/stock/service"
)

// ConsumptionHandler 项目台账、分摊与产品级占用
type ConsumptionHandler struct {
	svc *service.ConsumptionService
}

func NewConsumptionHandler(svc *service.ConsumptionService) *ConsumptionHandler {
	return &ConsumptionHandler{svc: svc}
}

// Create POST /consumptions
func (h *ConsumptionHandler) Create(c *gin.Context) {
	var req service.CreateConsumptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	consumption, err := h.svc.CreateConsumption(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, consumption)
}

// Get GET /consumptions/:id
func (h *ConsumptionHandler) Get(c *gin.Context) {
	consumption, err := h.svc.GetConsumption(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, consumption)
}

// List GET /projects/:projectId/consumptions
func (h *ConsumptionHandler) List(c *gin.Context) {
	items, err := h.svc.ListConsumptions(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: items})
}

// Delete DELETE /consumptions/:id
func (h *ConsumptionHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteConsumption(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ReplaceAllocations PUT /consumptions/:id/allocations
func (h *ConsumptionHandler) ReplaceAllocations(c *gin.Context) {
	var req struct {
		Allocations []service.AllocationInput `json:"allocations"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	rows, err := h.svc.ReplaceAllocations(c.Request.Context(), c.Param("id"), req.Allocations, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: rows})
}

// ListAllocations GET /consumptions/:id/allocations
func (h *ConsumptionHandler) ListAllocations(c *gin.Context) {
	rows, err := h.svc.ListAllocations(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: rows})
}

// ReserveRest POST /piece-consumptions/rest
func (h *ConsumptionHandler) ReserveRest(c *gin.Context) {
	var req service.ReserveRestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	link, err := h.svc.ReserveRest(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, link)
}

// MarkConsumed POST /piece-consumptions/:id/consume
func (h *ConsumptionHandler) MarkConsumed(c *gin.Context) {
	link, err := h.svc.MarkConsumed(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, link)
}

// DeletePieceConsumption DELETE /piece-consumptions/:id
func (h *ConsumptionHandler) DeletePieceConsumption(c *gin.Context) {
	if err := h.svc.DeletePieceConsumption(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// ListPieceConsumptions GET /piece-consumptions?project_id=&product_line_id=&status=
func (h *ConsumptionHandler) ListPieceConsumptions(c *gin.Context) {
	projectID := c.Query("project_id")
	productLineID := c.Query("product_line_id")
	if productLineID == "" {
		BadRequest(c, "product_line_id is required")
		return
	}

	if c.Query("status") == "reserved" && projectID != "" {
		items, err := h.svc.ListReserved(c.Request.Context(), projectID, productLineID)
		if err != nil {
			HandleServiceError(c, err)
			return
		}
		Success(c, ListResponse{Items: items})
		return
	}

	items, err := h.svc.ListAllForLine(c.Request.Context(), productLineID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: items})
}

// CostSummary GET /projects/:projectId/cost-summary
func (h *ConsumptionHandler) CostSummary(c *gin.Context) {
	summary, err := h.svc.CostSummary(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, summary)
}
