package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/panelworks/panelstock/internal/stock/repository"
	"github.com/panelworks/panelstock/internal/stock/service"
)

// PieceHandler 板件库存操作
type PieceHandler struct {
	svc *service.PieceService
}

func NewPieceHandler(svc *service.PieceService) *PieceHandler {
	return &PieceHandler{svc: svc}
}

// Inbound POST /pieces/inbound
func (h *PieceHandler) Inbound(c *gin.Context) {
	var req service.InboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	piece, err := h.svc.Inbound(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, piece)
}

// Reserve POST /pieces/reserve
func (h *PieceHandler) Reserve(c *gin.Context) {
	var req service.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	result, err := h.svc.Reserve(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, result)
}

// Return POST /piece-consumptions/:id/return
func (h *PieceHandler) Return(c *gin.Context) {
	if err := h.svc.Return(c.Request.Context(), c.Param("id"), GetUserID(c)); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// Scrap POST /pieces/scrap
func (h *PieceHandler) Scrap(c *gin.Context) {
	var req service.ScrapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	piece, err := h.svc.Scrap(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, piece)
}

// Get GET /pieces/:id
func (h *PieceHandler) Get(c *gin.Context) {
	piece, err := h.svc.GetPiece(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, piece)
}

// Update PATCH /pieces/:id
func (h *PieceHandler) Update(c *gin.Context) {
	var req service.UpdatePieceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	piece, err := h.svc.UpdatePiece(c.Request.Context(), c.Param("id"), req, GetUserID(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, piece)
}

// ListForBoard GET /boards/:id/pieces?visible=
func (h *PieceHandler) ListForBoard(c *gin.Context) {
	var visibility *bool
	if v := c.Query("visible"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			visibility = &b
		}
	}
	pieces, err := h.svc.ForBoard(c.Request.Context(), c.Param("id"), visibility)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: pieces})
}

// ListForProject GET /projects/:projectId/pieces
func (h *PieceHandler) ListForProject(c *gin.Context) {
	pieces, err := h.svc.ForProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: pieces})
}

// Search GET /pieces/search?q=&scope=&project_id=&limit=
func (h *PieceHandler) Search(c *gin.Context) {
	scope := c.Query("scope")
	projectID := c.Query("project_id")
	if scope == repository.SearchScopeProject && projectID == "" {
		BadRequest(c, "project_id is required for project scope")
		return
	}
	limit := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}
	items, err := h.svc.Search(c.Request.Context(),
		c.Query("q"), scope, projectID, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: items})
}
