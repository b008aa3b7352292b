package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/panelworks/panelstock/internal/stock/repository"
	"github.com/panelworks/panelstock/internal/stock/service"
)

// BoardHandler 板材型号目录
type BoardHandler struct {
	boardSvc  *service.BoardService
	reportSvc *service.ReportService
}

func NewBoardHandler(boardSvc *service.BoardService, reportSvc *service.ReportService) *BoardHandler {
	return &BoardHandler{boardSvc: boardSvc, reportSvc: reportSvc}
}

// List GET /boards
func (h *BoardHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.BoardListParams{
		Keyword: c.Query("search"),
		Page:    page,
		Size:    pageSize,
	}
	if t := c.Query("thickness"); t != "" {
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			params.Thickness = &v
		}
	}

	boards, total, err := h.boardSvc.List(c.Request.Context(), params)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{
		Items: boards,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: (int(total) + pageSize - 1) / pageSize,
		},
	})
}

// Get GET /boards/:id
func (h *BoardHandler) Get(c *gin.Context) {
	board, err := h.boardSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, board)
}

// Create POST /boards
func (h *BoardHandler) Create(c *gin.Context) {
	var req service.BoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	board, err := h.boardSvc.Create(c.Request.Context(), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Created(c, board)
}

// Update PUT /boards/:id
func (h *BoardHandler) Update(c *gin.Context) {
	var req service.BoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	board, err := h.boardSvc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, board)
}

// Delete DELETE /boards/:id
func (h *BoardHandler) Delete(c *gin.Context) {
	if err := h.boardSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, nil)
}

// Totals GET /boards/totals?board_id=&thickness=
func (h *BoardHandler) Totals(c *gin.Context) {
	var thickness *float64
	if t := c.Query("thickness"); t != "" {
		if v, err := strconv.ParseFloat(t, 64); err == nil {
			thickness = &v
		}
	}
	totals, err := h.reportSvc.TotalsFor(c.Request.Context(), c.Query("board_id"), thickness)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: totals})
}
