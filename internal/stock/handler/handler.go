package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/panelworks/panelstock/internal/middleware"
	"github.com/panelworks/panelstock/internal/stock/repository"
	"github.com/panelworks/panelstock/internal/stock/service"
)

// Handlers 处理器集合
type Handlers struct {
	Board       *BoardHandler
	Piece       *PieceHandler
	Consumption *ConsumptionHandler
	Report      *ReportHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(services *service.Services) *Handlers {
	return &Handlers{
		Board:       NewBoardHandler(services.Board, services.Report),
		Piece:       NewPieceHandler(services.Piece),
		Consumption: NewConsumptionHandler(services.Consumption),
		Report:      NewReportHandler(services.Report),
	}
}

// RegisterRoutes 注册全部台账路由
func (h *Handlers) RegisterRoutes(api *gin.RouterGroup) {
	boards := api.Group("/boards")
	{
		boards.GET("", h.Board.List)
		boards.POST("", middleware.RequireRole("stock_admin"), h.Board.Create)
		boards.GET("/totals", h.Board.Totals)
		boards.GET("/:id", h.Board.Get)
		boards.PUT("/:id", middleware.RequireRole("stock_admin"), h.Board.Update)
		boards.DELETE("/:id", middleware.RequireRole("stock_admin"), h.Board.Delete)
		boards.GET("/:id/pieces", h.Piece.ListForBoard)
	}

	pieces := api.Group("/pieces")
	{
		pieces.POST("/inbound", h.Piece.Inbound)
		pieces.POST("/reserve", h.Piece.Reserve)
		pieces.POST("/scrap", h.Piece.Scrap)
		pieces.GET("/search", h.Piece.Search)
		pieces.GET("/:id", h.Piece.Get)
		pieces.PATCH("/:id", h.Piece.Update)
	}

	projects := api.Group("/projects")
	{
		projects.GET("/:projectId/pieces", h.Piece.ListForProject)
		projects.GET("/:projectId/consumptions", h.Consumption.List)
		projects.GET("/:projectId/cost-summary", h.Consumption.CostSummary)
	}

	consumptions := api.Group("/consumptions")
	{
		consumptions.POST("", h.Consumption.Create)
		consumptions.GET("/:id", h.Consumption.Get)
		consumptions.DELETE("/:id", h.Consumption.Delete)
		consumptions.GET("/:id/allocations", h.Consumption.ListAllocations)
		consumptions.PUT("/:id/allocations", h.Consumption.ReplaceAllocations)
	}

	pieceConsumptions := api.Group("/piece-consumptions")
	{
		pieceConsumptions.POST("/rest", h.Consumption.ReserveRest)
		pieceConsumptions.POST("/:id/consume", h.Consumption.MarkConsumed)
		pieceConsumptions.POST("/:id/return", h.Piece.Return)
		pieceConsumptions.DELETE("/:id", h.Consumption.DeletePieceConsumption)
		pieceConsumptions.GET("", h.Consumption.ListPieceConsumptions)
	}

	reports := api.Group("/reports")
	{
		reports.GET("/offcuts", h.Report.Offcuts)
		reports.GET("/offcuts/export", h.Report.ExportOffcuts)
		reports.GET("/thickness", h.Report.Thickness)
		reports.GET("/totals/export", h.Report.ExportTotals)
		reports.GET("/audit/:entityType/:entityId", h.Report.AuditTrail)
	}
}

// === 响应辅助函数 ===

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// HandleServiceError 把领域错误映射到响应码
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		NotFound(c, err.Error())
	case errors.Is(err, repository.ErrInsufficientStock):
		Error(c, 40901, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		Error(c, 40902, err.Error())
	case errors.Is(err, service.ErrAllocationOverflow):
		Error(c, 40010, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}
	return page, pageSize
}
