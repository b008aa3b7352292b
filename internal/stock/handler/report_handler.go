package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/panelworks/panelstock/internal/stock/service"
	"github.com/xuri/excelize/v2"
)

// ReportHandler 只读报表与审计
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Offcuts GET /reports/offcuts?limit=
func (h *ReportHandler) Offcuts(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil {
			limit = v
		}
	}
	rows, err := h.svc.ListNonStandard(c.Request.Context(), limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: rows})
}

// Thickness GET /reports/thickness
func (h *ReportHandler) Thickness(c *gin.Context) {
	rollups, err := h.svc.AvailableByThickness(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{Items: rollups})
}

// ExportOffcuts GET /reports/offcuts/export
func (h *ReportHandler) ExportOffcuts(c *gin.Context) {
	f, err := h.svc.ExportNonStandard(c.Request.Context(), 0)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	writeXLSX(c, f, fmt.Sprintf("offcuts-%s.xlsx", time.Now().Format("20060102")))
}

// ExportTotals GET /reports/totals/export
func (h *ReportHandler) ExportTotals(c *gin.Context) {
	f, err := h.svc.ExportTotals(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	writeXLSX(c, f, fmt.Sprintf("stock-totals-%s.xlsx", time.Now().Format("20060102")))
}

// AuditTrail GET /reports/audit/:entityType/:entityId
func (h *ReportHandler) AuditTrail(c *gin.Context) {
	page, pageSize := GetPagination(c)
	items, total, err := h.svc.AuditTrail(c.Request.Context(),
		c.Param("entityType"), c.Param("entityId"), page, pageSize)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	Success(c, ListResponse{
		Items: items,
		Pagination: &Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      int(total),
			TotalPages: (int(total) + pageSize - 1) / pageSize,
		},
	})
}

func writeXLSX(c *gin.Context, f *excelize.File, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
