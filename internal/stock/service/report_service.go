package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/panelworks/panelstock/internal/stock/repository"
	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 看板汇总的缓存周期
const rollupCacheTTL = 30 * time.Second

const (
	cacheKeyThickness = "panelstock:rollup:thickness"
	cacheKeyTotals    = "panelstock:rollup:totals"
)

// ReportService 只读报表：型号汇总、厚度看板、非标余料清单及导出
type ReportService struct {
	db     *gorm.DB
	rdb    *redis.Client
	logger *zap.Logger
}

func NewReportService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger) *ReportService {
	return &ReportService{db: db, rdb: rdb, logger: logger}
}

// cacheGet 读缓存命中时反序列化到 dest
func (s *ReportService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.rdb == nil {
		return false
	}
	val, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), dest) == nil
}

func (s *ReportService) cacheSet(ctx context.Context, key string, v interface{}) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, data, rollupCacheTTL).Err(); err != nil {
		s.logger.Warn("rollup cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// TotalsFor 型号级库存汇总，全量查询走短缓存
func (s *ReportService) TotalsFor(ctx context.Context, boardTypeID string, thickness *float64) ([]repository.BoardStockTotal, error) {
	cacheable := boardTypeID == "" && thickness == nil
	if cacheable {
		var cached []repository.BoardStockTotal
		if s.cacheGet(ctx, cacheKeyTotals, &cached) {
			return cached, nil
		}
	}

	totals, err := repository.NewBoardRepository(s.db).TotalsFor(ctx, boardTypeID, thickness)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.cacheSet(ctx, cacheKeyTotals, totals)
	}
	return totals, nil
}

// AvailableByThickness 厚度维度看板汇总
func (s *ReportService) AvailableByThickness(ctx context.Context) ([]repository.ThicknessRollup, error) {
	var cached []repository.ThicknessRollup
	if s.cacheGet(ctx, cacheKeyThickness, &cached) {
		return cached, nil
	}

	rollups, err := repository.NewBoardRepository(s.db).AvailableByThickness(ctx)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, cacheKeyThickness, rollups)
	return rollups, nil
}

// ListNonStandard 非标板件清单
func (s *ReportService) ListNonStandard(ctx context.Context, limit int) ([]repository.OffcutRow, error) {
	return repository.NewOffcutRepository(s.db).ListNonStandard(ctx, limit)
}

// ExportNonStandard 非标板件清单导出为 xlsx
func (s *ReportService) ExportNonStandard(ctx context.Context, limit int) (*excelize.File, error) {
	rows, err := s.ListNonStandard(ctx, limit)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Offcuts"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Board", "Name", "Shape", "Status", "Width mm", "Height mm",
		"Std W", "Std H", "Qty", "Area m2", "Ratio", "Location", "Visible"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		values := []interface{}{
			row.BoardCode, row.BoardName, row.Shape, row.Status,
			row.WidthMM, row.HeightMM, row.StdWidthMM, row.StdHeightMM,
			row.Quantity, row.AreaTotalM2, nil, row.Location, row.AccountingVisible,
		}
		if row.Ratio != nil {
			values[10] = *row.Ratio
		}
		for j, v := range values {
			if v == nil {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}

// ExportTotals 型号级库存汇总导出为 xlsx
func (s *ReportService) ExportTotals(ctx context.Context) (*excelize.File, error) {
	totals, err := s.TotalsFor(ctx, "", nil)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	const sheet = "Stock"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"Code", "Name", "Thickness mm", "Available", "Full", "Offcut", "m2"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	for i, t := range totals {
		values := []interface{}{t.Code, t.Name, t.ThicknessMM,
			t.AvailableQty, t.AvailableFullQty, t.AvailableOffcutQty, t.AvailableM2}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheet, cell, v)
		}
	}
	return f, nil
}

// AuditTrail 某实体的审计事件
func (s *ReportService) AuditTrail(ctx context.Context, entityType, entityID string, page, pageSize int) ([]AuditPage, int64, error) {
	items, total, err := repository.NewAuditLogRepository(s.db).FindByEntity(ctx, entityType, entityID, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("audit trail: %w", err)
	}
	pages := make([]AuditPage, 0, len(items))
	for _, it := range items {
		pages = append(pages, AuditPage{
			ID:        it.ID,
			Action:    it.Action,
			Before:    it.Before,
			After:     it.After,
			Operator:  it.OperatorID,
			CreatedAt: it.CreatedAt,
		})
	}
	return pages, total, nil
}

// AuditPage 审计事件展示行
type AuditPage struct {
	ID        string      `json:"id"`
	Action    string      `json:"action"`
	Before    interface{} `json:"before"`
	After     interface{} `json:"after"`
	Operator  string      `json:"operator"`
	CreatedAt time.Time   `json:"created_at"`
}
