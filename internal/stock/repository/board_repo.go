package repository

import (
	"context"
	"errors"
	"time"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"gorm.io/gorm"
)

// BoardRepository 板材型号仓库
type BoardRepository struct {
	db *gorm.DB
}

func NewBoardRepository(db *gorm.DB) *BoardRepository {
	return &BoardRepository{db: db}
}

// BoardListParams 型号列表查询参数
type BoardListParams struct {
	Keyword   string
	Thickness *float64
	Page      int
	Size      int
}

// FindAll 型号列表
func (r *BoardRepository) FindAll(ctx context.Context, params BoardListParams) ([]entity.BoardType, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.BoardType{}).Where("deleted_at IS NULL")
	if params.Keyword != "" {
		kw := "%" + params.Keyword + "%"
		query = query.Where("code ILIKE ? OR name ILIKE ? OR brand ILIKE ?", kw, kw, kw)
	}
	if params.Thickness != nil {
		query = query.Where("thickness_mm = ?", *params.Thickness)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var boards []entity.BoardType
	err := query.Order("code ASC").
		Offset((params.Page - 1) * params.Size).
		Limit(params.Size).
		Find(&boards).Error
	return boards, total, err
}

// FindByID 根据ID查找型号
func (r *BoardRepository) FindByID(ctx context.Context, id string) (*entity.BoardType, error) {
	var board entity.BoardType
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&board).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &board, nil
}

// Create 创建型号
func (r *BoardRepository) Create(ctx context.Context, board *entity.BoardType) error {
	return r.db.WithContext(ctx).Create(board).Error
}

// Update 更新型号
func (r *BoardRepository) Update(ctx context.Context, board *entity.BoardType) error {
	return r.db.WithContext(ctx).Save(board).Error
}

// Delete 软删除型号
func (r *BoardRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&entity.BoardType{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BoardStockTotal 按型号汇总的可用库存
type BoardStockTotal struct {
	BoardTypeID        string  `json:"board_type_id"`
	Code               string  `json:"code"`
	Name               string  `json:"name"`
	ThicknessMM        float64 `json:"thickness_mm"`
	AvailableQty       int     `json:"available_qty"`
	AvailableFullQty   int     `json:"available_full_qty"`
	AvailableOffcutQty int     `json:"available_offcut_qty"`
	AvailableM2        float64 `json:"available_m2"`
}

// TotalsFor 型号级库存汇总：只计 AVAILABLE 且入账可见的板件，
// 非入账余料永远不出现在公司口径里
func (r *BoardRepository) TotalsFor(ctx context.Context, boardTypeID string, thickness *float64) ([]BoardStockTotal, error) {
	query := r.db.WithContext(ctx).Table("stock_board_types b").
		Select(`b.id AS board_type_id, b.code, b.name, b.thickness_mm,
			COALESCE(SUM(p.quantity), 0) AS available_qty,
			COALESCE(SUM(p.quantity) FILTER (WHERE p.shape = 'FULL'), 0) AS available_full_qty,
			COALESCE(SUM(p.quantity) FILTER (WHERE p.shape = 'OFFCUT'), 0) AS available_offcut_qty,
			COALESCE(SUM(p.width_mm::numeric * p.height_mm * p.quantity / 1000000.0), 0) AS available_m2`).
		Joins(`LEFT JOIN stock_pieces p ON p.board_type_id = b.id
			AND p.status = 'AVAILABLE' AND p.accounting_visible AND p.deleted_at IS NULL`).
		Where("b.deleted_at IS NULL").
		Group("b.id, b.code, b.name, b.thickness_mm").
		Order("b.code ASC")

	if boardTypeID != "" {
		query = query.Where("b.id = ?", boardTypeID)
	}
	if thickness != nil {
		query = query.Where("b.thickness_mm = ?", *thickness)
	}

	var totals []BoardStockTotal
	err := query.Scan(&totals).Error
	return totals, err
}

// ThicknessRollup 按厚度汇总的可用库存
type ThicknessRollup struct {
	ThicknessMM float64 `json:"thickness_mm"`
	Qty         int     `json:"qty"`
	M2          float64 `json:"m2"`
}

// AvailableByThickness 厚度维度的看板汇总，口径与 TotalsFor 一致
func (r *BoardRepository) AvailableByThickness(ctx context.Context) ([]ThicknessRollup, error) {
	var rollups []ThicknessRollup
	err := r.db.WithContext(ctx).Raw(`
		SELECT b.thickness_mm,
			COALESCE(SUM(p.quantity), 0) AS qty,
			COALESCE(SUM(p.width_mm::numeric * p.height_mm * p.quantity / 1000000.0), 0) AS m2
		FROM stock_board_types b
		JOIN stock_pieces p ON p.board_type_id = b.id
		WHERE p.status = 'AVAILABLE' AND p.accounting_visible
			AND p.deleted_at IS NULL AND b.deleted_at IS NULL
		GROUP BY b.thickness_mm
		ORDER BY b.thickness_mm ASC
	`).Scan(&rollups).Error
	return rollups, err
}
