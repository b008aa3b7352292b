package repository

import (
	"context"
	"errors"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"gorm.io/gorm"
)

// PieceRepository 板件库存仓库
type PieceRepository struct {
	db *gorm.DB
}

func NewPieceRepository(db *gorm.DB) *PieceRepository {
	return &PieceRepository{db: db}
}

// GetByID 根据ID查找板件
func (r *PieceRepository) GetByID(ctx context.Context, id string) (*entity.StockPiece, error) {
	var piece entity.StockPiece
	err := r.db.WithContext(ctx).
		Preload("BoardType").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&piece).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &piece, nil
}

// FindIdentical 按去重键精确匹配已有行，excludeID 非空时排除该行。
// 所有插入前都必须先探测；命中时调用方应改走 IncrementQuantity 而不是再建一行。
func (r *PieceRepository) FindIdentical(ctx context.Context, key entity.PieceKey, excludeID string) (*entity.StockPiece, error) {
	query := r.db.WithContext(ctx).
		Where("board_type_id = ? AND shape = ? AND status = ? AND width_mm = ? AND height_mm = ? AND location = ? AND accounting_visible = ? AND deleted_at IS NULL",
			key.BoardTypeID, key.Shape, key.Status, key.WidthMM, key.HeightMM, key.Location, key.AccountingVisible)

	if key.ProjectID == nil {
		query = query.Where("project_id IS NULL")
	} else {
		query = query.Where("project_id = ?", *key.ProjectID)
	}
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}

	var piece entity.StockPiece
	if err := query.First(&piece).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &piece, nil
}

// Create 插入新板件行，不做自动合并
func (r *PieceRepository) Create(ctx context.Context, piece *entity.StockPiece) error {
	return r.db.WithContext(ctx).Create(piece).Error
}

// IncrementQuantity 原子增减数量。条件更新保证并发下数量不会变负：
// 扣减不满足时零行受影响，返回 ErrInsufficientStock。
func (r *PieceRepository) IncrementQuantity(ctx context.Context, id string, delta int) error {
	res := r.db.WithContext(ctx).Model(&entity.StockPiece{}).
		Where("id = ? AND quantity + ? >= 0 AND deleted_at IS NULL", id, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

// SetQuantity 直接设置数量，负数视为调用方错误
func (r *PieceRepository) SetQuantity(ctx context.Context, id string, qty int) error {
	if qty < 0 {
		return ErrInsufficientStock
	}
	res := r.db.WithContext(ctx).Model(&entity.StockPiece{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("quantity", qty)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendNote 在备注尾部追加一行，已有内容永不改写
func (r *PieceRepository) AppendNote(ctx context.Context, id string, line string) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE stock_pieces
		 SET notes = CASE WHEN COALESCE(notes, '') = '' THEN ? ELSE notes || E'\n' || ? END,
		     updated_at = NOW()
		 WHERE id = ? AND deleted_at IS NULL`,
		line, line, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// 允许 UpdateFields 修改的列
var pieceUpdatableFields = map[string]bool{
	"status":     true,
	"project_id": true,
	"location":   true,
	"notes":      true,
}

// UpdateFields 部分更新，只改传入的列
func (r *PieceRepository) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	updates := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if pieceUpdatableFields[k] {
			updates[k] = v
		}
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&entity.StockPiece{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ForBoard 某型号的全部板件；visibility 非空时按入账可见性过滤
func (r *PieceRepository) ForBoard(ctx context.Context, boardTypeID string, visibility *bool) ([]entity.StockPiece, error) {
	query := r.db.WithContext(ctx).
		Where("board_type_id = ? AND deleted_at IS NULL", boardTypeID)
	if visibility != nil {
		query = query.Where("accounting_visible = ?", *visibility)
	}
	var pieces []entity.StockPiece
	err := query.Order("created_at DESC").Find(&pieces).Error
	return pieces, err
}

// ForProject 项目专属板件。只匹配结构化的 project_id 列，
// 不再做历史数据里备注文本匹配的兜底。
func (r *PieceRepository) ForProject(ctx context.Context, projectID string) ([]entity.StockPiece, error) {
	var pieces []entity.StockPiece
	err := r.db.WithContext(ctx).
		Preload("BoardType").
		Where("project_id = ? AND deleted_at IS NULL", projectID).
		Order("created_at DESC").
		Find(&pieces).Error
	return pieces, err
}

// CountForBoard 某型号的板件总张数（按数量累计）
func (r *PieceRepository) CountForBoard(ctx context.Context, boardTypeID string) (int64, error) {
	var result struct{ Total int64 }
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(quantity), 0) AS total
		FROM stock_pieces
		WHERE board_type_id = ? AND deleted_at IS NULL
	`, boardTypeID).Scan(&result).Error
	return result.Total, err
}

// PieceSuggestion 快速检索的返回行
type PieceSuggestion struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	RemainingQty int   `json:"remaining_quantity"`
}

// 检索范围
const (
	SearchScopeStock   = "stock"   // 公司可用库存
	SearchScopeProject = "project" // 某项目已预留
	SearchScopeRest    = "rest"    // 非入账余料
)

// Search 板件快速检索（typeahead），最多返回 limit 条
func (r *PieceRepository) Search(ctx context.Context, keyword, scope, projectID string, limit int) ([]PieceSuggestion, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	query := r.db.WithContext(ctx).Table("stock_pieces p").
		Select(`p.id,
			b.code || ' ' || p.width_mm || 'x' || p.height_mm || 'mm (' || p.location || ')' AS label,
			p.quantity AS remaining_qty`).
		Joins("JOIN stock_board_types b ON b.id = p.board_type_id").
		Where("p.deleted_at IS NULL AND p.quantity > 0")

	switch scope {
	case SearchScopeProject:
		query = query.Where("p.status = ? AND p.project_id = ?", entity.PieceStatusReserved, projectID)
	case SearchScopeRest:
		query = query.Where("p.status = ? AND p.accounting_visible = false", entity.PieceStatusAvailable)
	default:
		query = query.Where("p.status = ? AND p.accounting_visible = true", entity.PieceStatusAvailable)
	}

	if keyword != "" {
		kw := "%" + keyword + "%"
		query = query.Where("b.code ILIKE ? OR b.name ILIKE ? OR p.location ILIKE ?", kw, kw, kw)
	}

	var items []PieceSuggestion
	err := query.Order("b.code ASC, p.created_at DESC").Limit(limit).Scan(&items).Error
	return items, err
}
