package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// OffcutRepository 非标尺寸板件报表（只读）
type OffcutRepository struct {
	db *gorm.DB
}

func NewOffcutRepository(db *gorm.DB) *OffcutRepository {
	return &OffcutRepository{db: db}
}

// OffcutRow 非标板件报表行。Ratio 为相对标准整板的面积比，
// 型号未定义标准尺寸时为空。
type OffcutRow struct {
	PieceID           string    `json:"piece_id"`
	BoardTypeID       string    `json:"board_type_id"`
	BoardCode         string    `json:"board_code"`
	BoardName         string    `json:"board_name"`
	Shape             string    `json:"shape"`
	Status            string    `json:"status"`
	WidthMM           int       `json:"width_mm"`
	HeightMM          int       `json:"height_mm"`
	StdWidthMM        int       `json:"std_width_mm"`
	StdHeightMM       int       `json:"std_height_mm"`
	Quantity          int       `json:"quantity"`
	Location          string    `json:"location"`
	AccountingVisible bool      `json:"accounting_visible"`
	AreaTotalM2       float64   `json:"area_total_m2"`
	Ratio             *float64  `json:"ratio"`
	CreatedAt         time.Time `json:"created_at"`
}

// ListNonStandard 列出所有尺寸与型号标准板不一致的板件。
// 盘点用报表：不区分状态和入账可见性，非入账余料也要出现。
func (r *OffcutRepository) ListNonStandard(ctx context.Context, limit int) ([]OffcutRow, error) {
	if limit <= 0 {
		limit = 200
	}
	var rows []OffcutRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT p.id AS piece_id, b.id AS board_type_id, b.code AS board_code, b.name AS board_name,
			p.shape, p.status, p.width_mm, p.height_mm,
			b.std_width_mm, b.std_height_mm,
			p.quantity, p.location, p.accounting_visible,
			p.width_mm::numeric * p.height_mm * p.quantity / 1000000.0 AS area_total_m2,
			CASE WHEN b.std_width_mm > 0 AND b.std_height_mm > 0
				THEN (p.width_mm::float * p.height_mm) / (b.std_width_mm::float * b.std_height_mm)
				ELSE NULL END AS ratio,
			p.created_at
		FROM stock_pieces p
		JOIN stock_board_types b ON b.id = p.board_type_id
		WHERE (p.width_mm <> b.std_width_mm OR p.height_mm <> b.std_height_mm)
			AND p.deleted_at IS NULL AND b.deleted_at IS NULL
		ORDER BY p.created_at DESC
		LIMIT ?
	`, limit).Scan(&rows).Error
	return rows, err
}
