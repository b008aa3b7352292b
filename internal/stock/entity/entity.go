package entity

import "gorm.io/gorm"

// AutoMigrate 迁移全部库存台账表
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// 基础数据
		&BoardType{},
		&Project{},
		&ProductLine{},

		// 物理库存
		&StockPiece{},

		// 项目台账
		&ProjectBoardConsumption{},
		&ConsumptionAllocation{},
		&ProductPieceConsumption{},

		// 审计
		&AuditLog{},
	); err != nil {
		return err
	}

	// 去重键唯一索引：合并前的探测和插入之间有并发窗口，
	// 靠它兜底，冲突方回滚后改走合并路径。
	// project_id 可空，部分索引用 COALESCE 把 NULL 归一。
	return db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_stock_pieces_dedup_key
		ON stock_pieces (board_type_id, shape, status, width_mm, height_mm, location, COALESCE(project_id::text, ''), accounting_visible)
		WHERE deleted_at IS NULL`).Error
}
