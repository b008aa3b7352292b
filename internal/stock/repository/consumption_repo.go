package repository

import (
	"context"
	"errors"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"gorm.io/gorm"
)

// ConsumptionRepository 项目级板材耗用台账仓库
type ConsumptionRepository struct {
	db *gorm.DB
}

func NewConsumptionRepository(db *gorm.DB) *ConsumptionRepository {
	return &ConsumptionRepository{db: db}
}

// Create 新增台账条目。不触碰库存板件行：台账服务于项目成本口径，
// 物理库存由板件操作单独维护。
func (r *ConsumptionRepository) Create(ctx context.Context, c *entity.ProjectBoardConsumption) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// FindByID 根据ID查找台账条目（含分摊）
func (r *ConsumptionRepository) FindByID(ctx context.Context, id string) (*entity.ProjectBoardConsumption, error) {
	var c entity.ProjectBoardConsumption
	err := r.db.WithContext(ctx).
		Preload("BoardType").
		Preload("Allocations").
		Where("id = ? AND deleted_at IS NULL", id).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListForProject 某项目的台账条目
func (r *ConsumptionRepository) ListForProject(ctx context.Context, projectID string) ([]entity.ProjectBoardConsumption, error) {
	var items []entity.ProjectBoardConsumption
	err := r.db.WithContext(ctx).
		Preload("BoardType").
		Preload("Allocations").
		Where("project_id = ? AND deleted_at IS NULL", projectID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// Delete 删除台账条目及其全部分摊
func (r *ConsumptionRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("consumption_id = ?", id).
			Delete(&entity.ConsumptionAllocation{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.ProjectBoardConsumption{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ReservedTotalForBoard 某型号在所有项目里已预留的面积合计（m²），
// excludeProjectID 非空时排除该项目
func (r *ConsumptionRepository) ReservedTotalForBoard(ctx context.Context, boardTypeID, excludeProjectID string) (float64, error) {
	query := r.db.WithContext(ctx).Model(&entity.ProjectBoardConsumption{}).
		Select("COALESCE(SUM(qty_m2), 0)").
		Where("board_type_id = ? AND mode = ? AND deleted_at IS NULL",
			boardTypeID, entity.ConsumptionModeReserved)
	if excludeProjectID != "" {
		query = query.Where("project_id <> ?", excludeProjectID)
	}
	var total float64
	err := query.Scan(&total).Error
	return total, err
}

// ReplaceAllocations 整组替换一条台账的分摊：同一事务内先删后插，
// 并发读取方永远看不到半替换状态
func (r *ConsumptionRepository) ReplaceAllocations(ctx context.Context, consumptionID string, rows []entity.ConsumptionAllocation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("consumption_id = ?", consumptionID).
			Delete(&entity.ConsumptionAllocation{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for i := range rows {
			rows[i].ConsumptionID = consumptionID
		}
		return tx.Create(&rows).Error
	})
}

// ListAllocations 某条台账的分摊明细
func (r *ConsumptionRepository) ListAllocations(ctx context.Context, consumptionID string) ([]entity.ConsumptionAllocation, error) {
	var rows []entity.ConsumptionAllocation
	err := r.db.WithContext(ctx).
		Preload("ProductLine").
		Where("consumption_id = ?", consumptionID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

// GetProductLine 根据ID查找产品行
func (r *ConsumptionRepository) GetProductLine(ctx context.Context, id string) (*entity.ProductLine, error) {
	var line entity.ProductLine
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &line, nil
}

// ProductLineExists 产品行是否存在（分摊行的防御性过滤用）
func (r *ConsumptionRepository) ProductLineExists(ctx context.Context, productLineID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.ProductLine{}).
		Where("id = ? AND deleted_at IS NULL", productLineID).
		Count(&count).Error
	return count > 0, err
}
