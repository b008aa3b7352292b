package repository

import (
	"context"
	"errors"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PieceConsumptionRepository 产品级板件占用仓库
type PieceConsumptionRepository struct {
	db *gorm.DB
}

func NewPieceConsumptionRepository(db *gorm.DB) *PieceConsumptionRepository {
	return &PieceConsumptionRepository{db: db}
}

// Create 新增占用记录
func (r *PieceConsumptionRepository) Create(ctx context.Context, pc *entity.ProductPieceConsumption) error {
	return r.db.WithContext(ctx).Create(pc).Error
}

// GetByID 根据ID查找占用记录
func (r *PieceConsumptionRepository) GetByID(ctx context.Context, id string) (*entity.ProductPieceConsumption, error) {
	var pc entity.ProductPieceConsumption
	err := r.db.WithContext(ctx).
		Preload("Piece").
		Preload("BoardType").
		Where("id = ?", id).
		First(&pc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &pc, nil
}

// Update 保存占用记录。跳过关联保存：PieceID 可能刚被指向新行，
// 预加载的旧关联不应把外键写回去。
func (r *PieceConsumptionRepository) Update(ctx context.Context, pc *entity.ProductPieceConsumption) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(pc).Error
}

// Delete 删除占用记录（撤销路径：板件调整由上层单独处理）
func (r *PieceConsumptionRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).
		Delete(&entity.ProductPieceConsumption{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListReserved 某项目某产品行的未耗用占用
func (r *PieceConsumptionRepository) ListReserved(ctx context.Context, projectID, productLineID string) ([]entity.ProductPieceConsumption, error) {
	var items []entity.ProductPieceConsumption
	err := r.db.WithContext(ctx).
		Preload("Piece").
		Preload("BoardType").
		Where("project_id = ? AND product_line_id = ? AND status = ?",
			projectID, productLineID, entity.PieceStatusReserved).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// ListAll 某产品行的全部占用记录
func (r *PieceConsumptionRepository) ListAll(ctx context.Context, productLineID string) ([]entity.ProductPieceConsumption, error) {
	var items []entity.ProductPieceConsumption
	err := r.db.WithContext(ctx).
		Preload("Piece").
		Preload("BoardType").
		Where("product_line_id = ?", productLineID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
