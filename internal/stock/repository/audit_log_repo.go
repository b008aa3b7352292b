package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/panelworks/panelstock/internal/stock/entity"
	"gorm.io/gorm"
)

// AuditLogRepository 台账操作日志仓库
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create 写入一条审计事件
func (r *AuditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

// FindByEntity 查询某实体的审计事件
func (r *AuditLogRepository) FindByEntity(ctx context.Context, entityType, entityID string, page, pageSize int) ([]entity.AuditLog, int64, error) {
	var items []entity.AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditLog{}).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error
	return items, total, err
}

// Log 便捷写入，忽略错误（审计失败不阻断业务写入）
func (r *AuditLogRepository) Log(ctx context.Context, entityType, entityID, action string, before, after entity.JSONB, operatorID, operatorName string) {
	log := &entity.AuditLog{
		ID:           uuid.New().String(),
		EntityType:   entityType,
		EntityID:     entityID,
		Action:       action,
		Before:       before,
		After:        after,
		OperatorID:   operatorID,
		OperatorName: operatorName,
	}
	r.db.WithContext(ctx).Create(log)
}
