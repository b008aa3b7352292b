package service

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidState 状态机不允许的流转（重复耗用、预留报废件等）
	ErrInvalidState = errors.New("invalid state transition")
	// ErrAllocationOverflow 分摊合计超出台账条目自身面积
	ErrAllocationOverflow = errors.New("allocation total exceeds consumption quantity")
)

// Services 服务集合
type Services struct {
	Board       *BoardService
	Piece       *PieceService
	Consumption *ConsumptionService
	Report      *ReportService
}

// NewServices 创建服务集合
func NewServices(db *gorm.DB, rdb *redis.Client, rates RateProvider, logger *zap.Logger) *Services {
	return &Services{
		Board:       NewBoardService(db, logger),
		Piece:       NewPieceService(db, logger),
		Consumption: NewConsumptionService(db, rates, logger),
		Report:      NewReportService(db, rdb, logger),
	}
}
