package service

import (
	"context"
	"fmt"
	"time"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"github.com/panelworks/panelstock/internal/stock/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 分摊合计允许的浮点误差
const allocationEpsilon = 1e-9

// RateProvider 工时费率来源。台账自身不存任何费率，
// 费率只透传给成本汇总的消费方。
type RateProvider interface {
	LaborRate() decimal.Decimal
	CNCRate() decimal.Decimal
}

// StaticRates 配置静态费率
type StaticRates struct {
	Labor decimal.Decimal
	CNC   decimal.Decimal
}

func (r StaticRates) LaborRate() decimal.Decimal { return r.Labor }
func (r StaticRates) CNCRate() decimal.Decimal   { return r.CNC }

// ConsumptionService 项目台账与分摊服务
type ConsumptionService struct {
	db     *gorm.DB
	rates  RateProvider
	logger *zap.Logger
}

func NewConsumptionService(db *gorm.DB, rates RateProvider, logger *zap.Logger) *ConsumptionService {
	return &ConsumptionService{db: db, rates: rates, logger: logger}
}

// CreateConsumptionRequest 台账条目创建请求
type CreateConsumptionRequest struct {
	ProjectID   string  `json:"project_id" binding:"required"`
	BoardTypeID string  `json:"board_type_id" binding:"required"`
	Mode        string  `json:"mode" binding:"required,oneof=RESERVED CONSUMED"`
	QtyBoards   float64 `json:"qty_boards" binding:"gte=0"`
	QtyM2       float64 `json:"qty_m2" binding:"required,gt=0"`
	Note        string  `json:"note"`
}

// CreateConsumption 新增台账条目。按规约不触碰板件行，
// 物理预留/耗用由板件操作单独完成。
func (s *ConsumptionService) CreateConsumption(ctx context.Context, req CreateConsumptionRequest, userID string) (*entity.ProjectBoardConsumption, error) {
	var created *entity.ProjectBoardConsumption
	err := s.db.Transaction(func(tx *gorm.DB) error {
		boards := repository.NewBoardRepository(tx)
		consumptions := repository.NewConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		if _, err := boards.FindByID(ctx, req.BoardTypeID); err != nil {
			return fmt.Errorf("board type: %w", err)
		}

		c := &entity.ProjectBoardConsumption{
			ProjectID:   req.ProjectID,
			BoardTypeID: req.BoardTypeID,
			Mode:        req.Mode,
			QtyBoards:   req.QtyBoards,
			QtyM2:       req.QtyM2,
			Note:        req.Note,
			CreatedBy:   userID,
		}
		if err := consumptions.Create(ctx, c); err != nil {
			return err
		}
		created = c
		audit.Log(ctx, "consumption", c.ID, "create", nil,
			entity.JSONB{"project_id": c.ProjectID, "board_type_id": c.BoardTypeID,
				"mode": c.Mode, "qty_m2": c.QtyM2}, userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("consumption created",
		zap.String("consumption_id", created.ID),
		zap.String("project_id", created.ProjectID),
		zap.Float64("qty_m2", created.QtyM2))
	return created, nil
}

// DeleteConsumption 删除台账条目及分摊
func (s *ConsumptionService) DeleteConsumption(ctx context.Context, id, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		consumptions := repository.NewConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		before, err := consumptions.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := consumptions.Delete(ctx, id); err != nil {
			return err
		}
		audit.Log(ctx, "consumption", id, "delete",
			entity.JSONB{"project_id": before.ProjectID, "qty_m2": before.QtyM2},
			nil, userID, "")
		return nil
	})
}

// GetConsumption 台账条目详情
func (s *ConsumptionService) GetConsumption(ctx context.Context, id string) (*entity.ProjectBoardConsumption, error) {
	return repository.NewConsumptionRepository(s.db).FindByID(ctx, id)
}

// ListConsumptions 某项目的台账条目
func (s *ConsumptionService) ListConsumptions(ctx context.Context, projectID string) ([]entity.ProjectBoardConsumption, error) {
	return repository.NewConsumptionRepository(s.db).ListForProject(ctx, projectID)
}

// ReservedTotalForBoard 某型号已承诺给其它项目的面积合计
func (s *ConsumptionService) ReservedTotalForBoard(ctx context.Context, boardTypeID, excludeProjectID string) (float64, error) {
	return repository.NewConsumptionRepository(s.db).ReservedTotalForBoard(ctx, boardTypeID, excludeProjectID)
}

// AllocationInput 分摊输入行
type AllocationInput struct {
	ProductLineID string  `json:"product_line_id" binding:"required"`
	QtyM2         float64 `json:"qty_m2"`
}

// ReplaceAllocations 整组替换分摊。qty<=0 或产品行不存在的输入行
// 静默丢弃（容忍半填写的表单）；保留行的合计超过台账条目面积时
// 整个替换被拒绝，旧分摊原样保留。
func (s *ConsumptionService) ReplaceAllocations(ctx context.Context, consumptionID string, inputs []AllocationInput, userID string) ([]entity.ConsumptionAllocation, error) {
	var result []entity.ConsumptionAllocation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		consumptions := repository.NewConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		consumption, err := consumptions.FindByID(ctx, consumptionID)
		if err != nil {
			return err
		}

		rows := make([]entity.ConsumptionAllocation, 0, len(inputs))
		total := 0.0
		for _, in := range inputs {
			if in.QtyM2 <= 0 {
				continue
			}
			ok, err := consumptions.ProductLineExists(ctx, in.ProductLineID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			rows = append(rows, entity.ConsumptionAllocation{
				ProductLineID: in.ProductLineID,
				QtyM2:         in.QtyM2,
			})
			total += in.QtyM2
		}

		if total > consumption.QtyM2+allocationEpsilon {
			return fmt.Errorf("allocations total %.4f m2 against %.4f m2: %w",
				total, consumption.QtyM2, ErrAllocationOverflow)
		}

		if err := consumptions.ReplaceAllocations(ctx, consumptionID, rows); err != nil {
			return err
		}
		result, err = consumptions.ListAllocations(ctx, consumptionID)
		if err != nil {
			return err
		}
		audit.Log(ctx, "allocation", consumptionID, "replace_allocations",
			entity.JSONB{"rows": len(consumption.Allocations)},
			entity.JSONB{"rows": len(result), "total_m2": total}, userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListAllocations 某条台账的分摊明细
func (s *ConsumptionService) ListAllocations(ctx context.Context, consumptionID string) ([]entity.ConsumptionAllocation, error) {
	return repository.NewConsumptionRepository(s.db).ListAllocations(ctx, consumptionID)
}

// ReserveRestRequest 非入账余料的产品级占用请求：
// 不指向任何库存行，只在项目内留痕
type ReserveRestRequest struct {
	ProjectID     string `json:"project_id" binding:"required"`
	ProductLineID string `json:"product_line_id" binding:"required"`
	BoardTypeID   string `json:"board_type_id" binding:"required"`
	ConsumeMode   string `json:"consume_mode"`
}

// ReserveRest 建立一条 REST 来源的占用记录
func (s *ConsumptionService) ReserveRest(ctx context.Context, req ReserveRestRequest, userID string) (*entity.ProductPieceConsumption, error) {
	mode := req.ConsumeMode
	if mode == "" {
		mode = entity.ConsumeModeFull
	}

	var created *entity.ProductPieceConsumption
	err := s.db.Transaction(func(tx *gorm.DB) error {
		consumptions := repository.NewConsumptionRepository(tx)
		links := repository.NewPieceConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		line, err := consumptions.GetProductLine(ctx, req.ProductLineID)
		if err != nil {
			return fmt.Errorf("product line: %w", err)
		}
		if line.ProjectID != req.ProjectID {
			return fmt.Errorf("product line %s does not belong to project %s", req.ProductLineID, req.ProjectID)
		}

		created = &entity.ProductPieceConsumption{
			ProjectID:     req.ProjectID,
			ProductLineID: req.ProductLineID,
			BoardTypeID:   req.BoardTypeID,
			Source:        entity.PieceSourceRest,
			ConsumeMode:   mode,
			Status:        entity.PieceStatusReserved,
			CreatedBy:     userID,
		}
		if err := links.Create(ctx, created); err != nil {
			return err
		}
		audit.Log(ctx, "piece_consumption", created.ID, "reserve_rest", nil,
			entity.JSONB{"project_id": req.ProjectID, "board_type_id": req.BoardTypeID},
			userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// MarkConsumed 占用记录 RESERVED -> CONSUMED。指向库存行的占用会
// 同事务把一件从 RESERVED 行移入 CONSUMED 行。重复耗用被拒绝。
func (s *ConsumptionService) MarkConsumed(ctx context.Context, id, userID string) (*entity.ProductPieceConsumption, error) {
	var updated *entity.ProductPieceConsumption
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pieces := repository.NewPieceRepository(tx)
		links := repository.NewPieceConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		link, err := links.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if link.Status != entity.PieceStatusReserved {
			return fmt.Errorf("consume a %s consumption: %w", link.Status, ErrInvalidState)
		}

		if link.PieceID != nil {
			reserved, err := pieces.GetByID(ctx, *link.PieceID)
			if err != nil {
				return err
			}
			note := noteLine(userID, "consumed 1 (%s)", link.ConsumeMode)
			consumed, err := movePieceQuantity(ctx, tx, reserved, 1,
				entity.PieceStatusConsumed, reserved.ProjectID, note)
			if err != nil {
				return err
			}
			link.PieceID = &consumed.ID
		}

		now := time.Now()
		link.Status = entity.PieceStatusConsumed
		link.ConsumedAt = &now
		if err := links.Update(ctx, link); err != nil {
			return err
		}
		updated = link
		audit.Log(ctx, "piece_consumption", id, "consume",
			entity.JSONB{"status": entity.PieceStatusReserved},
			entity.JSONB{"status": link.Status, "consumed_at": now}, userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("consumption marked consumed", zap.String("consumption_id", id))
	return updated, nil
}

// DeletePieceConsumption 删除占用记录（不动库存行，板件调整走板件操作）
func (s *ConsumptionService) DeletePieceConsumption(ctx context.Context, id, userID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		links := repository.NewPieceConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		before, err := links.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := links.Delete(ctx, id); err != nil {
			return err
		}
		audit.Log(ctx, "piece_consumption", id, "delete",
			entity.JSONB{"status": before.Status, "piece_id": before.PieceID},
			nil, userID, "")
		return nil
	})
}

// ListReserved 某项目某产品行的未耗用占用
func (s *ConsumptionService) ListReserved(ctx context.Context, projectID, productLineID string) ([]entity.ProductPieceConsumption, error) {
	return repository.NewPieceConsumptionRepository(s.db).ListReserved(ctx, projectID, productLineID)
}

// ListAllForLine 某产品行的全部占用记录
func (s *ConsumptionService) ListAllForLine(ctx context.Context, productLineID string) ([]entity.ProductPieceConsumption, error) {
	return repository.NewPieceConsumptionRepository(s.db).ListAll(ctx, productLineID)
}

// ProjectCostLine 项目成本汇总行
type ProjectCostLine struct {
	ConsumptionID string          `json:"consumption_id"`
	BoardCode     string          `json:"board_code"`
	Mode          string          `json:"mode"`
	QtyM2         float64         `json:"qty_m2"`
	MaterialCost  decimal.Decimal `json:"material_cost"`
}

// ProjectCostSummary 项目成本汇总
type ProjectCostSummary struct {
	ProjectID     string            `json:"project_id"`
	Lines         []ProjectCostLine `json:"lines"`
	MaterialTotal decimal.Decimal   `json:"material_total"`
	LaborRate     decimal.Decimal   `json:"labor_rate"`
	CNCRate       decimal.Decimal   `json:"cnc_rate"`
}

// CostSummary 按台账条目汇总项目材料成本（面积 × 型号售价），
// 工时费率只透传，不参与这里的计算
func (s *ConsumptionService) CostSummary(ctx context.Context, projectID string) (*ProjectCostSummary, error) {
	consumptions, err := repository.NewConsumptionRepository(s.db).ListForProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	summary := &ProjectCostSummary{
		ProjectID:     projectID,
		Lines:         make([]ProjectCostLine, 0, len(consumptions)),
		MaterialTotal: decimal.Zero,
		LaborRate:     s.rates.LaborRate(),
		CNCRate:       s.rates.CNCRate(),
	}
	for _, c := range consumptions {
		line := ProjectCostLine{
			ConsumptionID: c.ID,
			Mode:          c.Mode,
			QtyM2:         c.QtyM2,
		}
		if c.BoardType != nil {
			line.BoardCode = c.BoardType.Code
			line.MaterialCost = c.BoardType.SalePrice.
				Mul(decimal.NewFromFloat(c.QtyM2)).Round(2)
		}
		summary.Lines = append(summary.Lines, line)
		summary.MaterialTotal = summary.MaterialTotal.Add(line.MaterialCost)
	}
	return summary, nil
}
