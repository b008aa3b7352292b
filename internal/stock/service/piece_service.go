package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"github.com/panelworks/panelstock/internal/stock/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PieceService 板件库存服务：入库、预留、退回、报废。
// 每个操作是一个事务单元，数量增减只走条件更新，
// 并发预留同一批板件时不会双双成功。
type PieceService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPieceService(db *gorm.DB, logger *zap.Logger) *PieceService {
	return &PieceService{db: db, logger: logger}
}

// noteLine 备注行统一带操作时间和操作人
func noteLine(userID, format string, args ...interface{}) string {
	return fmt.Sprintf("%s [%s] %s",
		time.Now().Format("2006-01-02 15:04"), userID, fmt.Sprintf(format, args...))
}

// mergeQuantity 按去重键把 qty 件并入已有行，未命中就新建一行。
// 探测和插入之间有并发窗口，靠 stock_pieces 的去重键唯一索引兜底：
// 并发事务抢先插入同键行时回滚到保存点，改走合并路径重试。
// 必须在事务内调用。merged 表示并入了已有行。
func mergeQuantity(ctx context.Context, tx *gorm.DB, template *entity.StockPiece, qty int, line string) (piece *entity.StockPiece, merged bool, err error) {
	pieces := repository.NewPieceRepository(tx)
	key := template.Key()
	for {
		existing, err := pieces.FindIdentical(ctx, key, "")
		if err == nil {
			if err := pieces.IncrementQuantity(ctx, existing.ID, qty); err != nil {
				return nil, false, err
			}
			if err := pieces.AppendNote(ctx, existing.ID, line); err != nil {
				return nil, false, err
			}
			piece, err = pieces.GetByID(ctx, existing.ID)
			return piece, true, err
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, err
		}

		row := *template
		row.ID = ""
		row.Quantity = qty
		row.Notes = line
		row.CreatedAt = time.Time{}
		row.UpdatedAt = time.Time{}
		row.DeletedAt = nil
		row.BoardType = nil

		tx.SavePoint("merge_piece")
		if err := pieces.Create(ctx, &row); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				tx.RollbackTo("merge_piece")
				continue
			}
			return nil, false, err
		}
		// 回读让派生面积字段生效
		piece, err = pieces.GetByID(ctx, row.ID)
		return piece, false, err
	}
}

// movePieceQuantity 把 qty 件从一行移动到目标状态行：
// 原子扣减来源行，再按去重键合并或新建目标行。必须在事务内调用。
func movePieceQuantity(ctx context.Context, tx *gorm.DB, source *entity.StockPiece, qty int, toStatus string, toProjectID *string, line string) (*entity.StockPiece, error) {
	pieces := repository.NewPieceRepository(tx)

	if err := pieces.IncrementQuantity(ctx, source.ID, -qty); err != nil {
		return nil, err
	}
	if err := pieces.AppendNote(ctx, source.ID, line); err != nil {
		return nil, err
	}

	template := *source
	template.Status = toStatus
	template.ProjectID = toProjectID
	target, _, err := mergeQuantity(ctx, tx, &template, qty, line)
	return target, err
}

// InboundRequest 入库请求
type InboundRequest struct {
	BoardTypeID       string  `json:"board_type_id" binding:"required"`
	Shape             string  `json:"shape"`
	WidthMM           int     `json:"width_mm" binding:"required,gt=0"`
	HeightMM          int     `json:"height_mm" binding:"required,gt=0"`
	Quantity          int     `json:"quantity" binding:"required,gt=0"`
	Location          string  `json:"location"`
	AccountingVisible *bool   `json:"accounting_visible"`
	ProjectID         *string `json:"project_id"`
	Note              string  `json:"note"`
}

// Inbound 入库。去重键命中已有行时累加数量，不新建行。
func (s *PieceService) Inbound(ctx context.Context, req InboundRequest, userID string) (*entity.StockPiece, error) {
	shape := req.Shape
	if shape == "" {
		shape = entity.PieceShapeFull
	}
	if shape != entity.PieceShapeFull && shape != entity.PieceShapeOffcut {
		return nil, fmt.Errorf("unknown piece shape %q", shape)
	}
	visible := true
	if req.AccountingVisible != nil {
		visible = *req.AccountingVisible
	}

	var result *entity.StockPiece
	err := s.db.Transaction(func(tx *gorm.DB) error {
		boards := repository.NewBoardRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		if _, err := boards.FindByID(ctx, req.BoardTypeID); err != nil {
			return fmt.Errorf("board type: %w", err)
		}

		line := noteLine(userID, "inbound +%d", req.Quantity)
		if req.Note != "" {
			line += " (" + req.Note + ")"
		}

		template := &entity.StockPiece{
			BoardTypeID:       req.BoardTypeID,
			Shape:             shape,
			Status:            entity.PieceStatusAvailable,
			WidthMM:           req.WidthMM,
			HeightMM:          req.HeightMM,
			Location:          req.Location,
			AccountingVisible: visible,
			ProjectID:         req.ProjectID,
		}
		merged := false
		var err error
		result, merged, err = mergeQuantity(ctx, tx, template, req.Quantity, line)
		if err != nil {
			return err
		}

		action := "inbound_create"
		if merged {
			action = "inbound_merge"
		}
		audit.Log(ctx, "piece", result.ID, action, nil,
			entity.JSONB{"quantity": result.Quantity, "board_type_id": result.BoardTypeID}, userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("piece inbound",
		zap.String("piece_id", result.ID),
		zap.String("board_type_id", result.BoardTypeID),
		zap.Int("quantity", req.Quantity))
	return result, nil
}

// ReserveRequest 预留请求
type ReserveRequest struct {
	PieceID       string `json:"piece_id" binding:"required"`
	ProjectID     string `json:"project_id" binding:"required"`
	ProductLineID string `json:"product_line_id" binding:"required"`
	Quantity      int    `json:"quantity"`
	ConsumeMode   string `json:"consume_mode"`
}

// ReserveResult 预留结果：目标库存行和产品级占用记录
type ReserveResult struct {
	Piece        *entity.StockPiece                `json:"piece"`
	Consumptions []*entity.ProductPieceConsumption `json:"consumptions"`
}

// Reserve 把若干件从可用库存预留给项目的某个产品行。
// 每预留一件建一条产品级占用记录，耗用和退回都按单件走，
// 保证 RESERVED 行的数量始终等于指向它的占用记录数。
func (s *PieceService) Reserve(ctx context.Context, req ReserveRequest, userID string) (*ReserveResult, error) {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	mode := req.ConsumeMode
	if mode == "" {
		mode = entity.ConsumeModeFull
	}
	if mode != entity.ConsumeModeFull && mode != entity.ConsumeModeHalf {
		return nil, fmt.Errorf("unknown consume mode %q", mode)
	}

	var result ReserveResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pieces := repository.NewPieceRepository(tx)
		consumptions := repository.NewConsumptionRepository(tx)
		links := repository.NewPieceConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		source, err := pieces.GetByID(ctx, req.PieceID)
		if err != nil {
			return err
		}
		if source.Status != entity.PieceStatusAvailable {
			return fmt.Errorf("reserve from %s piece: %w", source.Status, ErrInvalidState)
		}

		line, err := consumptions.GetProductLine(ctx, req.ProductLineID)
		if err != nil {
			return fmt.Errorf("product line: %w", err)
		}
		if line.ProjectID != req.ProjectID {
			return fmt.Errorf("product line %s does not belong to project %s", req.ProductLineID, req.ProjectID)
		}

		note := noteLine(userID, "reserved %d for project %s", qty, req.ProjectID)
		reserved, err := movePieceQuantity(ctx, tx, source, qty,
			entity.PieceStatusReserved, &req.ProjectID, note)
		if err != nil {
			return err
		}

		created := make([]*entity.ProductPieceConsumption, 0, qty)
		for i := 0; i < qty; i++ {
			link := &entity.ProductPieceConsumption{
				ProjectID:     req.ProjectID,
				ProductLineID: req.ProductLineID,
				BoardTypeID:   source.BoardTypeID,
				PieceID:       &reserved.ID,
				Source:        entity.PieceSourceProject,
				ConsumeMode:   mode,
				Status:        entity.PieceStatusReserved,
				CreatedBy:     userID,
			}
			if err := links.Create(ctx, link); err != nil {
				return err
			}
			created = append(created, link)
		}

		result.Piece = reserved
		result.Consumptions = created
		audit.Log(ctx, "piece_consumption", created[0].ID, "reserve", nil,
			entity.JSONB{"piece_id": reserved.ID, "project_id": req.ProjectID, "quantity": qty},
			userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("piece reserved",
		zap.String("source_piece_id", req.PieceID),
		zap.String("project_id", req.ProjectID),
		zap.Int("quantity", qty))
	return &result, nil
}

// Return 撤销一条产品级占用：板件退回可用库存，占用记录删除
func (s *PieceService) Return(ctx context.Context, linkID, userID string) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pieces := repository.NewPieceRepository(tx)
		links := repository.NewPieceConsumptionRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		link, err := links.GetByID(ctx, linkID)
		if err != nil {
			return err
		}
		if link.Status != entity.PieceStatusReserved {
			return fmt.Errorf("return a %s consumption: %w", link.Status, ErrInvalidState)
		}

		if link.PieceID != nil {
			reserved, err := pieces.GetByID(ctx, *link.PieceID)
			if err != nil {
				return err
			}
			note := noteLine(userID, "returned 1 to available stock")
			if _, err := movePieceQuantity(ctx, tx, reserved, 1,
				entity.PieceStatusAvailable, nil, note); err != nil {
				return err
			}
		}

		if err := links.Delete(ctx, linkID); err != nil {
			return err
		}
		audit.Log(ctx, "piece_consumption", linkID, "return",
			entity.JSONB{"status": link.Status, "piece_id": link.PieceID}, nil, userID, "")
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("reservation returned", zap.String("consumption_id", linkID))
	return nil
}

// ScrapRequest 报废请求
type ScrapRequest struct {
	PieceID  string `json:"piece_id" binding:"required"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}

// Scrap 把若干件移入报废行。只有可用库存能直接报废：
// 预留件还挂着产品级占用记录，先退回再报废。
func (s *PieceService) Scrap(ctx context.Context, req ScrapRequest, userID string) (*entity.StockPiece, error) {
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}

	var scrapped *entity.StockPiece
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pieces := repository.NewPieceRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		source, err := pieces.GetByID(ctx, req.PieceID)
		if err != nil {
			return err
		}
		if source.Status != entity.PieceStatusAvailable {
			return fmt.Errorf("scrap a %s piece: %w", source.Status, ErrInvalidState)
		}

		note := noteLine(userID, "scrapped %d", qty)
		if req.Reason != "" {
			note += " (" + req.Reason + ")"
		}
		scrapped, err = movePieceQuantity(ctx, tx, source, qty,
			entity.PieceStatusScrap, source.ProjectID, note)
		if err != nil {
			return err
		}
		audit.Log(ctx, "piece", req.PieceID, "scrap",
			entity.JSONB{"status": source.Status},
			entity.JSONB{"scrap_piece_id": scrapped.ID, "quantity": qty}, userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("piece scrapped",
		zap.String("piece_id", req.PieceID), zap.Int("quantity", qty))
	return scrapped, nil
}

// UpdatePieceRequest 板件部分更新请求
type UpdatePieceRequest struct {
	Location *string `json:"location"`
	Note     string  `json:"note"`
}

// UpdatePiece 修改位置等字段，备注只追加
func (s *PieceService) UpdatePiece(ctx context.Context, id string, req UpdatePieceRequest, userID string) (*entity.StockPiece, error) {
	var updated *entity.StockPiece
	err := s.db.Transaction(func(tx *gorm.DB) error {
		pieces := repository.NewPieceRepository(tx)
		audit := repository.NewAuditLogRepository(tx)

		before, err := pieces.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if req.Location != nil {
			if err := pieces.UpdateFields(ctx, id, map[string]interface{}{
				"location": *req.Location,
			}); err != nil {
				return err
			}
			if err := pieces.AppendNote(ctx, id,
				noteLine(userID, "moved %s -> %s", before.Location, *req.Location)); err != nil {
				return err
			}
		}
		if req.Note != "" {
			if err := pieces.AppendNote(ctx, id, noteLine(userID, "%s", req.Note)); err != nil {
				return err
			}
		}

		updated, err = pieces.GetByID(ctx, id)
		if err != nil {
			return err
		}
		audit.Log(ctx, "piece", id, "update",
			entity.JSONB{"location": before.Location},
			entity.JSONB{"location": updated.Location}, userID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetPiece 板件详情
func (s *PieceService) GetPiece(ctx context.Context, id string) (*entity.StockPiece, error) {
	return repository.NewPieceRepository(s.db).GetByID(ctx, id)
}

// ForBoard 某型号的板件列表
func (s *PieceService) ForBoard(ctx context.Context, boardTypeID string, visibility *bool) ([]entity.StockPiece, error) {
	return repository.NewPieceRepository(s.db).ForBoard(ctx, boardTypeID, visibility)
}

// ForProject 某项目的板件列表
func (s *PieceService) ForProject(ctx context.Context, projectID string) ([]entity.StockPiece, error) {
	return repository.NewPieceRepository(s.db).ForProject(ctx, projectID)
}

// Search 板件快速检索
func (s *PieceService) Search(ctx context.Context, keyword, scope, projectID string, limit int) ([]repository.PieceSuggestion, error) {
	return repository.NewPieceRepository(s.db).Search(ctx, keyword, scope, projectID, limit)
}
