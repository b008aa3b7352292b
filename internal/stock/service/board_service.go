package service

import (
	"context"
	"fmt"

	"github.com/panelworks/panelstock/internal/stock/entity"
	"github.com/panelworks/panelstock/internal/stock/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BoardService 板材型号目录服务
type BoardService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewBoardService(db *gorm.DB, logger *zap.Logger) *BoardService {
	return &BoardService{db: db, logger: logger}
}

// List 型号列表
func (s *BoardService) List(ctx context.Context, params repository.BoardListParams) ([]entity.BoardType, int64, error) {
	return repository.NewBoardRepository(s.db).FindAll(ctx, params)
}

// Get 型号详情
func (s *BoardService) Get(ctx context.Context, id string) (*entity.BoardType, error) {
	return repository.NewBoardRepository(s.db).FindByID(ctx, id)
}

// BoardRequest 型号创建/编辑请求
type BoardRequest struct {
	Code        string          `json:"code" binding:"required"`
	Name        string          `json:"name" binding:"required"`
	Brand       string          `json:"brand"`
	ThicknessMM float64         `json:"thickness_mm" binding:"gte=0"`
	StdWidthMM  int             `json:"std_width_mm" binding:"gte=0"`
	StdHeightMM int             `json:"std_height_mm" binding:"gte=0"`
	SalePrice   decimal.Decimal `json:"sale_price"`
	FaceFinish  string          `json:"face_finish"`
	FaceTexture string          `json:"face_texture"`
	BackFinish  string          `json:"back_finish"`
	BackTexture string          `json:"back_texture"`
	Notes       string          `json:"notes"`
}

// Create 新增型号
func (s *BoardService) Create(ctx context.Context, req BoardRequest) (*entity.BoardType, error) {
	board := &entity.BoardType{
		Code:        req.Code,
		Name:        req.Name,
		Brand:       req.Brand,
		ThicknessMM: req.ThicknessMM,
		StdWidthMM:  req.StdWidthMM,
		StdHeightMM: req.StdHeightMM,
		SalePrice:   req.SalePrice,
		FaceFinish:  req.FaceFinish,
		FaceTexture: req.FaceTexture,
		BackFinish:  req.BackFinish,
		BackTexture: req.BackTexture,
		Notes:       req.Notes,
	}
	if err := repository.NewBoardRepository(s.db).Create(ctx, board); err != nil {
		return nil, fmt.Errorf("create board type: %w", err)
	}
	s.logger.Info("board type created",
		zap.String("board_type_id", board.ID), zap.String("code", board.Code))
	return board, nil
}

// Update 管理性编辑型号
func (s *BoardService) Update(ctx context.Context, id string, req BoardRequest) (*entity.BoardType, error) {
	boards := repository.NewBoardRepository(s.db)
	board, err := boards.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	board.Code = req.Code
	board.Name = req.Name
	board.Brand = req.Brand
	board.ThicknessMM = req.ThicknessMM
	board.StdWidthMM = req.StdWidthMM
	board.StdHeightMM = req.StdHeightMM
	board.SalePrice = req.SalePrice
	board.FaceFinish = req.FaceFinish
	board.FaceTexture = req.FaceTexture
	board.BackFinish = req.BackFinish
	board.BackTexture = req.BackTexture
	board.Notes = req.Notes

	if err := boards.Update(ctx, board); err != nil {
		return nil, err
	}
	return board, nil
}

// Delete 删除型号。仍有板件引用时拒绝。
func (s *BoardService) Delete(ctx context.Context, id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		boards := repository.NewBoardRepository(tx)
		pieces := repository.NewPieceRepository(tx)

		count, err := pieces.CountForBoard(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("board type still referenced by %d pieces: %w", count, ErrInvalidState)
		}
		return boards.Delete(ctx, id)
	})
}
