package entity

import (
	"time"

	"gorm.io/gorm"
)

// PieceShape 板件形态
const (
	PieceShapeFull   = "FULL"   // 整板（采购/搬运单位，不保证尺寸等于标准板）
	PieceShapeOffcut = "OFFCUT" // 余料
)

// PieceStatus 板件状态
const (
	PieceStatusAvailable = "AVAILABLE"
	PieceStatusReserved  = "RESERVED"
	PieceStatusConsumed  = "CONSUMED"
	PieceStatusScrap     = "SCRAP"
)

// StockPiece 库存板件：同一尺寸/状态/位置的相同板件按 quantity 计数，不重复建行
type StockPiece struct {
	ID                string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	BoardTypeID       string     `json:"board_type_id" gorm:"type:uuid;not null;index"`
	Shape             string     `json:"shape" gorm:"size:10;not null;default:FULL"`
	Status            string     `json:"status" gorm:"size:12;not null;default:AVAILABLE;index"`
	WidthMM           int        `json:"width_mm" gorm:"not null"`
	HeightMM          int        `json:"height_mm" gorm:"not null"`
	Quantity          int        `json:"quantity" gorm:"not null;default:0"`
	Location          string     `json:"location" gorm:"size:128"`
	AccountingVisible bool       `json:"accounting_visible" gorm:"not null;default:true"`
	ProjectID         *string    `json:"project_id" gorm:"type:uuid;index"`
	Notes             string     `json:"notes" gorm:"type:text"` // 追加式操作痕迹，只增不改
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at" gorm:"index"`

	// 派生字段：永远由尺寸和数量计算，不落库
	AreaPerPieceM2 float64 `json:"area_per_piece_m2" gorm:"-"`
	AreaTotalM2    float64 `json:"area_total_m2" gorm:"-"`

	BoardType *BoardType `json:"board_type,omitempty" gorm:"foreignKey:BoardTypeID"`
}

func (StockPiece) TableName() string {
	return "stock_pieces"
}

// AreaPerPiece 单件面积（m²）
func (p *StockPiece) AreaPerPiece() float64 {
	return float64(p.WidthMM) * float64(p.HeightMM) / 1e6
}

// AreaTotal 行总面积（m²）
func (p *StockPiece) AreaTotal() float64 {
	return p.AreaPerPiece() * float64(p.Quantity)
}

// AfterFind 读取后填充派生面积
func (p *StockPiece) AfterFind(*gorm.DB) error {
	p.AreaPerPieceM2 = p.AreaPerPiece()
	p.AreaTotalM2 = p.AreaTotal()
	return nil
}

// IsNonStandard 尺寸与所属型号的标准板尺寸不一致（与 shape 无关）
func (p *StockPiece) IsNonStandard(board *BoardType) bool {
	return p.WidthMM != board.StdWidthMM || p.HeightMM != board.StdHeightMM
}

// PieceKey 去重键：相同键的板件只允许一行
type PieceKey struct {
	BoardTypeID       string
	Shape             string
	Status            string
	WidthMM           int
	HeightMM          int
	Location          string
	ProjectID         *string
	AccountingVisible bool
}

// Key 当前行的去重键
func (p *StockPiece) Key() PieceKey {
	return PieceKey{
		BoardTypeID:       p.BoardTypeID,
		Shape:             p.Shape,
		Status:            p.Status,
		WidthMM:           p.WidthMM,
		HeightMM:          p.HeightMM,
		Location:          p.Location,
		ProjectID:         p.ProjectID,
		AccountingVisible: p.AccountingVisible,
	}
}
