package entity

import "time"

// ConsumptionMode 项目级台账条目的类型
const (
	ConsumptionModeReserved = "RESERVED" // 预留：已向项目承诺
	ConsumptionModeConsumed = "CONSUMED" // 耗用：已实际切割使用
)

// PieceConsumptionSource 产品级耗用来源
const (
	PieceSourceProject = "PROJECT" // 项目专属板件
	PieceSourceRest    = "REST"    // 非入账余料，仅项目内记录
)

// ConsumeMode 耗用粒度
const (
	ConsumeModeFull = "FULL"
	ConsumeModeHalf = "HALF"
)

// ProjectBoardConsumption 项目级板材耗用台账：按(项目,型号,类型)汇总，
// 不指向具体板件行，物理库存由板件操作单独维护
type ProjectBoardConsumption struct {
	ID          string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProjectID   string     `json:"project_id" gorm:"type:uuid;not null;index"`
	BoardTypeID string     `json:"board_type_id" gorm:"type:uuid;not null;index"`
	Mode        string     `json:"mode" gorm:"size:10;not null;default:RESERVED"`
	QtyBoards   float64    `json:"qty_boards" gorm:"type:decimal(10,2);not null;default:0"`
	QtyM2       float64    `json:"qty_m2" gorm:"type:decimal(12,4);not null;default:0"`
	Note        string     `json:"note" gorm:"type:text"`
	CreatedBy   string     `json:"created_by" gorm:"size:64"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at" gorm:"index"`

	Project   *Project   `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	BoardType *BoardType `json:"board_type,omitempty" gorm:"foreignKey:BoardTypeID"`

	Allocations []ConsumptionAllocation `json:"allocations,omitempty" gorm:"foreignKey:ConsumptionID"`
}

func (ProjectBoardConsumption) TableName() string {
	return "stock_project_consumptions"
}

// ConsumptionAllocation 把一条台账的面积拆分到产品行，编辑时整组替换
type ConsumptionAllocation struct {
	ID            string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ConsumptionID string    `json:"consumption_id" gorm:"type:uuid;not null;index"`
	ProductLineID string    `json:"product_line_id" gorm:"type:uuid;not null;index"`
	QtyM2         float64   `json:"qty_m2" gorm:"type:decimal(12,4);not null"`
	CreatedAt     time.Time `json:"created_at"`

	ProductLine *ProductLine `json:"product_line,omitempty" gorm:"foreignKey:ProductLineID"`
}

func (ConsumptionAllocation) TableName() string {
	return "stock_consumption_allocations"
}

// ProductPieceConsumption 产品行与具体板件之间的细粒度占用记录，
// RESERVED -> CONSUMED 单向流转
type ProductPieceConsumption struct {
	ID            string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProjectID     string     `json:"project_id" gorm:"type:uuid;not null;index"`
	ProductLineID string     `json:"product_line_id" gorm:"type:uuid;not null;index"`
	BoardTypeID   string     `json:"board_type_id" gorm:"type:uuid;not null;index"`
	PieceID       *string    `json:"piece_id" gorm:"type:uuid;index"` // REST 来源可以不指向库存行
	Source        string     `json:"source" gorm:"size:10;not null;default:PROJECT"`
	ConsumeMode   string     `json:"consume_mode" gorm:"size:10;not null;default:FULL"`
	Status        string     `json:"status" gorm:"size:12;not null;default:RESERVED;index"`
	ConsumedAt    *time.Time `json:"consumed_at"`
	CreatedBy     string     `json:"created_by" gorm:"size:64"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	Piece       *StockPiece  `json:"piece,omitempty" gorm:"foreignKey:PieceID"`
	BoardType   *BoardType   `json:"board_type,omitempty" gorm:"foreignKey:BoardTypeID"`
	ProductLine *ProductLine `json:"product_line,omitempty" gorm:"foreignKey:ProductLineID"`
}

func (ProductPieceConsumption) TableName() string {
	return "stock_piece_consumptions"
}
