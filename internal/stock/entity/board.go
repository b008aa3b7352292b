package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BoardType 板材型号（HPL 标准板规格）
type BoardType struct {
	ID          string          `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code        string          `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name        string          `json:"name" gorm:"size:128;not null"`
	Brand       string          `json:"brand" gorm:"size:64"`
	ThicknessMM float64         `json:"thickness_mm" gorm:"type:decimal(6,2);not null;default:0"`
	StdWidthMM  int             `json:"std_width_mm" gorm:"not null;default:0"`
	StdHeightMM int             `json:"std_height_mm" gorm:"not null;default:0"`
	SalePrice   decimal.Decimal `json:"sale_price" gorm:"type:decimal(12,2);default:0"`
	FaceFinish  string          `json:"face_finish" gorm:"size:64"`
	FaceTexture string          `json:"face_texture" gorm:"size:64"`
	BackFinish  string          `json:"back_finish" gorm:"size:64"`
	BackTexture string          `json:"back_texture" gorm:"size:64"`
	Notes       string          `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	DeletedAt   *time.Time      `json:"deleted_at" gorm:"index"`
}

func (BoardType) TableName() string {
	return "stock_board_types"
}

// HasStandardSize 是否定义了标准整板尺寸
func (b *BoardType) HasStandardSize() bool {
	return b.StdWidthMM > 0 && b.StdHeightMM > 0
}

// StdAreaM2 标准整板面积（m²），未定义时为 0
func (b *BoardType) StdAreaM2() float64 {
	return float64(b.StdWidthMM) * float64(b.StdHeightMM) / 1e6
}
