package entity

import "time"

// Project 项目（只作为台账的引用数据，项目管理本身不在本服务内）
type Project struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Code      string     `json:"code" gorm:"size:50;not null;uniqueIndex"`
	Name      string     `json:"name" gorm:"size:128;not null"`
	Status    string     `json:"status" gorm:"size:20;not null;default:ACTIVE"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`

	ProductLines []ProductLine `json:"product_lines,omitempty" gorm:"foreignKey:ProjectID"`
}

func (Project) TableName() string {
	return "stock_projects"
}

// ProductLine 项目内的产品行，成本分摊的归属单位
type ProductLine struct {
	ID        string     `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	ProjectID string     `json:"project_id" gorm:"type:uuid;not null;index"`
	Name      string     `json:"name" gorm:"size:128;not null"`
	Position  int        `json:"position" gorm:"not null;default:0"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at" gorm:"index"`

	Project *Project `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
}

func (ProductLine) TableName() string {
	return "stock_product_lines"
}
