package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// JSONB jsonb 字段
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.New("jsonb: unsupported scan type")
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, j)
}

// AuditLog 台账操作日志：台账侧只负责写入事件，不做任何回放
type AuditLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:36"`
	EntityType string `json:"entity_type" gorm:"size:50;not null;index:idx_audit_entity"` // piece/consumption/allocation/piece_consumption
	EntityID   string `json:"entity_id" gorm:"size:36;not null;index:idx_audit_entity"`
	Action     string `json:"action" gorm:"size:50;not null"` // create/update/delete/reserve/consume/scrap/replace_allocations

	Before JSONB `json:"before" gorm:"type:jsonb"`
	After  JSONB `json:"after" gorm:"type:jsonb"`

	OperatorID   string    `json:"operator_id" gorm:"size:64"`
	OperatorName string    `json:"operator_name" gorm:"size:100"`
	CreatedAt    time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "stock_audit_logs"
}
