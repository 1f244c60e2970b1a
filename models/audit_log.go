package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records one state transition or mutation.
type AuditLog struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	EntityType  string            `gorm:"type:varchar(32);not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID    string            `gorm:"type:varchar(64);not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Action      string            `gorm:"type:varchar(64);not null" json:"action"`
	UserID      uint              `json:"user_id"`
	UserName    string            `json:"user_name"`
	Description string            `json:"description"`
	Changes     datatypes.JSONMap `json:"changes,omitempty"`
	CreatedAt   time.Time         `gorm:"index" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
