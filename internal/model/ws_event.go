package model

import (
	"time"

	"gorm.io/datatypes"
)

// Event kinds pushed to live clients
const (
	EventKindTaskUpdate  = "task_update"
	EventKindLog         = "log"
	EventKindScanUpdate  = "scan_update"
	EventKindCartSuccess = "cart_success"
)

// WSEvent represents a broadcast event stored in the database so that
// reconnecting clients can catch up incrementally.
type WSEvent struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic     string         `gorm:"type:varchar(64);not null;index:idx_topic_id" json:"topic"`
	Kind      string         `gorm:"type:enum('task_update','log','scan_update','cart_success');not null" json:"kind"`
	Payload   datatypes.JSON `gorm:"not null" json:"payload"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for WSEvent
func (WSEvent) TableName() string {
	return "ws_events"
}
