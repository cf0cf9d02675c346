package model

import "time"

// Log severity levels
const (
	LogLevelInfo    = "info"
	LogLevelWarning = "warning"
	LogLevelError   = "error"
	LogLevelSuccess = "success"
)

// TaskLog is an append-only activity record for a task. Rows are never
// mutated; they are only removed when their task is deleted.
type TaskLog struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	TaskID int64 `gorm:"index;not null" json:"task_id"`

	Level   string `gorm:"type:varchar(20);not null;default:info" json:"level"`
	Message string `gorm:"type:text;not null" json:"message"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name for TaskLog
func (TaskLog) TableName() string {
	return "task_logs"
}
