package model

import "time"

// TaskStatus is the lifecycle state of a monitoring task
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
	TaskStatusStopped TaskStatus = "stopped"
)

// Task is a monitoring job for one product URL.
//
// While a task is running its runtime is the only writer of status, scan
// counters and vendor identifiers; the supervisor may only correct a stale
// "running" status when no runtime is actually active.
type Task struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	// Configuration
	ProductURL string `gorm:"type:varchar(500);not null" json:"product_url"`
	Quantity   int    `gorm:"not null;default:1" json:"quantity"`
	NumThreads int    `gorm:"not null;default:1" json:"num_threads"`

	// Live status
	Status           TaskStatus `gorm:"type:enum('pending','running','success','failed','stopped');not null;default:pending" json:"status"`
	ScanCount        int        `gorm:"not null;default:0" json:"scan_count"`
	TicketsAvailable int        `gorm:"not null;default:0" json:"tickets_available"`
	LastScanAt       *time.Time `json:"last_scan_at"`

	// Vendor identifiers, resolved once at startup and immutable afterwards
	EventID  string `gorm:"type:varchar(100)" json:"event_id"`
	TicketID string `gorm:"type:varchar(100)" json:"ticket_id"`

	ErrorMessage string `gorm:"type:text" json:"error_message"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// TableName specifies the table name for Task
func (Task) TableName() string {
	return "tasks"
}
