package model

import "time"

// ScheduledTaskStatus is the lifecycle state of a scheduled trigger
type ScheduledTaskStatus string

const (
	ScheduledStatusScheduled ScheduledTaskStatus = "scheduled"
	ScheduledStatusTriggered ScheduledTaskStatus = "triggered"
	ScheduledStatusFailed    ScheduledTaskStatus = "failed"
)

// ScheduledTask starts a monitoring task automatically when a sale date
// arrives. Triggering goes through the normal supervisor admission path.
type ScheduledTask struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	GameID     string `gorm:"type:varchar(200);not null" json:"game_id"`
	GameTitle  string `gorm:"type:varchar(300);not null" json:"game_title"`
	ProductURL string `gorm:"type:varchar(500);not null" json:"product_url"`

	Quantity   int `gorm:"not null;default:4" json:"quantity"`
	NumThreads int `gorm:"not null;default:5" json:"num_threads"`

	// ScheduledDate is when the task should start, in UTC
	ScheduledDate time.Time `gorm:"not null" json:"scheduled_date"`

	Status ScheduledTaskStatus `gorm:"type:enum('scheduled','triggered','failed');not null;default:scheduled" json:"status"`
	// TaskID references the Task created when triggered
	TaskID *int64 `json:"task_id"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	TriggeredAt *time.Time `json:"triggered_at"`
}

// TableName specifies the table name for ScheduledTask
func (ScheduledTask) TableName() string {
	return "scheduled_tasks"
}
