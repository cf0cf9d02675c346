package ws

import (
	"encoding/json"
	"log"

	"gorm.io/gorm"

	"go_ticketbot/internal/model"
)

const taskTopic = "tasks"

// Publisher fans task engine events out to live clients. Events are first
// written to the database so reconnecting clients can catch up, then
// broadcast. Neither step may affect the caller: failures are logged and
// swallowed.
type Publisher struct {
	db *gorm.DB
}

// NewPublisher creates a publisher
func NewPublisher(db *gorm.DB) *Publisher {
	return &Publisher{db: db}
}

// Publish implements the engine's broadcaster contract
func (p *Publisher) Publish(kind string, payload interface{}) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[WebSocket] Failed to marshal payload: %v", err)
		return
	}

	event := model.WSEvent{
		Topic:   taskTopic,
		Kind:    kind,
		Payload: payloadJSON,
	}
	if err := p.db.Create(&event).Error; err != nil {
		log.Printf("[WebSocket] Failed to write event to database: %v", err)
		// Still broadcast; the live stream matters more than the replay log.
	}

	BroadcastToAll("tasks:update", map[string]interface{}{
		"eventId": event.ID,
		"kind":    kind,
		"data":    payload,
	})
}

// incrementalEvents retrieves events with id > lastEventID, oldest first
func (p *Publisher) incrementalEvents(lastEventID int64, maxCount int) ([]model.WSEvent, error) {
	var events []model.WSEvent
	err := p.db.
		Where("topic = ? AND id > ?", taskTopic, lastEventID).
		Order("id ASC").
		Limit(maxCount).
		Find(&events).Error
	return events, err
}

// latestEventID returns the newest event id, or 0 when there are none
func (p *Publisher) latestEventID() int64 {
	var event model.WSEvent
	err := p.db.Where("topic = ?", taskTopic).Order("id DESC").First(&event).Error
	if err != nil {
		return 0
	}
	return event.ID
}
