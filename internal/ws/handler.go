package ws

import (
	"encoding/json"
	"log"

	socketio "github.com/googollee/go-socket.io"
)

// defaultPublisher is set during wiring so socket event handlers can reach
// the event log.
var defaultPublisher *Publisher

// SetPublisher registers the publisher used for event replay
func SetPublisher(p *Publisher) {
	defaultPublisher = p
}

const maxReplayEvents = 500

// handleRequestEvents replays task events a reconnecting client missed.
// The client sends the last event id it saw; everything newer is re-emitted
// in order.
func handleRequestEvents(s socketio.Conn, data interface{}) {
	if defaultPublisher == nil {
		return
	}

	var lastEventID int64
	if dataMap, ok := data.(map[string]interface{}); ok {
		if v, ok := dataMap["lastEventId"].(float64); ok {
			lastEventID = int64(v)
		}
	}

	events, err := defaultPublisher.incrementalEvents(lastEventID, maxReplayEvents)
	if err != nil {
		log.Printf("[WebSocket] Failed to query incremental events: %v", err)
		s.Emit("error", map[string]interface{}{"message": "failed to query events"})
		return
	}

	for _, event := range events {
		var payload interface{}
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			log.Printf("[WebSocket] Failed to unmarshal event payload: %v", err)
			continue
		}
		s.Emit("tasks:update", map[string]interface{}{
			"eventId": event.ID,
			"kind":    event.Kind,
			"data":    payload,
		})
	}

	s.Emit("tasks:synced", map[string]interface{}{
		"lastEventId": defaultPublisher.latestEventID(),
		"replayed":    len(events),
	})
}
