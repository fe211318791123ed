package domain

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	// EventProgress carries accumulating partial model output. High
	// frequency, observable but never persisted.
	EventProgress EventType = "progress"
	// EventStatus is a discrete lifecycle event, persisted in emission order.
	EventStatus EventType = "status"
	// EventResult carries the compiled report and ranked articles.
	EventResult EventType = "result"
	// EventDone terminates a stream. Exactly one per task.
	EventDone EventType = "done"
)

// Status event kinds carried in the "type" field of a status payload.
const (
	StatusPlanning     = "planning"
	StatusSearching    = "searching"
	StatusFound        = "found"
	StatusWebSearching = "web_searching"
	StatusWebFound     = "web_found"
	StatusReading      = "reading"
	StatusWebReading   = "web_reading"
	StatusWebRead      = "web_read"
	StatusAnalyzing    = "analyzing"
	StatusExpanding    = "expanding"
	StatusCompiling    = "compiling"
	StatusError        = "error"
)

// Event is one emission from a research run.
type Event struct {
	Type EventType       `json:"event"`
	Data json.RawMessage `json:"data"`
	At   time.Time       `json:"at"`
}

// NewEvent marshals payload into an Event. Marshal failures degrade to an
// empty object so emission never fails a run.
func NewEvent(eventType EventType, payload any) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		data = json.RawMessage(`{}`)
	}
	return Event{Type: eventType, Data: data, At: time.Now().UTC()}
}

// StatusEvent builds a status Event whose payload carries kind plus the
// given fields.
func StatusEvent(kind string, fields map[string]any) Event {
	payload := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		payload[key] = value
	}
	payload["type"] = kind
	return NewEvent(EventStatus, payload)
}

// ProgressEvent builds a progress Event with the accumulated text for a node.
func ProgressEvent(node, text string) Event {
	return NewEvent(EventProgress, map[string]any{"node": node, "text": text})
}

// DoneEvent builds the terminal event.
func DoneEvent() Event {
	return Event{Type: EventDone, Data: json.RawMessage(`{}`), At: time.Now().UTC()}
}
