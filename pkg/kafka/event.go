package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope published for every storefront state change.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	SessionID  string          `json:"session_id"`
	AccountID  string          `json:"account_id,omitempty"`
	Source     string          `json:"source"`
	RequestID  string          `json:"request_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEvent creates a new event with a generated ID and current timestamp.
func NewEvent(eventType, sessionID, source string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		SessionID:  sessionID,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       dataBytes,
	}, nil
}

// Key partitions events by session so a consumer sees one session in order.
func (e *Event) Key() []byte {
	return []byte(e.SessionID)
}

// Marshal serializes the event to JSON bytes.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event from JSON bytes.
func UnmarshalEvent(data []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
