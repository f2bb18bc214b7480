package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/waiting/go/internal/models"
)

// Event types published for room lifecycle transitions
const (
	TypeRoomFinished      = "RoomFinished"
	TypeGenerationStarted = "GenerationStarted"
)

// Event is a room lifecycle event ready to publish
type Event struct {
	ID         uuid.UUID       `json:"id"`
	Room       string          `json:"room"`
	EventType  string          `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// RoomFinishedPayload is the payload for a RoomFinished event
type RoomFinishedPayload struct {
	Room       string            `json:"room"`
	FinishedAt time.Time         `json:"finished_at"`
	Standings  []models.Standing `json:"standings"`
}

// GenerationStartedPayload is the payload for a GenerationStarted event
type GenerationStartedPayload struct {
	Room      string    `json:"room"`
	SeatKey   string    `json:"seat_key"`
	StartedAt time.Time `json:"started_at"`
}

// NewEvent wraps a payload in an Event with a fresh ID
func NewEvent(eventType, room string, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:         uuid.New(),
		Room:       room,
		EventType:  eventType,
		Payload:    data,
		OccurredAt: at,
	}, nil
}
