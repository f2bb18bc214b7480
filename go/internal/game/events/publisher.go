package events

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Publisher delivers lifecycle events to whoever listens for them
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher writes events to the log. Used when no message bus is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	log.Info().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Str("room", event.Room).
		RawJSON("payload", event.Payload).
		Msg("room event")
	return nil
}

// Emit builds and publishes an event. Failures are logged, never returned:
// lifecycle events are advisory and must not fail the ledger operation.
func Emit(ctx context.Context, p Publisher, eventType, room string, at time.Time, payload any) {
	if p == nil {
		return
	}
	event, err := NewEvent(eventType, room, at, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Str("room", room).Msg("failed to build event")
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", eventType).
			Str("room", room).
			Msg("failed to publish event")
	}
}
