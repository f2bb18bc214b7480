package events

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/telemetry"
)

// MetricPublisher wraps a Publisher with publish metrics
type MetricPublisher struct {
	publisher Publisher
	clock     clockwork.Clock
}

func NewMetricPublisher(publisher Publisher, clock clockwork.Clock) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		clock:     clock,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event Event) error {
	start := p.clock.Now()

	err := p.publisher.Publish(ctx, event)

	telemetry.RecordEventPublished(ctx, event.EventType, err == nil, p.clock.Since(start))
	return err
}

var (
	_ Publisher = (*MetricPublisher)(nil)
	_ Publisher = (*LogPublisher)(nil)
	_ Publisher = (*JetStreamPublisher)(nil)
)

