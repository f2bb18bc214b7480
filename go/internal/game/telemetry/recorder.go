// Package telemetry records ledger metrics against the global OTel
// MeterProvider. Until a provider is installed the instruments are no-ops.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/mcdev12/waiting"

type instruments struct {
	reportsTotal      metric.Int64Counter
	creditedSeconds   metric.Float64Counter
	suppressedSeconds metric.Float64Counter
	rolloversTotal    metric.Int64Counter
	quitsTotal        metric.Int64Counter
	roomsFinished     metric.Int64Counter
	roomsPurged       metric.Int64Counter
	seatsIssued       metric.Int64Counter
	eventsPublished   metric.Int64Counter
	publishDuration   metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     instruments
)

// initInstruments registers the instruments against the current global
// MeterProvider. Called lazily on first use.
func initInstruments() {
	instOnce.Do(func() {
		m := otel.GetMeterProvider().Meter(meterName)

		inst.reportsTotal, _ = m.Int64Counter("waiting.dwell.reports.total",
			metric.WithDescription("Dwell reports received, by outcome"),
		)
		inst.creditedSeconds, _ = m.Float64Counter("waiting.dwell.credited_seconds",
			metric.WithDescription("Seconds credited to dwell records"),
			metric.WithUnit("s"),
		)
		inst.suppressedSeconds, _ = m.Float64Counter("waiting.dwell.suppressed_seconds",
			metric.WithDescription("Claimed seconds withheld by the anti-cheat budget"),
			metric.WithUnit("s"),
		)
		inst.rolloversTotal, _ = m.Int64Counter("waiting.room.rollovers.total",
			metric.WithDescription("Finished rooms restarted by a new report"),
		)
		inst.quitsTotal, _ = m.Int64Counter("waiting.room.quits.total",
			metric.WithDescription("Quit requests handled"),
		)
		inst.roomsFinished, _ = m.Int64Counter("waiting.room.finished.total",
			metric.WithDescription("Rooms marked finished"),
		)
		inst.roomsPurged, _ = m.Int64Counter("waiting.retention.purged.total",
			metric.WithDescription("Finished rooms purged by retention"),
		)
		inst.seatsIssued, _ = m.Int64Counter("waiting.seat.issued.total",
			metric.WithDescription("Seat identities issued"),
		)
		inst.eventsPublished, _ = m.Int64Counter("waiting.events.published.total",
			metric.WithDescription("Room events handed to the publisher, by type and status"),
		)
		inst.publishDuration, _ = m.Float64Histogram("waiting.events.publish.duration",
			metric.WithDescription("Time spent publishing one room event"),
			metric.WithUnit("ms"),
		)
	})
}

// RecordReport records one dwell report and how its claim was settled.
func RecordReport(ctx context.Context, outcome string, credited, suppressed float64) {
	initInstruments()
	inst.reportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	if credited > 0 {
		inst.creditedSeconds.Add(ctx, credited)
	}
	if suppressed > 0 {
		inst.suppressedSeconds.Add(ctx, suppressed)
	}
}

// RecordRollover records a finished room starting a new generation.
func RecordRollover(ctx context.Context) {
	initInstruments()
	inst.rolloversTotal.Add(ctx, 1)
}

// RecordQuit records a quit request.
func RecordQuit(ctx context.Context, known bool) {
	initInstruments()
	inst.quitsTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("known_seat", known)))
}

// RecordRoomFinished records a room being marked finished.
func RecordRoomFinished(ctx context.Context, players int) {
	initInstruments()
	inst.roomsFinished.Add(ctx, 1, metric.WithAttributes(attribute.Int("players", players)))
}

// RecordPurge records rooms removed by a retention sweep.
func RecordPurge(ctx context.Context, rooms int) {
	initInstruments()
	if rooms > 0 {
		inst.roomsPurged.Add(ctx, int64(rooms))
	}
}

// RecordSeatIssued records a new identity and how many draws it took.
func RecordSeatIssued(ctx context.Context, attempts int) {
	initInstruments()
	inst.seatsIssued.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempts", attempts)))
}

// RecordEventPublished records one publish attempt for a room event.
func RecordEventPublished(ctx context.Context, eventType string, success bool, took time.Duration) {
	initInstruments()
	status := "ok"
	if !success {
		status = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("status", status),
	)
	inst.eventsPublished.Add(ctx, 1, attrs)
	inst.publishDuration.Record(ctx, float64(took.Microseconds())/1000, attrs)
}
