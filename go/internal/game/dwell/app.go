package dwell

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/events"
	"github.com/mcdev12/waiting/go/internal/game/telemetry"
	"github.com/mcdev12/waiting/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Report outcomes recorded in telemetry
const (
	OutcomeFirst   = "first"
	OutcomeSettled = "settled"
	OutcomeUnknown = "unknown_seat"
)

// DwellRepository defines what the ledger needs from the store
type DwellRepository interface {
	GetSeatByKey(ctx context.Context, key string) (*models.Seat, error)
	UpdateSeatBudget(ctx context.Context, seatID int64, budget float64) error
	RolloverFinishedRoom(ctx context.Context, room string) (bool, error)
	GetDwellRecord(ctx context.Context, room string, seatID int64) (*models.DwellRecord, error)
	InsertDwellRecord(ctx context.Context, rec models.DwellRecord) error
	UpdateDwellRecord(ctx context.Context, id int64, total float64, at time.Time) error
}

// App is the dwell ledger
type App struct {
	repo      DwellRepository
	clock     clockwork.Clock
	cfg       config.GameConfig
	publisher events.Publisher
}

// NewApp creates a new dwell App
func NewApp(repo DwellRepository, clock clockwork.Clock, cfg config.GameConfig, publisher events.Publisher) *App {
	return &App{
		repo:      repo,
		clock:     clock,
		cfg:       cfg,
		publisher: publisher,
	}
}

// ReportDwell credits a seat with claimed active seconds in a room.
// Reports from unknown seats are logged and dropped. A report for a
// finished room starts a new generation before it is credited.
func (a *App) ReportDwell(ctx context.Context, room, key string, seconds float64) error {
	grace := a.cfg.GraceSeconds()
	claimed := ClampClaim(seconds, grace)
	now := a.clock.Now().UTC()

	seat, err := a.repo.GetSeatByKey(ctx, key)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn().Str("seat_key", key).Str("room", room).Msg("dwell report from unknown seat")
		telemetry.RecordReport(ctx, OutcomeUnknown, 0, 0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get seat: %w", err)
	}

	rolled, err := a.repo.RolloverFinishedRoom(ctx, room)
	if err != nil {
		return fmt.Errorf("failed to roll over finished room: %w", err)
	}
	if rolled {
		log.Info().Str("room", room).Str("seat_key", key).Msg("new generation started")
		telemetry.RecordRollover(ctx)
		events.Emit(ctx, a.publisher, events.TypeGenerationStarted, room, now, events.GenerationStartedPayload{
			Room:      room,
			SeatKey:   key,
			StartedAt: now,
		})
	}

	rec, err := a.repo.GetDwellRecord(ctx, room, seat.ID)
	if errors.Is(err, models.ErrNotFound) {
		if err := a.repo.InsertDwellRecord(ctx, models.DwellRecord{
			SeatID:    seat.ID,
			Room:      room,
			Total:     claimed,
			UpdatedAt: now,
		}); err != nil {
			return fmt.Errorf("failed to insert dwell record: %w", err)
		}
		telemetry.RecordReport(ctx, OutcomeFirst, claimed, 0)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get dwell record: %w", err)
	}

	elapsed := now.Sub(rec.UpdatedAt).Seconds()
	credited, budget := Settle(claimed, elapsed, seat.Budget, grace)

	if budget != seat.Budget {
		if err := a.repo.UpdateSeatBudget(ctx, seat.ID, budget); err != nil {
			return fmt.Errorf("failed to update seat budget: %w", err)
		}
	}
	if err := a.repo.UpdateDwellRecord(ctx, rec.ID, rec.Total+credited, now); err != nil {
		return fmt.Errorf("failed to update dwell record: %w", err)
	}

	if suppressed := claimed - credited; suppressed > 0 {
		log.Debug().
			Str("seat_key", key).
			Str("room", room).
			Float64("claimed", claimed).
			Float64("elapsed", elapsed).
			Float64("suppressed", suppressed).
			Msg("overclaim suppressed")
	}
	telemetry.RecordReport(ctx, OutcomeSettled, credited, claimed-credited)
	return nil
}
