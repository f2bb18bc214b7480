package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/events"
	"github.com/mcdev12/waiting/go/internal/game/presence"
	"github.com/mcdev12/waiting/go/internal/game/scheduler"
	"github.com/mcdev12/waiting/go/internal/game/telemetry"
	"github.com/mcdev12/waiting/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RoomRepository defines what the room state machine needs from the store
type RoomRepository interface {
	GetSeatByKey(ctx context.Context, key string) (*models.Seat, error)
	BackdateDwellRecord(ctx context.Context, room string, seatID int64, at time.Time) error
	CountDwellSince(ctx context.Context, room string, since time.Time) (int, error)
	ListStandings(ctx context.Context, room string) ([]models.Standing, error)
	GetFinishedMarker(ctx context.Context, room string) (*models.FinishedMarker, error)
	InsertFinishedMarker(ctx context.Context, marker models.FinishedMarker) (bool, error)
}

// Scheduler runs the deferred game-over check
type Scheduler interface {
	After(name string, d time.Duration, task scheduler.Task)
}

// App is the room state machine. A room is active until CheckGameOver
// finds nobody present; only a new dwell report makes it active again.
type App struct {
	repo      RoomRepository
	clock     clockwork.Clock
	sched     Scheduler
	cfg       config.GameConfig
	publisher events.Publisher
}

// NewApp creates a new room App
func NewApp(repo RoomRepository, clock clockwork.Clock, sched Scheduler, cfg config.GameConfig, publisher events.Publisher) *App {
	return &App{
		repo:      repo,
		clock:     clock,
		sched:     sched,
		cfg:       cfg,
		publisher: publisher,
	}
}

// Quit marks the seat absent from the room right away and schedules a
// game-over check one grace period later. Safe to repeat.
func (a *App) Quit(ctx context.Context, room, key string) error {
	seat, err := a.repo.GetSeatByKey(ctx, key)
	if errors.Is(err, models.ErrNotFound) {
		log.Warn().Str("seat_key", key).Str("room", room).Msg("quit from unknown seat")
		telemetry.RecordQuit(ctx, false)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get seat: %w", err)
	}

	absentSince := a.clock.Now().UTC().Add(-(a.cfg.Grace + time.Second))
	if err := a.repo.BackdateDwellRecord(ctx, room, seat.ID, absentSince); err != nil {
		return fmt.Errorf("failed to backdate dwell record: %w", err)
	}
	telemetry.RecordQuit(ctx, true)

	a.sched.After("check-game-over:"+room, a.cfg.Grace, func(ctx context.Context) error {
		return a.CheckGameOver(ctx, room)
	})
	return nil
}

// CheckGameOver finishes the room if it is not finished already and no
// seat has reported within the grace period.
func (a *App) CheckGameOver(ctx context.Context, room string) error {
	_, err := a.repo.GetFinishedMarker(ctx, room)
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to get finished marker: %w", err)
	}

	now := a.clock.Now().UTC()
	recent, err := a.repo.CountDwellSince(ctx, room, now.Add(-a.cfg.Grace))
	if err != nil {
		return fmt.Errorf("failed to count recent dwell: %w", err)
	}
	if recent > 0 {
		return nil
	}

	standings, err := a.repo.ListStandings(ctx, room)
	if err != nil {
		return fmt.Errorf("failed to list standings: %w", err)
	}
	snapshot, err := json.Marshal(standings)
	if err != nil {
		return fmt.Errorf("failed to marshal standings: %w", err)
	}

	inserted, err := a.repo.InsertFinishedMarker(ctx, models.FinishedMarker{
		Room:       room,
		FinishedAt: now,
		Standings:  snapshot,
	})
	if err != nil {
		return fmt.Errorf("failed to insert finished marker: %w", err)
	}
	if !inserted {
		return nil
	}

	log.Info().Str("room", room).Int("players", len(standings)).Msg("room finished")
	telemetry.RecordRoomFinished(ctx, len(standings))
	events.Emit(ctx, a.publisher, events.TypeRoomFinished, room, now, events.RoomFinishedPayload{
		Room:       room,
		FinishedAt: now,
		Standings:  standings,
	})
	return nil
}

// ListRoom returns the room's game state and players, highest total first.
// A known viewer with no record in the room is listed as present with zero seconds.
func (a *App) ListRoom(ctx context.Context, room, viewerKey string) (*models.RoomView, error) {
	standings, err := a.repo.ListStandings(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}

	view := &models.RoomView{Players: make([]models.Player, 0, len(standings)+1)}

	marker, err := a.repo.GetFinishedMarker(ctx, room)
	switch {
	case err == nil:
		view.GameOver = true
		finishedAt := marker.FinishedAt
		view.GameOverAt = &finishedAt
	case errors.Is(err, models.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to get finished marker: %w", err)
	}

	now := a.clock.Now()
	foundSelf := false
	for _, s := range standings {
		isSelf := viewerKey != "" && s.SeatKey == viewerKey
		if isSelf {
			foundSelf = true
		}
		view.Players = append(view.Players, models.Player{
			Name:    s.Name,
			Seconds: s.Total,
			Present: presence.IsPresent(s.UpdatedAt, now, a.cfg.Grace),
			IsSelf:  isSelf,
		})
	}

	if !foundSelf && viewerKey != "" {
		seat, err := a.repo.GetSeatByKey(ctx, viewerKey)
		switch {
		case err == nil:
			view.Players = append(view.Players, presence.Self(seat.Name))
		case errors.Is(err, models.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to get viewer seat: %w", err)
		}
	}

	sort.SliceStable(view.Players, func(i, j int) bool {
		return view.Players[i].Seconds > view.Players[j].Seconds
	})
	return view, nil
}
