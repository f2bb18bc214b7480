package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/scheduler"
	"github.com/mcdev12/waiting/go/internal/game/telemetry"
	"github.com/mcdev12/waiting/go/internal/models"
	"github.com/rs/zerolog/log"
)

// RetentionRepository defines what the sweeper needs from the store
type RetentionRepository interface {
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int32) ([]models.FinishedMarker, error)
	PurgeFinishedRoom(ctx context.Context, room string, cutoff time.Time) (bool, error)
}

// Sweeper purges rooms that finished longer ago than the retention window
type Sweeper struct {
	repo  RetentionRepository
	clock clockwork.Clock
	cfg   config.GameConfig
}

// NewSweeper creates a new Sweeper
func NewSweeper(repo RetentionRepository, clock clockwork.Clock, cfg config.GameConfig) *Sweeper {
	return &Sweeper{
		repo:  repo,
		clock: clock,
		cfg:   cfg,
	}
}

// Start registers the sweep on the scheduler
func (s *Sweeper) Start(sched *scheduler.Scheduler) {
	sched.Every("retention-sweep", s.cfg.SweepInterval, func(ctx context.Context) error {
		_, err := s.Sweep(ctx)
		return err
	})
}

// Sweep deletes every finished marker older than the retention window along
// with its room's dwell records. A room that fails to purge is logged and
// skipped. Returns the number of rooms purged.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().UTC().Add(-s.cfg.Retention)
	purged := 0

	for {
		stale, err := s.repo.ListFinishedBefore(ctx, cutoff, s.cfg.SweepBatch)
		if err != nil {
			return purged, fmt.Errorf("failed to list stale rooms: %w", err)
		}

		batchPurged := 0
		for _, marker := range stale {
			ok, err := s.repo.PurgeFinishedRoom(ctx, marker.Room, cutoff)
			if err != nil {
				log.Error().Err(err).Str("room", marker.Room).Msg("failed to purge room")
				continue
			}
			if ok {
				batchPurged++
			}
		}
		purged += batchPurged

		// A short batch means nothing older is left. A batch where nothing
		// could be purged would return the same rows again.
		if len(stale) < int(s.cfg.SweepBatch) || s.cfg.SweepBatch <= 0 || batchPurged == 0 {
			break
		}
	}

	if purged > 0 {
		log.Info().Int("rooms", purged).Time("cutoff", cutoff).Msg("retention sweep purged rooms")
	}
	telemetry.RecordPurge(ctx, purged)
	return purged, nil
}
