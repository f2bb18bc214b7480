package main

import (
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/dwell"
	"github.com/mcdev12/waiting/go/internal/game/events"
	"github.com/mcdev12/waiting/go/internal/game/retention"
	"github.com/mcdev12/waiting/go/internal/game/room"
	"github.com/mcdev12/waiting/go/internal/game/scheduler"
	"github.com/mcdev12/waiting/go/internal/game/seat"
	"github.com/mcdev12/waiting/go/internal/game/service"
)

// Store is everything the ledger apps need from storage. Both the Postgres
// repository and the in-memory store satisfy it.
type Store interface {
	seat.SeatRepository
	dwell.DwellRepository
	room.RoomRepository
	retention.RetentionRepository
}

type Services struct {
	Ledger  *service.Service
	Watcher *service.RoomWatcher
	Sweeper *retention.Sweeper
}

func setupServices(store Store, clock clockwork.Clock, sched *scheduler.Scheduler, cfg *config.Config, publisher events.Publisher) *Services {
	// Store → App layer → Service layer
	seatApp := seat.NewApp(store, cfg.Game)
	dwellApp := dwell.NewApp(store, clock, cfg.Game, publisher)
	roomApp := room.NewApp(store, clock, sched, cfg.Game, publisher)
	sweeper := retention.NewSweeper(store, clock, cfg.Game)

	watcher := service.NewRoomWatcher(roomApp, clock, cfg.Game.UpdateInterval, cfg.Game.MaxRoomLen, service.DefaultWatchConfig())
	ledger := service.NewService(seatApp, dwellApp, roomApp, cfg.Game, watcher)

	return &Services{
		Ledger:  ledger,
		Watcher: watcher,
		Sweeper: sweeper,
	}
}
