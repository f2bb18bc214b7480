package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/mcdev12/waiting/go/internal/dbconfig"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/db"
	"github.com/mcdev12/waiting/go/internal/game/events"
	"github.com/mcdev12/waiting/go/internal/game/repository"
	"github.com/mcdev12/waiting/go/internal/game/retention"
	"github.com/mcdev12/waiting/go/internal/game/room"
	"github.com/mcdev12/waiting/go/internal/game/scheduler"
	"github.com/spf13/cobra"
)

// newMigrateCmd creates the "waitctl migrate" command.
func newMigrateCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := dbconfig.NewConfigFromEnv()
			pool, err := pgxpool.New(cmd.Context(), cfg.DSN())
			if err != nil {
				fmt.Fprintf(stderr, "waitctl migrate: failed to connect: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			defer pool.Close()

			if _, err := pool.Exec(cmd.Context(), db.Schema); err != nil {
				fmt.Fprintf(stderr, "waitctl migrate: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			fmt.Fprintf(stdout, "Schema applied to %s\n", cfg.Database) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
}

// newSweepCmd creates the "waitctl sweep" command.
func newSweepCmd(stdout, stderr io.Writer) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Purge rooms that finished longer ago than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, repo, closeDB, err := openRepository(cmd.Context())
			if err != nil {
				fmt.Fprintf(stderr, "waitctl sweep: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			defer closeDB()

			game := cfg.Game
			if olderThan > 0 {
				game.Retention = olderThan
			}
			purged, err := retention.NewSweeper(repo, clockwork.NewRealClock(), game).Sweep(cmd.Context())
			if err != nil {
				fmt.Fprintf(stderr, "waitctl sweep: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			fmt.Fprintf(stdout, "Purged %d rooms finished more than %s ago\n", purged, game.Retention) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override the retention window")
	return cmd
}

// newRoomCmd creates the "waitctl room <name>" command.
func newRoomCmd(stdout, stderr io.Writer) *cobra.Command {
	var seatKey string
	cmd := &cobra.Command{
		Use:   "room <name>",
		Short: "Print a room's listing as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeDB, err := openRoomApp(cmd.Context())
			if err != nil {
				fmt.Fprintf(stderr, "waitctl room: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			defer closeDB()

			view, err := app.ListRoom(cmd.Context(), args[0], seatKey)
			if err != nil {
				fmt.Fprintf(stderr, "waitctl room: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
	cmd.Flags().StringVar(&seatKey, "seat", "", "seat key to list the room as")
	return cmd
}

// newCheckCmd creates the "waitctl check <name>" command.
func newCheckCmd(stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "check <name>",
		Short: "Run the game-over check for a room now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, closeDB, err := openRoomApp(cmd.Context())
			if err != nil {
				fmt.Fprintf(stderr, "waitctl check: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			defer closeDB()

			if err := app.CheckGameOver(cmd.Context(), args[0]); err != nil {
				fmt.Fprintf(stderr, "waitctl check: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			view, err := app.ListRoom(cmd.Context(), args[0], "")
			if err != nil {
				fmt.Fprintf(stderr, "waitctl check: %v\n", err) //nolint:errcheck // best-effort stderr
				return errExit
			}
			fmt.Fprintf(stdout, "%s: gameOver=%t players=%d\n", args[0], view.GameOver, len(view.Players)) //nolint:errcheck // best-effort stdout
			return nil
		},
	}
}

func openRepository(ctx context.Context) (*config.Config, *repository.Repository, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}
	database, err := sql.Open("postgres", dbconfig.NewConfigFromEnv().DSN())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return cfg, repository.NewRepository(database), func() { database.Close() }, nil
}

func openRoomApp(ctx context.Context) (*room.App, func(), error) {
	cfg, repo, closeDB, err := openRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	clock := clockwork.NewRealClock()
	sched := scheduler.New(clock)
	app := room.NewApp(repo, clock, sched, cfg.Game, events.NewLogPublisher())
	return app, func() {
		sched.Stop()
		closeDB()
	}, nil
}
