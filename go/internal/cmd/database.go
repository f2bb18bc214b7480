package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/mcdev12/waiting/go/internal/dbconfig"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/events"
	"github.com/mcdev12/waiting/go/internal/game/memstore"
	"github.com/mcdev12/waiting/go/internal/game/repository"
	"github.com/rs/zerolog/log"
)

func setupDatabase(ctx context.Context) (*sql.DB, error) {
	dbCfg := dbconfig.NewConfigFromEnv()

	database, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("user", dbCfg.User).
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("database", dbCfg.Database).
		Msg("connected to database")
	return database, nil
}

// setupStore returns the configured ledger store and a func releasing it
func setupStore(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (Store, func(), error) {
	if cfg.Server.Store == config.StoreMemory {
		log.Warn().Msg("using in-memory store; ledger is lost on restart")
		return memstore.New(memstore.WithClock(clock)), func() {}, nil
	}

	database, err := setupDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewRepository(database)
	if err := repo.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return repo, func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}, nil
}

// setupPublisher publishes to JetStream when a NATS URL is configured,
// otherwise to the log
func setupPublisher(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (events.Publisher, func(), error) {
	if cfg.Events.NATSURL == "" {
		return events.NewMetricPublisher(events.NewLogPublisher(), clock), func() {}, nil
	}

	jsCfg := events.DefaultJetStreamConfig()
	jsCfg.URL = cfg.Events.NATSURL
	if cfg.Events.StreamName != "" {
		jsCfg.StreamName = cfg.Events.StreamName
	}

	publisher, err := events.NewJetStreamPublisher(ctx, jsCfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("nats_url", jsCfg.URL).Str("stream", jsCfg.StreamName).Msg("publishing room events to JetStream")
	return events.NewMetricPublisher(publisher, clock), func() {
		if err := publisher.Close(); err != nil {
			log.Error().Err(err).Msg("failed to drain NATS connection")
		}
	}, nil
}
