package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/scheduler"
	"github.com/mcdev12/waiting/go/internal/game/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(parseLogLevel(getEnv("LOG_LEVEL", "info")))

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, 15*time.Second)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init telemetry")
	}

	clock := clockwork.NewRealClock()

	store, closeStore, err := setupStore(ctx, cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up store")
	}

	publisher, closePublisher, err := setupPublisher(ctx, cfg, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up event publisher")
	}

	sched := scheduler.New(clock)

	services := setupServices(store, clock, sched, cfg, publisher)
	services.Sweeper.Start(sched)

	server := setupServer(cfg, services)

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Server.Store).
			Dur("grace", cfg.Game.Grace).
			Msg("waiting ledger starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	services.Watcher.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	sched.Stop()
	closePublisher()
	closeStore()
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown failed")
	}

	log.Info().Msg("waiting ledger shutdown complete")
}
