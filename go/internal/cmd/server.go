package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/service"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	services.Ledger.RegisterRoutes(mux)

	setupHealthCheck(mux)

	if cfg.Server.StaticDir != "" {
		setupStaticClient(mux, cfg.Server.StaticDir)
	}

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

// setupStaticClient serves the browser client beside the API so the
// client's relative calls ("dwell", "room", ...) resolve to /api/ routes.
func setupStaticClient(mux *http.ServeMux, dir string) {
	mux.Handle("GET "+service.APIPrefix, http.StripPrefix(strings.TrimSuffix(service.APIPrefix, "/"), http.FileServer(http.Dir(dir))))
	mux.Handle("GET /{$}", http.RedirectHandler(service.APIPrefix, http.StatusFound))
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
