package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/seat"
	"github.com/mcdev12/waiting/go/internal/models"
	"github.com/rs/zerolog/log"
)

const internalError = "Internal error."

// APIPrefix is where the JSON routes live. A static client mounted at the
// same prefix reaches them with relative URLs.
const APIPrefix = "/api/"

// SeatApp is the seat registry as seen by the HTTP layer
type SeatApp interface {
	NewIdentity(ctx context.Context) (string, error)
	SetName(ctx context.Context, key, name string) (*models.Seat, error)
	GetSeat(ctx context.Context, key string) (*models.Seat, error)
}

// DwellApp is the dwell ledger as seen by the HTTP layer
type DwellApp interface {
	ReportDwell(ctx context.Context, room, key string, seconds float64) error
}

// RoomApp is the room state machine as seen by the HTTP layer
type RoomApp interface {
	Quit(ctx context.Context, room, key string) error
	ListRoom(ctx context.Context, room, viewerKey string) (*models.RoomView, error)
}

// Service serves the ledger over JSON HTTP
type Service struct {
	seats   SeatApp
	dwell   DwellApp
	rooms   RoomApp
	cfg     config.GameConfig
	watcher *RoomWatcher
}

// NewService creates a new Service. watcher may be nil to disable /ws/room.
func NewService(seats SeatApp, dwell DwellApp, rooms RoomApp, cfg config.GameConfig, watcher *RoomWatcher) *Service {
	return &Service{
		seats:   seats,
		dwell:   dwell,
		rooms:   rooms,
		cfg:     cfg,
		watcher: watcher,
	}
}

type seatKeyResponse struct {
	SeatKey string `json:"seatKey"`
}

type seatResponse struct {
	SeatKey string `json:"seatKey"`
	Name    string `json:"name"`
}

type configResponse struct {
	GraceSec  float64 `json:"graceSec"`
	UpdateSec float64 `json:"updateSec"`
}

// RegisterRoutes registers the API routes with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+APIPrefix+"newSeat", s.HandleNewSeat)
	mux.HandleFunc("POST "+APIPrefix+"name", s.HandleSetName)
	mux.HandleFunc("POST "+APIPrefix+"dwell", s.HandleDwell)
	mux.HandleFunc("POST "+APIPrefix+"quit", s.HandleQuit)
	mux.HandleFunc("GET "+APIPrefix+"room", s.HandleRoom)
	mux.HandleFunc("GET "+APIPrefix+"seat", s.HandleSeat)
	mux.HandleFunc("GET "+APIPrefix+"config", s.HandleConfig)
	if s.watcher != nil {
		mux.HandleFunc("GET /ws/room", s.watcher.HandleRoomWatch)
	}
}

func (s *Service) HandleNewSeat(w http.ResponseWriter, r *http.Request) {
	key, err := s.seats.NewIdentity(r.Context())
	if err != nil {
		if errors.Is(err, seat.ErrIdentitySpaceExhausted) {
			log.Error().Err(err).Msg("cannot issue seat keys")
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seatKeyResponse{SeatKey: key})
}

func (s *Service) HandleSetName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	if _, err := s.seats.SetName(r.Context(), req.SeatKey, req.Name); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Service) HandleDwell(w http.ResponseWriter, r *http.Request) {
	var req dwellRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	room := TruncateRoom(req.Room, s.cfg.MaxRoomLen)
	if err := s.dwell.ReportDwell(r.Context(), room, req.SeatKey, float64(req.Seconds)); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Service) HandleQuit(w http.ResponseWriter, r *http.Request) {
	var req quitRequest
	if !decodeRequest(w, r, &req) {
		return
	}
	room := TruncateRoom(req.Room, s.cfg.MaxRoomLen)
	if err := s.rooms.Quit(r.Context(), room, req.SeatKey); err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Service) HandleRoom(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	room := TruncateRoom(q.Get("room"), s.cfg.MaxRoomLen)
	view, err := s.rooms.ListRoom(r.Context(), room, q.Get("seatKey"))
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Service) HandleSeat(w http.ResponseWriter, r *http.Request) {
	st, err := s.seats.GetSeat(r.Context(), r.URL.Query().Get("seatKey"))
	if errors.Is(err, models.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Unknown seat.")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seatResponse{SeatKey: st.Key, Name: st.Name})
}

func (s *Service) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{
		GraceSec:  s.cfg.Grace.Seconds(),
		UpdateSec: s.cfg.UpdateInterval.Seconds(),
	})
}

func (s *Service) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, internalError)
}

// TruncateRoom cuts a room name to at most limit runes
func TruncateRoom(room string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(room) <= limit {
		return room
	}
	n := 0
	for i := range room {
		if n == limit {
			return room[:i]
		}
		n++
	}
	return room
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"err": msg})
}
