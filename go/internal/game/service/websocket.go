package service

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// WatchConfig holds configuration for room watch connections
type WatchConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultWatchConfig returns default WebSocket configuration
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// RoomWatcher streams a room's listing to WebSocket clients on a fixed interval
type RoomWatcher struct {
	rooms      RoomApp
	clock      clockwork.Clock
	interval   time.Duration
	maxRoomLen int
	config     WatchConfig
	upgrader   websocket.Upgrader

	mu      sync.RWMutex
	watches map[string]map[*watch]bool
}

type watch struct {
	id      string
	room    string
	seatKey string
	conn    *websocket.Conn
	watcher *RoomWatcher

	done      chan struct{}
	closeOnce sync.Once
}

// NewRoomWatcher creates a watcher pushing every interval
func NewRoomWatcher(rooms RoomApp, clock clockwork.Clock, interval time.Duration, maxRoomLen int, config WatchConfig) *RoomWatcher {
	return &RoomWatcher{
		rooms:      rooms,
		clock:      clock,
		interval:   interval,
		maxRoomLen: maxRoomLen,
		config:     config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		watches: make(map[string]map[*watch]bool),
	}
}

// HandleRoomWatch upgrades the request and streams the room given by the
// room query parameter. seatKey marks the viewer's own entry.
func (rw *RoomWatcher) HandleRoomWatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	room := TruncateRoom(q.Get("room"), rw.maxRoomLen)
	if room == "" {
		writeError(w, http.StatusBadRequest, "room is required")
		return
	}

	conn, err := rw.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		log.Error().Err(err).Str("room", room).Msg("failed to upgrade WebSocket connection")
		return
	}

	wt := &watch{
		id:      uuid.NewString(),
		room:    room,
		seatKey: q.Get("seatKey"),
		conn:    conn,
		watcher: rw,
		done:    make(chan struct{}),
	}
	rw.register(wt)

	go wt.writePump()
	go wt.readPump()

	log.Info().
		Str("connection_id", wt.id).
		Str("room", room).
		Msg("room watch established")
}

// Count returns the number of open watches
func (rw *RoomWatcher) Count() int {
	rw.mu.RLock()
	defer rw.mu.RUnlock()
	n := 0
	for _, set := range rw.watches {
		n += len(set)
	}
	return n
}

// Close ends every open watch
func (rw *RoomWatcher) Close() {
	rw.mu.RLock()
	var all []*watch
	for _, set := range rw.watches {
		for wt := range set {
			all = append(all, wt)
		}
	}
	rw.mu.RUnlock()

	for _, wt := range all {
		wt.close()
	}
}

func (rw *RoomWatcher) register(wt *watch) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.watches[wt.room] == nil {
		rw.watches[wt.room] = make(map[*watch]bool)
	}
	rw.watches[wt.room][wt] = true
}

func (rw *RoomWatcher) unregister(wt *watch) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	set, ok := rw.watches[wt.room]
	if !ok {
		return
	}
	delete(set, wt)
	if len(set) == 0 {
		delete(rw.watches, wt.room)
	}
}

func (wt *watch) close() {
	wt.closeOnce.Do(func() {
		close(wt.done)
	})
}

// push writes the current room listing. A failed listing is logged and
// skipped; only a failed write ends the watch.
func (wt *watch) push() error {
	cfg := wt.watcher.config
	ctx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout)
	defer cancel()

	view, err := wt.watcher.rooms.ListRoom(ctx, wt.room, wt.seatKey)
	if err != nil {
		log.Error().Err(err).Str("connection_id", wt.id).Str("room", wt.room).Msg("failed to list room")
		return nil
	}
	_ = wt.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
	return wt.conn.WriteJSON(view)
}

func (wt *watch) writePump() {
	rw := wt.watcher
	updates := rw.clock.NewTicker(rw.interval)
	pings := rw.clock.NewTicker(rw.config.PingInterval)
	defer func() {
		updates.Stop()
		pings.Stop()
		wt.conn.Close()
		rw.unregister(wt)
		log.Debug().Str("connection_id", wt.id).Str("room", wt.room).Msg("room watch closed")
	}()

	if err := wt.push(); err != nil {
		log.Debug().Err(err).Str("connection_id", wt.id).Msg("failed to write room listing")
		return
	}

	for {
		select {
		case <-wt.done:
			_ = wt.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(rw.config.WriteTimeout),
			)
			return
		case <-updates.Chan():
			if err := wt.push(); err != nil {
				log.Debug().Err(err).Str("connection_id", wt.id).Msg("failed to write room listing")
				return
			}
		case <-pings.Chan():
			_ = wt.conn.SetWriteDeadline(time.Now().Add(rw.config.WriteTimeout))
			if err := wt.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", wt.id).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump discards client messages and notices when the client goes away
func (wt *watch) readPump() {
	defer wt.close()

	cfg := wt.watcher.config
	wt.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = wt.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	wt.conn.SetPongHandler(func(string) error {
		return wt.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		if _, _, err := wt.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("connection_id", wt.id).Msg("unexpected WebSocket close error")
			}
			return
		}
		_ = wt.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}
