package models

import (
	"encoding/json"
	"time"
)

// DwellRecord holds a seat's accumulated active time in one room generation
type DwellRecord struct {
	ID        int64     `json:"id"`
	SeatID    int64     `json:"seat_id"`
	Room      string    `json:"room"`
	Total     float64   `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Standing is a dwell record joined with its seat, as listed in a room
type Standing struct {
	SeatKey   string    `json:"seat_key"`
	Name      string    `json:"name"`
	Total     float64   `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FinishedMarker marks a room's current generation as over.
// Standings is the leaderboard snapshot taken when the room finished, if any.
type FinishedMarker struct {
	Room       string          `json:"room"`
	FinishedAt time.Time       `json:"finished_at"`
	Standings  json.RawMessage `json:"standings,omitempty"`
}

// Player is one entry of a room listing
type Player struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
	Present bool    `json:"present"`
	IsSelf  bool    `json:"isSelf"`
}

// RoomView is what a viewer sees when listing a room
type RoomView struct {
	GameOver   bool       `json:"gameOver"`
	GameOverAt *time.Time `json:"gameOverWhen,omitempty"`
	Players    []Player   `json:"players"`
}
