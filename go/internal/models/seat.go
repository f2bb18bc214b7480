package models

import (
	"time"
)

// Seat is a participant's persistent identity, independent of any room
type Seat struct {
	ID        int64     `json:"-"`
	Key       string    `json:"seatKey"`
	Name      string    `json:"name"`
	Budget    float64   `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
