package db

import (
	"time"

	"github.com/sqlc-dev/pqtype"
)

type Seat struct {
	ID        int64
	SeatKey   string
	SeatName  string
	Budget    float64
	CreatedAt time.Time
}

type DwellRecord struct {
	ID        int64
	SeatID    int64
	RoomName  string
	Total     float64
	UpdatedAt time.Time
}

type FinishedRoom struct {
	RoomName   string
	FinishedAt time.Time
	Standings  pqtype.NullRawMessage
}
