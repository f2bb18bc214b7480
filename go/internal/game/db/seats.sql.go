package db

import (
	"context"
)

const seatKeyExists = `-- name: SeatKeyExists :one
SELECT EXISTS (SELECT 1 FROM seats WHERE seat_key = $1)
`

func (q *Queries) SeatKeyExists(ctx context.Context, seatKey string) (bool, error) {
	row := q.db.QueryRowContext(ctx, seatKeyExists, seatKey)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const getSeatByKey = `-- name: GetSeatByKey :one
SELECT id, seat_key, seat_name, budget, created_at FROM seats
WHERE seat_key = $1
LIMIT 1
`

func (q *Queries) GetSeatByKey(ctx context.Context, seatKey string) (Seat, error) {
	row := q.db.QueryRowContext(ctx, getSeatByKey, seatKey)
	var i Seat
	err := row.Scan(
		&i.ID,
		&i.SeatKey,
		&i.SeatName,
		&i.Budget,
		&i.CreatedAt,
	)
	return i, err
}

const upsertSeatName = `-- name: UpsertSeatName :one
INSERT INTO seats (seat_key, seat_name, budget)
VALUES ($1, $2, $3)
ON CONFLICT (seat_key) DO UPDATE SET seat_name = EXCLUDED.seat_name
RETURNING id, seat_key, seat_name, budget, created_at
`

type UpsertSeatNameParams struct {
	SeatKey  string
	SeatName string
	Budget   float64
}

func (q *Queries) UpsertSeatName(ctx context.Context, arg UpsertSeatNameParams) (Seat, error) {
	row := q.db.QueryRowContext(ctx, upsertSeatName, arg.SeatKey, arg.SeatName, arg.Budget)
	var i Seat
	err := row.Scan(
		&i.ID,
		&i.SeatKey,
		&i.SeatName,
		&i.Budget,
		&i.CreatedAt,
	)
	return i, err
}

const updateSeatBudget = `-- name: UpdateSeatBudget :exec
UPDATE seats SET budget = $2 WHERE id = $1
`

type UpdateSeatBudgetParams struct {
	ID     int64
	Budget float64
}

func (q *Queries) UpdateSeatBudget(ctx context.Context, arg UpdateSeatBudgetParams) error {
	_, err := q.db.ExecContext(ctx, updateSeatBudget, arg.ID, arg.Budget)
	return err
}
