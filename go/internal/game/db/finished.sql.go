package db

import (
	"context"
	"time"

	"github.com/sqlc-dev/pqtype"
)

const getFinishedRoom = `-- name: GetFinishedRoom :one
SELECT room_name, finished_at, standings FROM finished_rooms
WHERE room_name = $1
LIMIT 1
`

func (q *Queries) GetFinishedRoom(ctx context.Context, roomName string) (FinishedRoom, error) {
	row := q.db.QueryRowContext(ctx, getFinishedRoom, roomName)
	var i FinishedRoom
	err := row.Scan(&i.RoomName, &i.FinishedAt, &i.Standings)
	return i, err
}

const insertFinishedRoom = `-- name: InsertFinishedRoom :execrows
INSERT INTO finished_rooms (room_name, finished_at, standings)
VALUES ($1, $2, $3)
ON CONFLICT (room_name) DO NOTHING
`

type InsertFinishedRoomParams struct {
	RoomName   string
	FinishedAt time.Time
	Standings  pqtype.NullRawMessage
}

func (q *Queries) InsertFinishedRoom(ctx context.Context, arg InsertFinishedRoomParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertFinishedRoom, arg.RoomName, arg.FinishedAt, arg.Standings)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteFinishedRoom = `-- name: DeleteFinishedRoom :execrows
DELETE FROM finished_rooms WHERE room_name = $1
`

func (q *Queries) DeleteFinishedRoom(ctx context.Context, roomName string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteFinishedRoom, roomName)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteFinishedRoomBefore = `-- name: DeleteFinishedRoomBefore :execrows
DELETE FROM finished_rooms WHERE room_name = $1 AND finished_at < $2
`

type DeleteFinishedRoomBeforeParams struct {
	RoomName string
	Cutoff   time.Time
}

func (q *Queries) DeleteFinishedRoomBefore(ctx context.Context, arg DeleteFinishedRoomBeforeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteFinishedRoomBefore, arg.RoomName, arg.Cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listFinishedBefore = `-- name: ListFinishedBefore :many
SELECT room_name, finished_at, standings FROM finished_rooms
WHERE finished_at < $1
ORDER BY finished_at ASC
LIMIT $2
`

type ListFinishedBeforeParams struct {
	Cutoff time.Time
	Limit  int32
}

func (q *Queries) ListFinishedBefore(ctx context.Context, arg ListFinishedBeforeParams) ([]FinishedRoom, error) {
	rows, err := q.db.QueryContext(ctx, listFinishedBefore, arg.Cutoff, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FinishedRoom
	for rows.Next() {
		var i FinishedRoom
		if err := rows.Scan(&i.RoomName, &i.FinishedAt, &i.Standings); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
