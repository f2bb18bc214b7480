package db

import (
	"context"
	"time"
)

const getDwellRecord = `-- name: GetDwellRecord :one
SELECT id, seat_id, room_name, total, updated_at FROM dwell_records
WHERE room_name = $1 AND seat_id = $2
LIMIT 1
`

type GetDwellRecordParams struct {
	RoomName string
	SeatID   int64
}

func (q *Queries) GetDwellRecord(ctx context.Context, arg GetDwellRecordParams) (DwellRecord, error) {
	row := q.db.QueryRowContext(ctx, getDwellRecord, arg.RoomName, arg.SeatID)
	var i DwellRecord
	err := row.Scan(
		&i.ID,
		&i.SeatID,
		&i.RoomName,
		&i.Total,
		&i.UpdatedAt,
	)
	return i, err
}

const insertDwellRecord = `-- name: InsertDwellRecord :exec
INSERT INTO dwell_records (seat_id, room_name, total, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (room_name, seat_id) DO NOTHING
`

type InsertDwellRecordParams struct {
	SeatID    int64
	RoomName  string
	Total     float64
	UpdatedAt time.Time
}

func (q *Queries) InsertDwellRecord(ctx context.Context, arg InsertDwellRecordParams) error {
	_, err := q.db.ExecContext(ctx, insertDwellRecord,
		arg.SeatID,
		arg.RoomName,
		arg.Total,
		arg.UpdatedAt,
	)
	return err
}

const updateDwellRecord = `-- name: UpdateDwellRecord :exec
UPDATE dwell_records SET total = $2, updated_at = $3 WHERE id = $1
`

type UpdateDwellRecordParams struct {
	ID        int64
	Total     float64
	UpdatedAt time.Time
}

func (q *Queries) UpdateDwellRecord(ctx context.Context, arg UpdateDwellRecordParams) error {
	_, err := q.db.ExecContext(ctx, updateDwellRecord, arg.ID, arg.Total, arg.UpdatedAt)
	return err
}

const backdateDwellRecord = `-- name: BackdateDwellRecord :exec
UPDATE dwell_records SET updated_at = $3 WHERE room_name = $1 AND seat_id = $2
`

type BackdateDwellRecordParams struct {
	RoomName  string
	SeatID    int64
	UpdatedAt time.Time
}

func (q *Queries) BackdateDwellRecord(ctx context.Context, arg BackdateDwellRecordParams) error {
	_, err := q.db.ExecContext(ctx, backdateDwellRecord, arg.RoomName, arg.SeatID, arg.UpdatedAt)
	return err
}

const countDwellSince = `-- name: CountDwellSince :one
SELECT count(*) FROM dwell_records
WHERE room_name = $1 AND updated_at > $2
`

type CountDwellSinceParams struct {
	RoomName string
	Since    time.Time
}

func (q *Queries) CountDwellSince(ctx context.Context, arg CountDwellSinceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, countDwellSince, arg.RoomName, arg.Since)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const listStandings = `-- name: ListStandings :many
SELECT s.seat_key, s.seat_name, d.total, d.updated_at
FROM dwell_records d
JOIN seats s ON s.id = d.seat_id
WHERE d.room_name = $1
ORDER BY d.total DESC, d.id ASC
`

type ListStandingsRow struct {
	SeatKey   string
	SeatName  string
	Total     float64
	UpdatedAt time.Time
}

func (q *Queries) ListStandings(ctx context.Context, roomName string) ([]ListStandingsRow, error) {
	rows, err := q.db.QueryContext(ctx, listStandings, roomName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListStandingsRow
	for rows.Next() {
		var i ListStandingsRow
		if err := rows.Scan(
			&i.SeatKey,
			&i.SeatName,
			&i.Total,
			&i.UpdatedAt,
		); err != nil {
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

const deleteRoomDwellRecords = `-- name: DeleteRoomDwellRecords :execrows
DELETE FROM dwell_records WHERE room_name = $1
`

func (q *Queries) DeleteRoomDwellRecords(ctx context.Context, roomName string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRoomDwellRecords, roomName)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
