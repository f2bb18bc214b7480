package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/waiting/go/internal/game/db"
	"github.com/mcdev12/waiting/go/internal/models"
	"github.com/mcdev12/waiting/go/internal/sqlutil"
)

// Repository implements ledger storage on Postgres
type Repository struct {
	database *sql.DB
	queries  *db.Queries
}

// NewRepository creates a new Postgres-backed ledger repository
func NewRepository(database *sql.DB) *Repository {
	return &Repository{
		database: database,
		queries:  db.New(database),
	}
}

// EnsureSchema creates the ledger tables if they do not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.database.ExecContext(ctx, db.Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SeatKeyExists reports whether a seat with this key is stored
func (r *Repository) SeatKeyExists(ctx context.Context, key string) (bool, error) {
	exists, err := r.queries.SeatKeyExists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to check seat key: %w", err)
	}
	return exists, nil
}

// GetSeatByKey retrieves a seat by its key
func (r *Repository) GetSeatByKey(ctx context.Context, key string) (*models.Seat, error) {
	seat, err := r.queries.GetSeatByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	return dbSeatToModel(seat), nil
}

// UpsertSeatName creates a seat with the given budget, or renames an existing one
func (r *Repository) UpsertSeatName(ctx context.Context, key, name string, budget float64) (*models.Seat, error) {
	seat, err := r.queries.UpsertSeatName(ctx, db.UpsertSeatNameParams{
		SeatKey:  key,
		SeatName: name,
		Budget:   budget,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert seat: %w", err)
	}
	return dbSeatToModel(seat), nil
}

// UpdateSeatBudget stores a seat's anti-cheat budget
func (r *Repository) UpdateSeatBudget(ctx context.Context, seatID int64, budget float64) error {
	if err := r.queries.UpdateSeatBudget(ctx, db.UpdateSeatBudgetParams{ID: seatID, Budget: budget}); err != nil {
		return fmt.Errorf("failed to update seat budget: %w", err)
	}
	return nil
}

// RolloverFinishedRoom clears a finished room's marker and records in one transaction.
// It reports whether the room was finished.
func (r *Repository) RolloverFinishedRoom(ctx context.Context, room string) (bool, error) {
	var rolled bool
	err := sqlutil.Run(ctx, r.database, r.queries.WithTx, func(q *db.Queries) error {
		n, err := q.DeleteFinishedRoom(ctx, room)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		rolled = true
		_, err = q.DeleteRoomDwellRecords(ctx, room)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to roll over room %s: %w", room, err)
	}
	return rolled, nil
}

// GetDwellRecord retrieves the record for a seat in a room
func (r *Repository) GetDwellRecord(ctx context.Context, room string, seatID int64) (*models.DwellRecord, error) {
	rec, err := r.queries.GetDwellRecord(ctx, db.GetDwellRecordParams{RoomName: room, SeatID: seatID})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dwell record: %w", err)
	}
	return &models.DwellRecord{
		ID:        rec.ID,
		SeatID:    rec.SeatID,
		Room:      rec.RoomName,
		Total:     rec.Total,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// InsertDwellRecord creates the first record for a seat in a room
func (r *Repository) InsertDwellRecord(ctx context.Context, rec models.DwellRecord) error {
	err := r.queries.InsertDwellRecord(ctx, db.InsertDwellRecordParams{
		SeatID:    rec.SeatID,
		RoomName:  rec.Room,
		Total:     rec.Total,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert dwell record: %w", err)
	}
	return nil
}

// UpdateDwellRecord stores a record's new total and update time
func (r *Repository) UpdateDwellRecord(ctx context.Context, id int64, total float64, at time.Time) error {
	err := r.queries.UpdateDwellRecord(ctx, db.UpdateDwellRecordParams{ID: id, Total: total, UpdatedAt: at})
	if err != nil {
		return fmt.Errorf("failed to update dwell record: %w", err)
	}
	return nil
}

// BackdateDwellRecord moves a seat's last update in a room to at. Missing records are ignored.
func (r *Repository) BackdateDwellRecord(ctx context.Context, room string, seatID int64, at time.Time) error {
	err := r.queries.BackdateDwellRecord(ctx, db.BackdateDwellRecordParams{
		RoomName:  room,
		SeatID:    seatID,
		UpdatedAt: at,
	})
	if err != nil {
		return fmt.Errorf("failed to backdate dwell record: %w", err)
	}
	return nil
}

// CountDwellSince counts the room's records updated strictly after since
func (r *Repository) CountDwellSince(ctx context.Context, room string, since time.Time) (int, error) {
	n, err := r.queries.CountDwellSince(ctx, db.CountDwellSinceParams{RoomName: room, Since: since})
	if err != nil {
		return 0, fmt.Errorf("failed to count recent dwell records: %w", err)
	}
	return int(n), nil
}

// ListStandings lists the room's records with seat names, highest total first
func (r *Repository) ListStandings(ctx context.Context, room string) ([]models.Standing, error) {
	rows, err := r.queries.ListStandings(ctx, room)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings: %w", err)
	}
	standings := make([]models.Standing, len(rows))
	for i, row := range rows {
		standings[i] = models.Standing{
			SeatKey:   row.SeatKey,
			Name:      row.SeatName,
			Total:     row.Total,
			UpdatedAt: row.UpdatedAt,
		}
	}
	return standings, nil
}

// GetFinishedMarker retrieves a room's finished marker
func (r *Repository) GetFinishedMarker(ctx context.Context, room string) (*models.FinishedMarker, error) {
	row, err := r.queries.GetFinishedRoom(ctx, room)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get finished marker: %w", err)
	}
	return dbFinishedToModel(row), nil
}

// InsertFinishedMarker writes a finished marker unless the room already has one.
// It reports whether the marker was written.
func (r *Repository) InsertFinishedMarker(ctx context.Context, marker models.FinishedMarker) (bool, error) {
	n, err := r.queries.InsertFinishedRoom(ctx, db.InsertFinishedRoomParams{
		RoomName:   marker.Room,
		FinishedAt: marker.FinishedAt,
		Standings:  sqlutil.ToNullRawMessage(marker.Standings),
	})
	if err != nil {
		return false, fmt.Errorf("failed to insert finished marker: %w", err)
	}
	return n > 0, nil
}

// ListFinishedBefore lists up to limit markers that finished before cutoff, oldest first
func (r *Repository) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int32) ([]models.FinishedMarker, error) {
	rows, err := r.queries.ListFinishedBefore(ctx, db.ListFinishedBeforeParams{Cutoff: cutoff, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list finished markers: %w", err)
	}
	markers := make([]models.FinishedMarker, len(rows))
	for i, row := range rows {
		markers[i] = *dbFinishedToModel(row)
	}
	return markers, nil
}

// PurgeFinishedRoom deletes a room's marker and records if the marker predates cutoff.
// A room restarted since it was listed keeps its new records.
func (r *Repository) PurgeFinishedRoom(ctx context.Context, room string, cutoff time.Time) (bool, error) {
	var purged bool
	err := sqlutil.Run(ctx, r.database, r.queries.WithTx, func(q *db.Queries) error {
		n, err := q.DeleteFinishedRoomBefore(ctx, db.DeleteFinishedRoomBeforeParams{RoomName: room, Cutoff: cutoff})
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		purged = true
		_, err = q.DeleteRoomDwellRecords(ctx, room)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to purge room %s: %w", room, err)
	}
	return purged, nil
}

func dbSeatToModel(seat db.Seat) *models.Seat {
	return &models.Seat{
		ID:        seat.ID,
		Key:       seat.SeatKey,
		Name:      seat.SeatName,
		Budget:    seat.Budget,
		CreatedAt: seat.CreatedAt,
	}
}

func dbFinishedToModel(row db.FinishedRoom) *models.FinishedMarker {
	return &models.FinishedMarker{
		Room:       row.RoomName,
		FinishedAt: row.FinishedAt,
		Standings:  sqlutil.FromNullRawMessage(row.Standings),
	}
}
