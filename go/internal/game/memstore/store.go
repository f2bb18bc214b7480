// Package memstore keeps the ledger in process memory. It backs tests and
// single-process development servers; state is lost on restart.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/models"
)

type dwellKey struct {
	room   string
	seatID int64
}

// Store is an in-memory ledger store. Each method is atomic on its own.
type Store struct {
	clock    clockwork.Clock
	mu       sync.Mutex
	nextSeat int64
	nextRec  int64
	seats    map[string]*models.Seat
	records  map[dwellKey]*models.DwellRecord
	finished map[string]*models.FinishedMarker
}

// Option configures a Store
type Option func(*Store)

// WithClock sets the clock used for seat creation times
func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) {
		s.clock = clock
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{
		clock:    clockwork.NewRealClock(),
		seats:    make(map[string]*models.Seat),
		records:  make(map[dwellKey]*models.DwellRecord),
		finished: make(map[string]*models.FinishedMarker),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) SeatKeyExists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seats[key]
	return ok, nil
}

func (s *Store) GetSeatByKey(ctx context.Context, key string) (*models.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[key]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *seat
	return &cp, nil
}

func (s *Store) UpsertSeatName(ctx context.Context, key, name string, budget float64) (*models.Seat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[key]
	if !ok {
		s.nextSeat++
		seat = &models.Seat{
			ID:        s.nextSeat,
			Key:       key,
			Budget:    budget,
			CreatedAt: s.clock.Now().UTC(),
		}
		s.seats[key] = seat
	}
	seat.Name = name
	cp := *seat
	return &cp, nil
}

func (s *Store) UpdateSeatBudget(ctx context.Context, seatID int64, budget float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seat := range s.seats {
		if seat.ID == seatID {
			seat.Budget = budget
			return nil
		}
	}
	return nil
}

func (s *Store) RolloverFinishedRoom(ctx context.Context, room string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.finished[room]; !ok {
		return false, nil
	}
	delete(s.finished, room)
	s.deleteRoomLocked(room)
	return true, nil
}

func (s *Store) GetDwellRecord(ctx context.Context, room string, seatID int64) (*models.DwellRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[dwellKey{room, seatID}]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) InsertDwellRecord(ctx context.Context, rec models.DwellRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := dwellKey{rec.Room, rec.SeatID}
	if _, ok := s.records[key]; ok {
		return nil
	}
	s.nextRec++
	rec.ID = s.nextRec
	s.records[key] = &rec
	return nil
}

func (s *Store) UpdateDwellRecord(ctx context.Context, id int64, total float64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec.ID == id {
			rec.Total = total
			rec.UpdatedAt = at
			return nil
		}
	}
	return nil
}

func (s *Store) BackdateDwellRecord(ctx context.Context, room string, seatID int64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.records[dwellKey{room, seatID}]; ok {
		rec.UpdatedAt = at
	}
	return nil
}

func (s *Store) CountDwellSince(ctx context.Context, room string, since time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, rec := range s.records {
		if key.room == room && rec.UpdatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListStandings(ctx context.Context, room string) ([]models.Standing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make(map[int64]*models.Seat, len(s.seats))
	for _, seat := range s.seats {
		names[seat.ID] = seat
	}
	var recs []*models.DwellRecord
	for key, rec := range s.records {
		if key.room == room {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Total != recs[j].Total {
			return recs[i].Total > recs[j].Total
		}
		return recs[i].ID < recs[j].ID
	})
	standings := make([]models.Standing, 0, len(recs))
	for _, rec := range recs {
		seat := names[rec.SeatID]
		if seat == nil {
			continue
		}
		standings = append(standings, models.Standing{
			SeatKey:   seat.Key,
			Name:      seat.Name,
			Total:     rec.Total,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return standings, nil
}

func (s *Store) GetFinishedMarker(ctx context.Context, room string) (*models.FinishedMarker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	marker, ok := s.finished[room]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *marker
	return &cp, nil
}

func (s *Store) InsertFinishedMarker(ctx context.Context, marker models.FinishedMarker) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.finished[marker.Room]; ok {
		return false, nil
	}
	s.finished[marker.Room] = &marker
	return true, nil
}

func (s *Store) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int32) ([]models.FinishedMarker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var markers []models.FinishedMarker
	for _, marker := range s.finished {
		if marker.FinishedAt.Before(cutoff) {
			markers = append(markers, *marker)
		}
	}
	sort.Slice(markers, func(i, j int) bool {
		return markers[i].FinishedAt.Before(markers[j].FinishedAt)
	})
	if limit > 0 && len(markers) > int(limit) {
		markers = markers[:limit]
	}
	return markers, nil
}

func (s *Store) PurgeFinishedRoom(ctx context.Context, room string, cutoff time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	marker, ok := s.finished[room]
	if !ok || !marker.FinishedAt.Before(cutoff) {
		return false, nil
	}
	delete(s.finished, room)
	s.deleteRoomLocked(room)
	return true, nil
}

func (s *Store) deleteRoomLocked(room string) {
	for key := range s.records {
		if key.room == room {
			delete(s.records, key)
		}
	}
}
