package seat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/telemetry"
	"github.com/mcdev12/waiting/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrIdentitySpaceExhausted means every generated key collided with an
// existing seat. The key space is too small or the store is corrupt.
var ErrIdentitySpaceExhausted = errors.New("seat key space exhausted")

// SeatRepository defines what the app layer needs from the repository
type SeatRepository interface {
	SeatKeyExists(ctx context.Context, key string) (bool, error)
	GetSeatByKey(ctx context.Context, key string) (*models.Seat, error)
	UpsertSeatName(ctx context.Context, key, name string, budget float64) (*models.Seat, error)
}

// KeyGenerator returns a candidate seat key of length n
type KeyGenerator func(n int) string

// App handles seat identity and naming
type App struct {
	repo   SeatRepository
	cfg    config.GameConfig
	genKey KeyGenerator
}

// NewApp creates a new seat App
func NewApp(repo SeatRepository, cfg config.GameConfig) *App {
	return &App{
		repo:   repo,
		cfg:    cfg,
		genKey: RandomKey,
	}
}

// WithKeyGenerator replaces the key generator
func (a *App) WithKeyGenerator(gen KeyGenerator) *App {
	a.genKey = gen
	return a
}

// NewIdentity returns a seat key no existing seat uses. The seat itself is
// created on the first SetName.
func (a *App) NewIdentity(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.cfg.MaxIdentityAttempts; attempt++ {
		key := a.genKey(a.cfg.SeatKeyLen)
		exists, err := a.repo.SeatKeyExists(ctx, key)
		if err != nil {
			return "", fmt.Errorf("failed to check seat key: %w", err)
		}
		if !exists {
			telemetry.RecordSeatIssued(ctx, attempt)
			return key, nil
		}
		log.Debug().Str("seat_key", key).Int("attempt", attempt).Msg("seat key collision")
	}
	return "", fmt.Errorf("%w after %d attempts", ErrIdentitySpaceExhausted, a.cfg.MaxIdentityAttempts)
}

// SetName creates the seat with a full budget or renames it. Any key and
// name are accepted, including the empty string.
func (a *App) SetName(ctx context.Context, key, name string) (*models.Seat, error) {
	seat, err := a.repo.UpsertSeatName(ctx, key, name, a.cfg.GraceSeconds())
	if err != nil {
		return nil, fmt.Errorf("failed to set seat name: %w", err)
	}
	return seat, nil
}

// GetSeat retrieves a seat by key
func (a *App) GetSeat(ctx context.Context, key string) (*models.Seat, error) {
	seat, err := a.repo.GetSeatByKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	return seat, nil
}

// RandomKey returns n lowercase hex characters from a v4 UUID
func RandomKey(n int) string {
	key := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > 0 && n < len(key) {
		key = key[:n]
	}
	return key
}

// RandomRoomName returns a throwaway room name
func RandomRoomName() string {
	return "room-" + RandomKey(6)
}
