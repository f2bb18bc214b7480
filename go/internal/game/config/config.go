package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Game   GameConfig   `yaml:"game"`
	Events EventsConfig `yaml:"events"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	Store     string `yaml:"store"`
	StaticDir string `yaml:"static_dir"`
}

// GameConfig holds the ledger's timing and sizing rules
type GameConfig struct {
	// Grace is the presence timeout, the anti-cheat budget cap and the per-report credit cap.
	Grace time.Duration `yaml:"grace"`
	// UpdateInterval is how often clients are told to report. Not enforced.
	UpdateInterval      time.Duration `yaml:"update_interval"`
	Retention           time.Duration `yaml:"retention"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	SweepBatch          int32         `yaml:"sweep_batch"`
	MaxRoomLen          int           `yaml:"max_room_len"`
	SeatKeyLen          int           `yaml:"seat_key_len"`
	MaxIdentityAttempts int           `yaml:"max_identity_attempts"`
}

type EventsConfig struct {
	NATSURL    string `yaml:"nats_url"`
	StreamName string `yaml:"stream_name"`
}

// GraceSeconds returns Grace in (fractional) seconds
func (g GameConfig) GraceSeconds() float64 {
	return g.Grace.Seconds()
}

// Default returns the stock configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:  "8080",
			Store: StorePostgres,
		},
		Game:   DefaultGame(),
		Events: EventsConfig{StreamName: "WAITING_EVENTS"},
	}
}

// DefaultGame returns the stock game rules
func DefaultGame() GameConfig {
	return GameConfig{
		Grace:               5 * time.Second,
		UpdateInterval:      3 * time.Second,
		Retention:           24 * time.Hour,
		SweepInterval:       time.Hour,
		SweepBatch:          500,
		MaxRoomLen:          32,
		SeatKeyLen:          8,
		MaxIdentityAttempts: 10,
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Store = getEnv("STORE", c.Server.Store)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	c.Events.NATSURL = getEnv("NATS_URL", c.Events.NATSURL)

	var err error
	if c.Game.Grace, err = getEnvSeconds("GRACE_SEC", c.Game.Grace); err != nil {
		return err
	}
	if c.Game.UpdateInterval, err = getEnvSeconds("UPDATE_SEC", c.Game.UpdateInterval); err != nil {
		return err
	}
	if v := os.Getenv("RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RETENTION: %w", err)
		}
		c.Game.Retention = d
	}
	return nil
}

// Validate checks the configuration for values the ledger cannot run with
func (c *Config) Validate() error {
	g := c.Game
	if g.Grace <= 0 {
		return fmt.Errorf("grace must be positive, got %s", g.Grace)
	}
	if g.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive, got %s", g.UpdateInterval)
	}
	if g.Retention <= 0 || g.SweepInterval <= 0 {
		return fmt.Errorf("retention and sweep_interval must be positive")
	}
	if g.SeatKeyLen < 4 || g.SeatKeyLen > 32 {
		return fmt.Errorf("seat_key_len must be between 4 and 32, got %d", g.SeatKeyLen)
	}
	if g.MaxIdentityAttempts < 1 {
		return fmt.Errorf("max_identity_attempts must be at least 1")
	}
	if g.MaxRoomLen < 1 {
		return fmt.Errorf("max_room_len must be at least 1")
	}
	switch c.Server.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Server.Store)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}
