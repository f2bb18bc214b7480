// Package dbconfig reads the ledger's Postgres connection settings.
package dbconfig

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
)

// Config holds Postgres connection settings. URL, when set from
// DATABASE_URL, wins over the individual DB_* fields.
type Config struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewConfigFromEnv reads DATABASE_URL or the DB_* variables.
func NewConfigFromEnv() Config {
	port, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		port = 5432
	}

	cfg := Config{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		Database: getEnv("DB_NAME", "waiting"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}
	if cfg.URL != "" {
		cfg.fromURL()
	}
	return cfg
}

// fromURL fills the descriptive fields from URL so logs name the real target
func (c *Config) fromURL() {
	u, err := url.Parse(c.URL)
	if err != nil {
		return
	}
	c.Host = u.Hostname()
	if p, err := strconv.Atoi(u.Port()); err == nil {
		c.Port = p
	}
	if u.User != nil {
		c.User = u.User.Username()
	}
	if db := u.Path; len(db) > 1 {
		c.Database = db[1:]
	}
}

// DSN returns the Postgres connection URL. Credentials are escaped.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
