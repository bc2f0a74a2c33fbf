package db

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

type PostgresConfig struct {
	Driver       string
	URL          string
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// LoadPostgresConfig reads DB_* variables. DATABASE_URL, when set, wins over
// the individual host parts.
func LoadPostgresConfig() (PostgresConfig, error) {
	cfg := PostgresConfig{
		Driver:   strings.ToLower(getenv("DB_DRIVER", DriverPQ)),
		URL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Host:     getenv("DB_HOST", "localhost"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   os.Getenv("DB_NAME"),
		SSLMode:  getenv("DB_SSLMODE", "disable"),
	}

	var err error
	if cfg.Port, err = atoi("DB_PORT", 5432); err != nil {
		return PostgresConfig{}, err
	}
	if cfg.MaxOpenConns, err = atoi("DB_MAX_OPEN_CONNS", 20); err != nil {
		return PostgresConfig{}, err
	}
	if cfg.MaxIdleConns, err = atoi("DB_MAX_IDLE_CONNS", 10); err != nil {
		return PostgresConfig{}, err
	}
	if cfg.Driver != DriverPQ && cfg.Driver != DriverPGX {
		return PostgresConfig{}, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPQ, DriverPGX, cfg.Driver)
	}
	if cfg.URL == "" && cfg.DBName == "" {
		return PostgresConfig{}, fmt.Errorf("DATABASE_URL or DB_NAME is required")
	}
	return cfg, nil
}

func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func atoi(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}
