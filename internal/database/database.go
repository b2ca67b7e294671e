package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the SQLite reservation store.
type DB struct {
	*sql.DB
	loc    *time.Location
	logger *zerolog.Logger
}

// NewDB opens the database at path and creates tables if they don't exist.
// Transactions start with BEGIN IMMEDIATE so the check-then-insert of a
// booking holds the write lock from its first read.
func NewDB(path string, loc *time.Location, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sqlite dir: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	instance := &DB{DB: db, loc: loc, logger: logger}

	if err := instance.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", path).Msg("sqlite ready")
	return instance, nil
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS reservations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			owner_id INTEGER NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL,
			start_minute INTEGER NOT NULL,
			end_minute INTEGER NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			reminder_sent BOOLEAN NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			cancelled_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_date_status ON reservations(date, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_owner ON reservations(owner_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_reminder ON reservations(reminder_sent, date)`,

		`CREATE TABLE IF NOT EXISTS working_hours (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			start_hour INTEGER NOT NULL,
			end_hour INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", trimSQL(query), err)
		}
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func trimSQL(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > 60 {
		return q[:60] + "..."
	}
	return q
}
