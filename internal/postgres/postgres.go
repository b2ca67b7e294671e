package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS reservations (
	id BIGSERIAL PRIMARY KEY,
	owner_id BIGINT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	date DATE NOT NULL,
	start_minute INT NOT NULL,
	end_minute INT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	cancelled_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_reservations_date_status ON reservations(date, status);
CREATE INDEX IF NOT EXISTS idx_reservations_owner ON reservations(owner_id, status);

CREATE TABLE IF NOT EXISTS working_hours (
	id INT PRIMARY KEY CHECK (id = 1),
	start_hour INT NOT NULL,
	end_hour INT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store keeps reservations in PostgreSQL. Bookings of one date serialize on
// a transaction-scoped advisory lock keyed by that date.
type Store struct {
	pool   *pgxpool.Pool
	loc    *time.Location
	logger zerolog.Logger
}

// Options tune connection establishment.
type Options struct {
	Retries    int
	RetryDelay time.Duration
	Location   *time.Location
}

// Open connects to databaseURL, retrying while the server is unreachable,
// and applies the schema.
func Open(ctx context.Context, databaseURL string, opts Options, logger *zerolog.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	l := logger.With().Str("component", "postgres").Logger()

	var pool *pgxpool.Pool
	err = connectWithRetry(ctx, opts.Retries, opts.RetryDelay, &l, func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	l.Info().Msg("Database initialized")
	return &Store{pool: pool, loc: loc, logger: l}, nil
}

var ErrConnectFailed = errors.New("could not connect to database")

func connectWithRetry(ctx context.Context, attempts int, delay time.Duration, logger *zerolog.Logger, connect func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 5
	}
	if delay <= 0 {
		delay = 5 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = connect(ctx); lastErr == nil {
			return nil
		}
		logger.Warn().Err(lastErr).Int("attempt", attempt).Dur("retry_in", delay).Msg("database connection failed")
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrConnectFailed, attempts, lastErr)
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
