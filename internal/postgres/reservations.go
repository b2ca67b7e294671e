package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

const reservationColumns = `id, owner_id, display_name, date, start_minute, end_minute, status, reminder_sent, created_at, cancelled_at`

func (s *Store) scan(row pgx.Row) (*models.Reservation, error) {
	var (
		r          models.Reservation
		date       time.Time
		start, end int
	)
	if err := row.Scan(&r.ID, &r.OwnerID, &r.DisplayName, &date, &start, &end, &r.Status, &r.ReminderSent, &r.CreatedAt, &r.CancelledAt); err != nil {
		return nil, err
	}
	y, m, d := date.Date()
	r.Date = time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	r.Start = models.TimeOfDay(start)
	r.Duration = time.Duration(end-start) * time.Minute
	return &r, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *Store) query(ctx context.Context, q querier, sql string, args ...any) ([]models.Reservation, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		r, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Store) LoadReservations(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	return s.query(ctx, s.pool,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE date = $1::date AND status = $2
		ORDER BY start_minute`,
		models.DateKey(date), models.StatusActive,
	)
}

func (s *Store) InsertIfFree(ctx context.Context, r *models.Reservation, now time.Time) (bool, error) {
	key := models.DateKey(r.Date)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "reservations:"+key); err != nil {
		return false, fmt.Errorf("lock %s: %w", key, err)
	}

	existing, err := s.query(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE date = $1::date AND status = $2 AND start_minute < $3 AND end_minute > $4`,
		key, models.StatusActive, int(r.End()), int(r.Start),
	)
	if err != nil {
		return false, fmt.Errorf("load day: %w", err)
	}
	if models.Conflicts(r.Interval(), existing, now) {
		return false, nil
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO reservations (owner_id, display_name, date, start_minute, end_minute, status, created_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
		RETURNING id`,
		r.OwnerID, r.DisplayName, key, int(r.Start), int(r.End()), models.StatusActive, now,
	).Scan(&id)
	if err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	r.ID = id
	r.Status = models.StatusActive
	r.CreatedAt = now
	return true, nil
}

func (s *Store) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 AND status = $2`,
		id, models.StatusActive,
	)
	r, err := s.scan(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) DeleteReservation(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reservations SET status = $1, cancelled_at = $2 WHERE id = $3 AND status = $4`,
		models.StatusCancelled, at, id, models.StatusActive,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]models.Reservation, error) {
	return s.query(ctx, s.pool,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE owner_id = $1 AND status = $2
		ORDER BY date, start_minute`,
		ownerID, models.StatusActive,
	)
}

func (s *Store) ListBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	return s.query(ctx, s.pool,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE date BETWEEN $1::date AND $2::date AND status = $3
		ORDER BY date, start_minute`,
		models.DateKey(from), models.DateKey(to), models.StatusActive,
	)
}

func (s *Store) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE reservations SET reminder_sent = TRUE WHERE id = $1`, id)
	return err
}

func (s *Store) LoadWorkingHours(ctx context.Context) (*models.WorkingHours, error) {
	var wh models.WorkingHours
	err := s.pool.QueryRow(ctx, `SELECT start_hour, end_hour FROM working_hours WHERE id = 1`).
		Scan(&wh.StartHour, &wh.EndHour)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

func (s *Store) SaveWorkingHours(ctx context.Context, wh models.WorkingHours) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO working_hours (id, start_hour, end_hour, updated_at) VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE SET start_hour = EXCLUDED.start_hour, end_hour = EXCLUDED.end_hour, updated_at = now()
	`, wh.StartHour, wh.EndHour)
	return err
}
