package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

const reservationColumns = `id, owner_id, display_name, date, start_minute, end_minute, status, reminder_sent, created_at, cancelled_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *DB) scanReservation(row rowScanner) (*models.Reservation, error) {
	var (
		r           models.Reservation
		date        string
		start, end  int
		cancelledAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.OwnerID, &r.DisplayName, &date, &start, &end, &r.Status, &r.ReminderSent, &r.CreatedAt, &cancelledAt); err != nil {
		return nil, err
	}
	d, err := models.ParseDate(date, db.loc)
	if err != nil {
		return nil, err
	}
	r.Date = d
	r.Start = models.TimeOfDay(start)
	r.Duration = time.Duration(end-start) * time.Minute
	if cancelledAt.Valid {
		t := cancelledAt.Time
		r.CancelledAt = &t
	}
	return &r, nil
}

func (db *DB) queryReservations(ctx context.Context, q queryer, query string, args ...interface{}) ([]models.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		r, err := db.scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// LoadReservations returns the active reservations of date.
func (db *DB) LoadReservations(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx, db.DB,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE date = ? AND status = ?
		ORDER BY start_minute`,
		models.DateKey(date), models.StatusActive,
	)
}

// InsertIfFree checks for overlap and inserts within one immediate transaction.
func (db *DB) InsertIfFree(ctx context.Context, r *models.Reservation, now time.Time) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := db.queryReservations(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE date = ? AND status = ? AND start_minute < ? AND end_minute > ?`,
		models.DateKey(r.Date), models.StatusActive, int(r.End()), int(r.Start),
	)
	if err != nil {
		return false, fmt.Errorf("load day: %w", err)
	}
	if models.Conflicts(r.Interval(), existing, now) {
		return false, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (owner_id, display_name, date, start_minute, end_minute, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.OwnerID, r.DisplayName, models.DateKey(r.Date), int(r.Start), int(r.End()), models.StatusActive, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	r.ID = id
	r.Status = models.StatusActive
	r.CreatedAt = now
	return true, nil
}

// GetReservation returns nil when id is unknown or cancelled.
func (db *DB) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? AND status = ?`,
		id, models.StatusActive,
	)
	r, err := db.scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// DeleteReservation marks the reservation cancelled. The row is kept for history.
func (db *DB) DeleteReservation(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE reservations SET status = ?, cancelled_at = ? WHERE id = ? AND status = ?`,
		models.StatusCancelled, at, id, models.StatusActive,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (db *DB) ListByOwner(ctx context.Context, ownerID int64) ([]models.Reservation, error) {
	return db.queryReservations(ctx, db.DB,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE owner_id = ? AND status = ?
		ORDER BY date, start_minute`,
		ownerID, models.StatusActive,
	)
}

// ListBetween returns active reservations dated within [from, to].
func (db *DB) ListBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	return db.queryReservations(ctx, db.DB,
		`SELECT `+reservationColumns+` FROM reservations
		WHERE date >= ? AND date <= ? AND status = ?
		ORDER BY date, start_minute`,
		models.DateKey(from), models.DateKey(to), models.StatusActive,
	)
}

func (db *DB) MarkReminderSent(ctx context.Context, id int64) error {
	_, err := db.ExecContext(ctx, `UPDATE reservations SET reminder_sent = 1 WHERE id = ?`, id)
	return err
}

// LoadWorkingHours returns nil when no hours were saved yet.
func (db *DB) LoadWorkingHours(ctx context.Context) (*models.WorkingHours, error) {
	var wh models.WorkingHours
	err := db.QueryRowContext(ctx, `SELECT start_hour, end_hour FROM working_hours WHERE id = 1`).
		Scan(&wh.StartHour, &wh.EndHour)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

func (db *DB) SaveWorkingHours(ctx context.Context, wh models.WorkingHours) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO working_hours (id, start_hour, end_hour, updated_at) VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET start_hour = excluded.start_hour, end_hour = excluded.end_hour, updated_at = CURRENT_TIMESTAMP`,
		wh.StartHour, wh.EndHour,
	)
	return err
}
