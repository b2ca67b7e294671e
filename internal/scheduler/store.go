package scheduler

import (
	"context"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// Store is the durable home of reservations and working hours.
//
// InsertIfFree is the only write path for new reservations. Implementations
// must run the overlap check against the current active reservations of the
// date (models.Conflicts) and the insert as one atomic unit with respect to
// that date, assign ID, Status and CreatedAt on success, and report false
// when the proposal overlaps. A failed call must leave nothing visible.
//
// Cancelled reservations are retained but invisible to LoadReservations,
// GetReservation and ListByOwner. DeleteReservation reports false when the
// reservation was already gone.
type Store interface {
	LoadReservations(ctx context.Context, date time.Time) ([]models.Reservation, error)
	InsertIfFree(ctx context.Context, r *models.Reservation, now time.Time) (bool, error)
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	DeleteReservation(ctx context.Context, id int64, at time.Time) (bool, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]models.Reservation, error)
	LoadWorkingHours(ctx context.Context) (*models.WorkingHours, error)
	SaveWorkingHours(ctx context.Context, wh models.WorkingHours) error
	Ping(ctx context.Context) error
}
