package reminders

import (
	"context"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// Store gives the reminder loop access to upcoming reservations.
type Store interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

// Notifier delivers one reminder to the reservation owner. freeUntil is the
// last moment the lesson can still be cancelled without a fee.
type Notifier interface {
	SendReminder(ctx context.Context, r models.Reservation, freeUntil time.Time) error
}

// Policy reports the free-cancellation deadline for a lesson start.
type Policy interface {
	FreeUntil(start time.Time) time.Time
}
