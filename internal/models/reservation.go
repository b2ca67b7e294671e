package models

import (
	"errors"
	"fmt"
	"time"
)

// Reservation statuses.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// Reservation is a single booked lesson on the shared resource.
type Reservation struct {
	ID           int64         `json:"id"`
	OwnerID      int64         `json:"owner_id"`
	DisplayName  string        `json:"display_name"`
	Date         time.Time     `json:"date"`
	Start        TimeOfDay     `json:"start"`
	Duration     time.Duration `json:"duration"`
	Status       string        `json:"status"`
	ReminderSent bool          `json:"reminder_sent"`
	CreatedAt    time.Time     `json:"created_at"`
	CancelledAt  *time.Time    `json:"cancelled_at,omitempty"`
}

// End is start plus duration.
func (r *Reservation) End() TimeOfDay {
	return r.Start.Add(r.Duration)
}

func (r *Reservation) StartsAt() time.Time {
	return r.Start.On(r.Date)
}

func (r *Reservation) EndsAt() time.Time {
	return r.StartsAt().Add(r.Duration)
}

// Interval returns the half-open [start, end) span of the reservation.
func (r *Reservation) Interval() Interval {
	return Interval{Start: r.Start, End: r.End()}
}

// IsCompleted reports whether the reservation has already ended at now.
func (r *Reservation) IsCompleted(now time.Time) bool {
	return r.EndsAt().Before(now)
}

func (r *Reservation) IsActive() bool {
	return r.Status == "" || r.Status == StatusActive
}

// WorkingHours bounds the daily bookable interval, end exclusive.
type WorkingHours struct {
	StartHour int `json:"start_hour" yaml:"start_hour"`
	EndHour   int `json:"end_hour" yaml:"end_hour"`
}

var ErrInvalidWorkingHours = errors.New("invalid working hours")

func (w WorkingHours) Validate() error {
	if w.StartHour < 0 || w.EndHour > 24 || w.StartHour >= w.EndHour {
		return fmt.Errorf("%w: %d-%d", ErrInvalidWorkingHours, w.StartHour, w.EndHour)
	}
	return nil
}

func (w WorkingHours) Opens() TimeOfDay { return At(w.StartHour, 0) }
func (w WorkingHours) Closes() TimeOfDay { return At(w.EndHour, 0) }

// Contains reports whether [start, end) lies within the working day.
func (w WorkingHours) Contains(iv Interval) bool {
	return iv.Start >= w.Opens() && iv.End <= w.Closes() && iv.Start < iv.End
}

func (w WorkingHours) String() string {
	return fmt.Sprintf("%02d:00-%02d:00", w.StartHour, w.EndHour)
}
