package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConflicts(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC)
	existing := []Reservation{
		{ID: 1, Date: day, Start: At(10, 0), Duration: time.Hour, Status: StatusActive},
	}

	tests := []struct {
		name     string
		proposed Interval
		want     bool
	}{
		{"touching end", Interval{Start: At(11, 0), End: At(12, 0)}, false},
		{"touching start", Interval{Start: At(9, 0), End: At(10, 0)}, false},
		{"one minute inside", Interval{Start: At(10, 59), End: At(11, 59)}, true},
		{"identical", Interval{Start: At(10, 0), End: At(11, 0)}, true},
		{"enclosing", Interval{Start: At(9, 30), End: At(11, 30)}, true},
		{"enclosed", Interval{Start: At(10, 15), End: At(10, 45)}, true},
		{"disjoint", Interval{Start: At(14, 0), End: At(15, 30)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Conflicts(tt.proposed, existing, now))
		})
	}
}

func TestConflicts_IgnoresCancelledAndCompleted(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	proposed := Interval{Start: At(10, 0), End: At(11, 0)}

	cancelled := []Reservation{{Date: day, Start: At(10, 0), Duration: time.Hour, Status: StatusCancelled}}
	assert.False(t, Conflicts(proposed, cancelled, day))

	completed := []Reservation{{Date: day, Start: At(10, 0), Duration: time.Hour, Status: StatusActive}}
	afterEnd := time.Date(2024, 1, 1, 11, 1, 0, 0, time.UTC)
	assert.False(t, Conflicts(proposed, completed, afterEnd))
	assert.True(t, Conflicts(proposed, completed, day))
}

func TestReservation_Derived(t *testing.T) {
	r := Reservation{Date: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), Start: At(19, 0), Duration: 90 * time.Minute}

	assert.Equal(t, At(20, 30), r.End())
	assert.Equal(t, time.Date(2024, 3, 5, 19, 0, 0, 0, time.UTC), r.StartsAt())
	assert.Equal(t, time.Date(2024, 3, 5, 20, 30, 0, 0, time.UTC), r.EndsAt())
	assert.True(t, r.IsActive())
	assert.False(t, r.IsCompleted(r.EndsAt()))
	assert.True(t, r.IsCompleted(r.EndsAt().Add(time.Second)))
}
