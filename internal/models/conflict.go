package models

import "time"

// Interval is a half-open [Start, End) span within one day.
type Interval struct {
	Start TimeOfDay
	End   TimeOfDay
}

// Overlaps uses half-open semantics: touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// Conflicts reports whether proposed overlaps any active, not yet completed
// reservation in existing. Callers pass reservations of the proposal's date.
func Conflicts(proposed Interval, existing []Reservation, now time.Time) bool {
	for i := range existing {
		r := &existing[i]
		if !r.IsActive() || r.IsCompleted(now) {
			continue
		}
		if proposed.Overlaps(r.Interval()) {
			return true
		}
	}
	return false
}
