package scheduler

import (
	"fmt"
	"time"
)

const DefaultMinNotice = 12 * time.Hour

// Fee describes the charge owed for a late cancellation. It is only signalled.
type Fee struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func (f Fee) String() string {
	return fmt.Sprintf("%d %s", f.Amount, f.Currency)
}

// Decision is the outcome of a cancellation policy evaluation.
type Decision struct {
	Free   bool
	Fee    Fee
	Notice time.Duration
}

// Evaluate is free iff start-now >= minNotice. The comparison is on exact
// durations, so the boundary itself is free.
func Evaluate(now, start time.Time, minNotice time.Duration, fee Fee) Decision {
	notice := start.Sub(now)
	if notice >= minNotice {
		return Decision{Free: true, Notice: notice}
	}
	return Decision{Fee: fee, Notice: notice}
}

// Policy binds the notice window and fee configured for the service.
type Policy struct {
	MinNotice time.Duration
	Fee       Fee
}

func (p Policy) Evaluate(now, start time.Time) Decision {
	return Evaluate(now, start, p.minNotice(), p.Fee)
}

// FreeUntil is the last instant a reservation starting at start can be
// cancelled without a fee.
func (p Policy) FreeUntil(start time.Time) time.Time {
	return start.Add(-p.minNotice())
}

// Window is the effective free-cancellation notice.
func (p Policy) Window() time.Duration {
	return p.minNotice()
}

func (p Policy) minNotice() time.Duration {
	if p.MinNotice <= 0 {
		return DefaultMinNotice
	}
	return p.MinNotice
}
