package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

func TestFSMTransitions(t *testing.T) {
	fsm := NewFSM()

	tests := []struct {
		name        string
		from        State
		to          State
		shouldAllow bool
	}{
		{"idle to ask day", StateIdle, StateAskDay, true},
		{"empty state counts as idle", "", StateAskDay, true},
		{"ask day to ask time", StateAskDay, StateAskTime, true},
		{"ask time to ask duration", StateAskTime, StateAskDuration, true},
		{"ask duration to confirm", StateAskDuration, StateConfirm, true},
		{"confirm to complete", StateConfirm, StateComplete, true},
		// Back transitions
		{"ask time back to ask day", StateAskTime, StateAskDay, true},
		{"confirm back to ask duration", StateConfirm, StateAskDuration, true},
		// Invalid transitions
		{"idle to complete", StateIdle, StateComplete, false},
		{"ask day to confirm", StateAskDay, StateConfirm, false},
		{"ask time to complete", StateAskTime, StateComplete, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := fsm.CanTransition(tt.from, tt.to)
			if allowed != tt.shouldAllow {
				t.Errorf("transition %s -> %s: expected allowed=%v, got %v",
					tt.from, tt.to, tt.shouldAllow, allowed)
			}
		})
	}
}

func TestFSMNext(t *testing.T) {
	fsm := NewFSM()

	if err := fsm.Next(StateConfirm, StateAskDay); err != nil {
		t.Errorf("restart must always be allowed, got %v", err)
	}
	if err := fsm.Next(StateIdle, StateComplete); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPrevious(t *testing.T) {
	if got := Previous(StateConfirm); got != StateAskDuration {
		t.Errorf("expected ask_duration, got %s", got)
	}
	if got := Previous(StateAskDay); got != StateAskDay {
		t.Errorf("expected ask_day, got %s", got)
	}
}

func TestDraftRoundTrip(t *testing.T) {
	loc := time.UTC
	draft := Draft{
		Date:     time.Date(2030, 1, 2, 0, 0, 0, 0, loc),
		Start:    models.At(9, 30),
		HasStart: true,
		Duration: 90 * time.Minute,
	}

	// Simulate the JSON round trip that turns ints into float64.
	data := draft.Data()
	for k, v := range data {
		if n, ok := v.(int); ok {
			data[k] = float64(n)
		}
	}
	got := DraftFromState(&models.UserState{TempData: data}, loc)

	if !got.Complete() {
		t.Fatal("expected complete draft")
	}
	if !got.Date.Equal(draft.Date) || got.Start != draft.Start || got.Duration != draft.Duration {
		t.Errorf("round trip mismatch: %+v vs %+v", got, draft)
	}
}

func TestDraftMidnightStart(t *testing.T) {
	draft := Draft{Date: time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), HasStart: true}
	got := DraftFromState(&models.UserState{TempData: draft.Data()}, time.UTC)
	if !got.HasStart || got.Start != 0 {
		t.Errorf("00:00 start must survive, got %+v", got)
	}
	if got.Complete() {
		t.Error("draft without duration is not complete")
	}
}

func TestDraftFromNilState(t *testing.T) {
	if d := DraftFromState(nil, time.UTC); d.Complete() || !d.Date.IsZero() {
		t.Errorf("expected empty draft, got %+v", d)
	}
}

func TestFormatDay(t *testing.T) {
	got := FormatDay(time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC))
	if got != "Пн 07.01" {
		t.Errorf("unexpected %q", got)
	}
}
