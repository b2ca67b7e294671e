// Package booking holds the chat dialogue that assembles a reservation:
// day, then start time, then lesson length, then confirmation.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/slots"
)

// State represents the current step of the booking dialogue.
type State string

const (
	StateIdle        State = "idle"
	StateAskDay      State = "ask_day"
	StateAskTime     State = "ask_time"
	StateAskDuration State = "ask_duration"
	StateConfirm     State = "confirm"
	StateComplete    State = "complete"
	StateCanceled    State = "canceled"
)

var ErrInvalidTransition = errors.New("invalid dialogue transition")

// FSM manages state transitions for the booking dialogue.
type FSM struct {
	transitions map[State][]State
}

func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:        {StateAskDay},
			StateAskDay:      {StateAskTime, StateCanceled},
			StateAskTime:     {StateAskDuration, StateAskDay, StateCanceled},
			StateAskDuration: {StateConfirm, StateAskTime, StateCanceled},
			StateConfirm:     {StateComplete, StateAskDuration, StateAskTime, StateCanceled},
			StateComplete:    {StateIdle, StateAskDay},
			StateCanceled:    {StateIdle, StateAskDay},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	if from == "" {
		from = StateIdle
	}
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next validates from -> to. Restarting the dialogue with StateAskDay is
// always allowed so /book works from any step.
func (f *FSM) Next(from, to State) error {
	if to == StateAskDay || to == StateCanceled || f.CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// Previous returns the step a "back" button leads to.
func Previous(s State) State {
	switch s {
	case StateAskTime:
		return StateAskDay
	case StateAskDuration:
		return StateAskTime
	case StateConfirm:
		return StateAskDuration
	default:
		return StateAskDay
	}
}

const (
	keyDate     = "date"
	keyStart    = "start"
	keyDuration = "duration"
)

// Draft is the reservation being assembled. It round-trips through
// models.UserState so the dialogue survives restarts when Redis is used.
type Draft struct {
	Date     time.Time
	Start    models.TimeOfDay
	HasStart bool
	Duration time.Duration
}

func DraftFromState(state *models.UserState, loc *time.Location) Draft {
	var d Draft
	if state == nil {
		return d
	}
	if s := state.GetString(keyDate); s != "" {
		if date, err := models.ParseDate(s, loc); err == nil {
			d.Date = date
		}
	}
	if _, ok := state.TempData[keyStart]; ok {
		d.Start = models.TimeOfDay(state.GetInt64(keyStart))
		d.HasStart = true
	}
	d.Duration = state.GetDuration(keyDuration)
	return d
}

// Data encodes the draft for models.UserState.TempData.
func (d Draft) Data() map[string]interface{} {
	data := make(map[string]interface{})
	if !d.Date.IsZero() {
		data[keyDate] = models.DateKey(d.Date)
	}
	if d.HasStart {
		data[keyStart] = int(d.Start)
	}
	if d.Duration > 0 {
		data[keyDuration] = int(d.Duration / time.Minute)
	}
	return data
}

func (d Draft) Complete() bool {
	return !d.Date.IsZero() && d.HasStart && d.Duration > 0
}

var StatePrompts = map[State]string{
	StateAskDay:      "📅 Оберіть день заняття:",
	StateAskTime:     "⏰ Оберіть час початку:",
	StateAskDuration: "⏱ Оберіть тривалість заняття:",
	StateConfirm:     "Перевірте дані запису.",
	StateCanceled:    "❌ Запис скасовано.",
}

var weekdays = [...]string{"Нд", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}

// FormatDay renders a date as "Пн 02.01".
func FormatDay(date time.Time) string {
	return fmt.Sprintf("%s %s", weekdays[date.Weekday()], date.Format("02.01"))
}

func FormatConfirmation(d Draft, freeCancelNotice time.Duration) string {
	end := d.Start.Add(d.Duration)
	return fmt.Sprintf(`📋 *Ваш запис:*

📅 *Дата:* %s
⏰ *Час:* %s – %s
⏱ *Тривалість:* %s

Безкоштовне скасування можливе не пізніше ніж за %s до початку.

Підтвердити?`,
		d.Date.Format("02.01.2006"),
		d.Start, end,
		slots.FormatDuration(d.Duration),
		slots.FormatDuration(freeCancelNotice),
	)
}

func FormatComplete(r *models.Reservation, freeUntil time.Time) string {
	return fmt.Sprintf(`✅ *Запис #%d підтверджено!*

📅 %s, %s – %s

Скасувати безкоштовно можна до %s.`,
		r.ID,
		r.Date.Format("02.01.2006"),
		r.Start, r.End(),
		freeUntil.Format("02.01 15:04"),
	)
}
