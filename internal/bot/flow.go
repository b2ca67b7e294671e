package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/booking"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
)

func (b *Bot) loadDraft(ctx context.Context, userID int64) (booking.State, booking.Draft, error) {
	state, err := b.states.GetUserState(ctx, userID)
	if err != nil {
		return booking.StateIdle, booking.Draft{}, err
	}
	if state == nil || state.Step == "" {
		return booking.StateIdle, booking.Draft{}, nil
	}
	return booking.State(state.Step), booking.DraftFromState(state, b.sched.Location()), nil
}

// advance moves the dialogue to step. A stale button press that the FSM
// rejects restarts the flow.
func (b *Bot) advance(ctx context.Context, chatID int64, messageID int, userID int64, from, to booking.State, d booking.Draft) bool {
	if err := b.fsm.Next(from, to); err != nil {
		zerolog.Ctx(ctx).Info().Err(err).Int64("user_id", userID).Msg("restarting booking dialogue")
		b.sendDays(ctx, chatID, messageID, userID)
		return false
	}
	if err := b.states.SetUserState(ctx, userID, string(to), d.Data()); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("save dialogue state")
		b.reply(chatID, msgServiceUnavailable)
		return false
	}
	return true
}

// clearDraft drops the dialogue state. A failure only leaves a draft that
// expires with its TTL.
func (b *Bot) clearDraft(ctx context.Context, userID int64) {
	if err := b.states.ClearUserState(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("clear dialogue state")
	}
}

func (b *Bot) startBooking(ctx context.Context, chatID, userID int64) {
	b.clearDraft(ctx, userID)
	b.sendDays(ctx, chatID, 0, userID)
}

// sendDays is listAvailableDays rendered as buttons.
func (b *Bot) sendDays(ctx context.Context, chatID int64, messageID int, userID int64) {
	days, err := b.sched.ListAvailableDays(ctx, 0)
	if err != nil {
		b.edit(chatID, messageID, errorText(err), nil)
		return
	}
	if len(days) == 0 {
		b.clearDraft(ctx, userID)
		b.edit(chatID, messageID, fmt.Sprintf(msgNoDays, b.sched.WindowDays()), nil)
		return
	}
	if err := b.states.SetUserState(ctx, userID, string(booking.StateAskDay), nil); err != nil {
		b.edit(chatID, messageID, msgServiceUnavailable, nil)
		return
	}
	kb := daysKeyboard(days)
	b.edit(chatID, messageID, booking.StatePrompts[booking.StateAskDay], &kb)
}

func (b *Bot) chooseDay(ctx context.Context, chatID int64, messageID int, userID int64, raw string) {
	date, err := models.ParseDate(raw, b.sched.Location())
	if err != nil {
		b.sendDays(ctx, chatID, messageID, userID)
		return
	}
	step, _, err := b.loadDraft(ctx, userID)
	if err != nil {
		b.reply(chatID, msgServiceUnavailable)
		return
	}
	d := booking.Draft{Date: date}
	if !b.advance(ctx, chatID, messageID, userID, step, booking.StateAskTime, d) {
		return
	}
	b.sendSlots(ctx, chatID, messageID, userID, d)
}

// sendSlots is listAvailableSlots rendered as buttons.
func (b *Bot) sendSlots(ctx context.Context, chatID int64, messageID int, userID int64, d booking.Draft) {
	starts, err := b.sched.ListAvailableSlots(ctx, d.Date)
	switch {
	case errors.Is(err, scheduler.ErrNoAvailability):
		kb := backKeyboard()
		b.edit(chatID, messageID, fmt.Sprintf(msgDayFull, booking.FormatDay(d.Date)), &kb)
		return
	case err != nil:
		b.edit(chatID, messageID, errorText(err), nil)
		return
	}
	kb := slotsKeyboard(starts)
	text := fmt.Sprintf("%s\n📅 %s", booking.StatePrompts[booking.StateAskTime], booking.FormatDay(d.Date))
	b.edit(chatID, messageID, text, &kb)
}

func (b *Bot) chooseSlot(ctx context.Context, chatID int64, messageID int, userID int64, raw string) {
	step, d, err := b.loadDraft(ctx, userID)
	if err != nil {
		b.reply(chatID, msgServiceUnavailable)
		return
	}
	if d.Date.IsZero() {
		b.sendDays(ctx, chatID, messageID, userID)
		return
	}
	start, err := models.ParseTimeOfDay(strings.TrimSpace(raw))
	if err != nil {
		b.reply(chatID, msgBadTime)
		return
	}

	options, err := b.sched.DurationOptions(ctx, d.Date, start)
	if err != nil {
		b.edit(chatID, messageID, errorText(err), nil)
		return
	}
	if len(options) == 0 {
		b.reply(chatID, msgSlotGone)
		b.sendSlots(ctx, chatID, 0, userID, d)
		return
	}

	d.Start, d.HasStart, d.Duration = start, true, 0
	if !b.advance(ctx, chatID, messageID, userID, step, booking.StateAskDuration, d) {
		return
	}
	kb := durationsKeyboard(options)
	text := fmt.Sprintf("%s\n📅 %s ⏰ %s", booking.StatePrompts[booking.StateAskDuration], booking.FormatDay(d.Date), start)
	b.edit(chatID, messageID, text, &kb)
}

func (b *Bot) chooseDuration(ctx context.Context, chatID int64, messageID int, userID int64, raw string) {
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes <= 0 {
		return
	}
	step, d, err := b.loadDraft(ctx, userID)
	if err != nil {
		b.reply(chatID, msgServiceUnavailable)
		return
	}
	if d.Date.IsZero() || !d.HasStart {
		b.sendDays(ctx, chatID, messageID, userID)
		return
	}

	d.Duration = time.Duration(minutes) * time.Minute
	if !b.advance(ctx, chatID, messageID, userID, step, booking.StateConfirm, d) {
		return
	}
	kb := confirmKeyboard()
	b.edit(chatID, messageID, booking.FormatConfirmation(d, b.sched.Policy().Window()), &kb)
}

// confirm is the reserve operation.
func (b *Bot) confirm(ctx context.Context, chatID int64, messageID int, from *tgbotapi.User) {
	step, d, err := b.loadDraft(ctx, from.ID)
	if err != nil {
		b.reply(chatID, msgServiceUnavailable)
		return
	}
	if step != booking.StateConfirm || !d.Complete() {
		b.edit(chatID, messageID, msgSessionExpired, nil)
		return
	}

	r, err := b.sched.Reserve(ctx, scheduler.ReserveRequest{
		OwnerID:     from.ID,
		DisplayName: displayName(from),
		Date:        d.Date,
		Start:       d.Start,
		Duration:    d.Duration,
	})
	switch {
	case err == nil:
		b.clearDraft(ctx, from.ID)
		b.edit(chatID, messageID, booking.FormatComplete(r, b.sched.Policy().FreeUntil(r.StartsAt())), nil)
	case errors.Is(err, scheduler.ErrSlotTaken):
		b.edit(chatID, messageID, errorText(err), nil)
		d.HasStart, d.Duration = false, 0
		if b.advance(ctx, chatID, 0, from.ID, step, booking.StateAskTime, d) {
			b.sendSlots(ctx, chatID, 0, from.ID, d)
		}
	case errors.Is(err, scheduler.ErrPastTime):
		b.edit(chatID, messageID, errorText(err), nil)
		b.sendDays(ctx, chatID, 0, from.ID)
	default:
		b.edit(chatID, messageID, errorText(err), nil)
	}
}

func (b *Bot) back(ctx context.Context, chatID int64, messageID int, userID int64) {
	step, d, err := b.loadDraft(ctx, userID)
	if err != nil {
		b.reply(chatID, msgServiceUnavailable)
		return
	}
	switch booking.Previous(step) {
	case booking.StateAskTime:
		b.chooseDay(ctx, chatID, messageID, userID, models.DateKey(d.Date))
	case booking.StateAskDuration:
		b.chooseSlot(ctx, chatID, messageID, userID, d.Start.String())
	default:
		b.sendDays(ctx, chatID, messageID, userID)
	}
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.UserName != "" {
		name = "@" + u.UserName
	}
	return name
}
