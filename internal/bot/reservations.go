package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RuslanDrummer/telegram-bot/internal/booking"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
	"github.com/RuslanDrummer/telegram-bot/internal/slots"
)

// sendMyReservations is listMyReservations; finished lessons are hidden.
func (b *Bot) sendMyReservations(ctx context.Context, chatID int64, messageID int, userID int64, page int) {
	list, err := b.sched.ListMyReservations(ctx, userID)
	if err != nil {
		b.edit(chatID, messageID, errorText(err), nil)
		return
	}

	upcoming := list[:0]
	for _, r := range list {
		if !r.Completed {
			upcoming = append(upcoming, r)
		}
	}
	if len(upcoming) == 0 {
		b.edit(chatID, messageID, msgNoReservations, nil)
		return
	}

	text, markup := renderReservationsPage(upcoming, page, b.sched.Policy())
	b.edit(chatID, messageID, text, &markup)
}

func (b *Bot) cancelReservation(ctx context.Context, chatID, userID int64, raw string) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		b.reply(chatID, errorText(scheduler.ErrNotFound))
		return
	}

	res, err := b.sched.Cancel(ctx, userID, id)
	if err != nil {
		b.reply(chatID, errorText(err))
		return
	}

	r := res.Reservation
	when := fmt.Sprintf("%s %s-%s", booking.FormatDay(r.Date), r.Start, r.End())
	switch res.Status {
	case scheduler.CancelPenalized:
		msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"⚠️ До заняття %s залишилось менше ніж %s.\n"+
				"Безкоштовне скасування вже неможливе, запис залишається активним.\n"+
				"Вартість пізнього скасування: *%s*. Зв'яжіться з викладачем.",
			when,
			slots.FormatDuration(b.sched.Policy().Window()),
			res.Fee,
		))
		msg.ParseMode = tgbotapi.ModeMarkdown
		b.send(msg)
	default:
		b.reply(chatID, fmt.Sprintf("✅ Заняття %s скасовано.", when))
	}
}
