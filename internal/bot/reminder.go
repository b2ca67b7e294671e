package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RuslanDrummer/telegram-bot/internal/booking"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/shared/reminders"
)

// SendReminder notifies the owner about an upcoming lesson. The owner's
// Telegram ID doubles as the private chat ID.
func (b *Bot) SendReminder(ctx context.Context, r models.Reservation, freeUntil time.Time) error {
	msg := tgbotapi.NewMessage(r.OwnerID, formatReminderMessage(r, freeUntil, b.sched.Now()))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Скасувати заняття", fmt.Sprintf("cancel:%d", r.ID)),
		),
	)

	if _, err := b.tg.Send(msg); err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			return &reminders.TelegramError{
				Code:       apiErr.Code,
				Message:    apiErr.Message,
				RetryAfter: apiErr.RetryAfter,
			}
		}
		return err
	}
	return nil
}

func formatReminderMessage(r models.Reservation, freeUntil, now time.Time) string {
	text := fmt.Sprintf("🔔 *Нагадування*\n\nУ вас заняття %s о %s (до %s).",
		booking.FormatDay(r.Date), r.Start, r.End())
	if now.After(freeUntil) {
		return text + "\n\nБезкоштовне скасування вже недоступне."
	}
	return text + fmt.Sprintf("\n\nБезкоштовно скасувати можна до %s.", freeUntil.Format("02.01 15:04"))
}
