package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RuslanDrummer/telegram-bot/internal/booking"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
	"github.com/RuslanDrummer/telegram-bot/internal/slots"
)

const reservationsPerPage = 5

// renderReservationsPage builds the text and buttons of one page of the
// owner's upcoming lessons.
func renderReservationsPage(list []scheduler.OwnedReservation, page int, policy scheduler.Policy) (string, tgbotapi.InlineKeyboardMarkup) {
	pages := (len(list) + reservationsPerPage - 1) / reservationsPerPage
	if page < 0 || page >= pages {
		page = 0
	}
	startIdx := page * reservationsPerPage
	endIdx := startIdx + reservationsPerPage
	if endIdx > len(list) {
		endIdx = len(list)
	}

	var message strings.Builder
	message.WriteString("📋 *Ваші заняття*\n")
	if pages > 1 {
		message.WriteString(fmt.Sprintf("Сторінка %d з %d\n", page+1, pages))
	}
	message.WriteString("\n")

	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, r := range list[startIdx:endIdx] {
		message.WriteString(fmt.Sprintf("%d. 📅 %s ⏰ %s-%s (%s)\n",
			startIdx+i+1,
			booking.FormatDay(r.Date),
			r.Start, r.End(),
			slots.FormatDuration(r.Duration),
		))
		message.WriteString(fmt.Sprintf("   Безкоштовне скасування до %s\n", r.FreeUntil.Format("02.01 15:04")))

		keyboard = append(keyboard, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("❌ Скасувати %s %s", booking.FormatDay(r.Date), r.Start),
				fmt.Sprintf("cancel:%d", r.ID),
			),
		))
	}
	message.WriteString(fmt.Sprintf("\nПізніше ніж за %s до початку скасування платне.", slots.FormatDuration(policy.Window())))

	var navButtons []tgbotapi.InlineKeyboardButton
	if page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", fmt.Sprintf("page:my:%d", page-1)))
	}
	if endIdx < len(list) {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Далі ➡️", fmt.Sprintf("page:my:%d", page+1)))
	}
	if len(navButtons) > 0 {
		keyboard = append(keyboard, navButtons)
	}

	return message.String(), tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}
