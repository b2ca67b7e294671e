package bot

import (
	"errors"

	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
)

const (
	msgWelcome = "👋 Вітаю! Тут можна записатися на заняття з барабанів.\n\n" +
		"/book - записатися на заняття\n" +
		"/my - мої заняття та скасування\n" +
		"/cancel - перервати запис"
	msgUnknownCommand     = "Невідома команда. Спробуйте /help"
	msgUseButtons         = "Скористайтеся кнопками меню або командою /book."
	msgRateLimited        = "⏳ Забагато повідомлень. Зачекайте хвилину."
	msgServiceUnavailable = "⚠️ Сервіс тимчасово недоступний. Спробуйте трохи пізніше."
	msgNoDays             = "😔 На найближчі %d днів вільних занять немає."
	msgDayFull            = "😔 На %s вільного часу вже немає. Оберіть інший день."
	msgBadTime            = "Вкажіть час у форматі ГГ:ХХ, наприклад 14:30."
	msgSlotGone           = "😔 Цей час уже недоступний. Оберіть інший."
	msgSessionExpired     = "Сесія запису завершилась. Почніть знову: /book"
	msgNoReservations     = "У вас немає запланованих занять. Записатися: /book"
	msgAdminOnly          = "⛔ Команда доступна лише адміністратору."
	msgSomethingWrong     = "Щось пішло не так. Спробуйте ще раз: /book"
)

// errorText maps scheduler errors to user-facing messages.
func errorText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, scheduler.ErrInfrastructure):
		return msgServiceUnavailable
	case errors.Is(err, scheduler.ErrSlotTaken):
		return "😔 Цей час щойно зайняли. Оберіть, будь ласка, інший."
	case errors.Is(err, scheduler.ErrPastTime):
		return "⏰ Цей час уже минув. Оберіть інший."
	case errors.Is(err, scheduler.ErrNotFound):
		return "Запис не знайдено. Можливо, його вже скасовано."
	case errors.Is(err, scheduler.ErrNoAvailability):
		return "😔 На цей день вільного часу немає."
	}

	switch scheduler.RuleOf(err) {
	case scheduler.RuleOutsideWorkingHours:
		return "Заняття має повністю вкладатися в робочі години."
	case scheduler.RuleDurationNotAllowed:
		return "Така тривалість заняття недоступна."
	case scheduler.RuleInvalidWorkingHours:
		return "Некоректні години. Приклад: /hours 9 21"
	case scheduler.RuleDateInPast:
		return "Цей день уже минув."
	case scheduler.RuleAlreadyCompleted:
		return "Це заняття вже відбулося, його не можна скасувати."
	}
	if errors.Is(err, scheduler.ErrInvalidRequest) {
		return "Некоректний запит. Почніть знову: /book"
	}
	return msgSomethingWrong
}
