package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/RuslanDrummer/telegram-bot/internal/booking"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
	"github.com/RuslanDrummer/telegram-bot/internal/slots"
)

const (
	slotsPerRow = 4
	daysPerRow  = 2
)

func navRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", "back"),
		tgbotapi.NewInlineKeyboardButtonData("❌ Скасувати", "abort"),
	)
}

func daysKeyboard(days []scheduler.DayAvailability) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, d := range days {
		label := fmt.Sprintf("%s (%d)", booking.FormatDay(d.Date), d.Slots)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "day:"+models.DateKey(d.Date)))
		if len(row) == daysPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Скасувати", "abort"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func slotsKeyboard(starts []models.TimeOfDay) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, s := range starts {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(s.String(), "slot:"+s.String()))
		if len(row) == slotsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, navRow())
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func durationsKeyboard(options []time.Duration) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, d := range options {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			slots.FormatDuration(d),
			fmt.Sprintf("dur:%d", int(d/time.Minute)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row, navRow())
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Підтвердити", "confirm"),
		),
		navRow(),
	)
}

func backKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(navRow())
}
