package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/shared/audit"
)

// handleHours shows or changes working hours: "/hours" or "/hours 9 21".
func (b *Bot) handleHours(ctx context.Context, chatID, userID int64, args string) {
	if err := b.acl.RequireAdmin(ctx, userID, "hours"); err != nil {
		b.reply(chatID, msgAdminOnly)
		return
	}

	fields := strings.Fields(args)
	if len(fields) == 0 {
		wh, err := b.sched.WorkingHours(ctx)
		if err != nil {
			b.reply(chatID, errorText(err))
			return
		}
		b.reply(chatID, fmt.Sprintf("🕘 Робочі години: %s\nЗмінити: /hours 9 21", wh))
		return
	}
	if len(fields) != 2 {
		b.reply(chatID, "Використання: /hours <початок> <кінець>, наприклад /hours 9 21")
		return
	}

	start, err1 := strconv.Atoi(fields[0])
	end, err2 := strconv.Atoi(fields[1])
	if err1 != nil || err2 != nil {
		b.reply(chatID, "Години мають бути цілими числами, наприклад /hours 9 21")
		return
	}

	wh := models.WorkingHours{StartHour: start, EndHour: end}
	if err := b.sched.SetWorkingHours(ctx, wh); err != nil {
		b.reply(chatID, errorText(err))
		return
	}
	zerolog.Ctx(ctx).Info().Int64("admin_id", userID).Str("working_hours", wh.String()).Msg("working hours changed via bot")
	b.reply(chatID, fmt.Sprintf("✅ Нові робочі години: %s", wh))
}

// handleExport sends an .xlsx with the reservations of a month:
// "/export" for the current one or "/export 2030-01".
func (b *Bot) handleExport(ctx context.Context, chatID, userID int64, args string) {
	if err := b.acl.RequireAdmin(ctx, userID, "export"); err != nil {
		b.reply(chatID, msgAdminOnly)
		return
	}
	if b.exporter == nil {
		b.reply(chatID, "Експорт вимкнено.")
		return
	}

	month := b.sched.Now()
	if arg := strings.TrimSpace(args); arg != "" {
		t, err := time.ParseInLocation("2006-01", arg, b.sched.Location())
		if err != nil {
			b.reply(chatID, "Вкажіть місяць у форматі РРРР-ММ, наприклад /export 2030-01")
			return
		}
		month = t
	}
	from, to := audit.MonthRange(month)

	var buf bytes.Buffer
	n, err := b.exporter.Export(ctx, &buf, from, to)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("export failed")
		b.reply(chatID, msgServiceUnavailable)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  audit.GenerateFilename(from, to),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("📊 Записів: %d", n)
	b.send(doc)
}
