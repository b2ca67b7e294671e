package bot

import (
	"context"
	"io"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// telegramClient is the part of the Bot API the front-end talks to.
type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	SelfUser() tgbotapi.User
}

// apiClient wraps *tgbotapi.BotAPI.
type apiClient struct {
	*tgbotapi.BotAPI
}

func (c apiClient) SelfUser() tgbotapi.User { return c.Self }

// Exporter renders reservations of a date range as an .xlsx workbook.
type Exporter interface {
	Export(ctx context.Context, w io.Writer, from, to time.Time) (int, error)
}
