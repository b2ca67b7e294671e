package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/booking"
	"github.com/RuslanDrummer/telegram-bot/internal/metrics"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
	"github.com/RuslanDrummer/telegram-bot/internal/service"
	"github.com/RuslanDrummer/telegram-bot/shared/access"
)

const (
	btnBook = "🥁 Записатися"
	btnMy   = "📋 Мої заняття"
	btnHelp = "ℹ️ Допомога"
)

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnBook),
		tgbotapi.NewKeyboardButton(btnMy),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnHelp),
	),
)

// Options tune the chat front-end.
type Options struct {
	// MessagesPerMinute caps updates per user; 0 disables the limit.
	MessagesPerMinute int
}

// Bot is the Telegram front-end of the scheduler.
type Bot struct {
	tg       telegramClient
	sched    *scheduler.Scheduler
	states   *service.StateService
	fsm      *booking.FSM
	acl      *access.Service
	exporter Exporter
	opts     Options
	logger   *zerolog.Logger
}

func New(
	token string,
	sched *scheduler.Scheduler,
	states *service.StateService,
	acl *access.Service,
	exporter Exporter,
	opts Options,
	logger *zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return newBot(apiClient{BotAPI: api}, sched, states, acl, exporter, opts, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(
	tg telegramClient,
	sched *scheduler.Scheduler,
	states *service.StateService,
	acl *access.Service,
	exporter Exporter,
	opts Options,
	logger *zerolog.Logger,
) (*Bot, error) {
	return newBot(tg, sched, states, acl, exporter, opts, logger)
}

func newBot(
	tg telegramClient,
	sched *scheduler.Scheduler,
	states *service.StateService,
	acl *access.Service,
	exporter Exporter,
	opts Options,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tg == nil {
		return nil, errors.New("telegram client is nil")
	}
	if sched == nil || states == nil || acl == nil {
		return nil, errors.New("scheduler, state service and access control are required")
	}
	l := logger.With().Str("component", "bot").Logger()
	return &Bot{
		tg:       tg,
		sched:    sched,
		states:   states,
		fsm:      booking.NewFSM(),
		acl:      acl,
		exporter: exporter,
		opts:     opts,
		logger:   &l,
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Bot authorized")

	for {
		select {
		case <-ctx.Done():
			b.tg.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.HandleUpdate(l.WithContext(ctx), &update)
		}
	}
}

// HandleUpdate processes a single Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		cq := update.CallbackQuery
		metrics.IncBotUpdate("callback")
		if !b.allow(ctx, cq.From.ID, cq.Message.Chat.ID) {
			_ = b.answerCallback(cq.ID, "")
			return
		}
		l.Debug().
			Int64("user_id", cq.From.ID).
			Str("data", cq.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, cq)
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		metrics.IncBotUpdate("message")
		if !b.allow(ctx, msg.From.ID, msg.Chat.ID) {
			return
		}
		l.Debug().
			Int64("user_id", msg.From.ID).
			Str("text", msg.Text).
			Msg("Handling message")
		b.handleMessage(ctx, msg)
	default:
		metrics.IncBotUpdate("ignored")
	}
}

func (b *Bot) allow(ctx context.Context, userID, chatID int64) bool {
	if b.states.Allow(ctx, userID, b.opts.MessagesPerMinute) {
		return true
	}
	metrics.IncBotUpdate("rate_limited")
	b.reply(chatID, msgRateLimited)
	return false
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID, userID := msg.Chat.ID, msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.clearDraft(ctx, userID)
			b.sendMainMenu(chatID, msgWelcome)
		case "book":
			b.startBooking(ctx, chatID, userID)
		case "my":
			b.sendMyReservations(ctx, chatID, 0, userID, 0)
		case "cancel":
			b.clearDraft(ctx, userID)
			b.sendMainMenu(chatID, booking.StatePrompts[booking.StateCanceled])
		case "hours":
			b.handleHours(ctx, chatID, userID, msg.CommandArguments())
		case "export":
			b.handleExport(ctx, chatID, userID, msg.CommandArguments())
		default:
			b.reply(chatID, msgUnknownCommand)
		}
		return
	}

	switch text {
	case btnBook:
		b.startBooking(ctx, chatID, userID)
		return
	case btnMy:
		b.sendMyReservations(ctx, chatID, 0, userID, 0)
		return
	case btnHelp:
		b.sendMainMenu(chatID, msgWelcome)
		return
	}

	// Typed "HH:MM" is accepted while choosing a start time.
	state, err := b.states.GetUserState(ctx, userID)
	if err == nil && state != nil && booking.State(state.Step) == booking.StateAskTime {
		b.chooseSlot(ctx, chatID, 0, userID, text)
		return
	}
	b.reply(chatID, msgUseButtons)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	_ = b.answerCallback(cq.ID, "")

	data := cq.Data
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	messageID := cq.Message.MessageID

	switch {
	case data == "noop":
	case strings.HasPrefix(data, "day:"):
		b.chooseDay(ctx, chatID, messageID, userID, strings.TrimPrefix(data, "day:"))
	case strings.HasPrefix(data, "slot:"):
		b.chooseSlot(ctx, chatID, messageID, userID, strings.TrimPrefix(data, "slot:"))
	case strings.HasPrefix(data, "dur:"):
		b.chooseDuration(ctx, chatID, messageID, userID, strings.TrimPrefix(data, "dur:"))
	case data == "confirm":
		b.confirm(ctx, chatID, messageID, cq.From)
	case data == "back":
		b.back(ctx, chatID, messageID, userID)
	case data == "abort":
		b.clearDraft(ctx, userID)
		b.edit(chatID, messageID, booking.StatePrompts[booking.StateCanceled], nil)
	case strings.HasPrefix(data, "cancel:"):
		b.cancelReservation(ctx, chatID, userID, strings.TrimPrefix(data, "cancel:"))
	case strings.HasPrefix(data, "page:my:"):
		var page int
		if _, err := fmt.Sscanf(strings.TrimPrefix(data, "page:my:"), "%d", &page); err == nil {
			b.sendMyReservations(ctx, chatID, messageID, userID, page)
		}
	default:
		zerolog.Ctx(ctx).Warn().Str("data", data).Msg("unknown callback")
	}
}

func (b *Bot) sendMainMenu(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = mainMenu
	b.send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyMarkdown(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	b.send(msg)
}

// edit replaces the text of messageID, or sends a new message when the
// update did not come from a button.
func (b *Bot) edit(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if messageID == 0 {
		b.replyMarkdown(chatID, text, markup)
		return
	}
	var cfg tgbotapi.EditMessageTextConfig
	if markup != nil {
		cfg = tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		cfg = tgbotapi.NewEditMessageText(chatID, messageID, text)
	}
	cfg.ParseMode = tgbotapi.ModeMarkdown
	b.send(cfg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.tg.Send(c); err != nil {
		b.logger.Error().Err(err).Msg("telegram send failed")
	}
}

func (b *Bot) answerCallback(id, text string) error {
	_, err := b.tg.Request(tgbotapi.NewCallback(id, text))
	return err
}
