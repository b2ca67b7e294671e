package reminders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// RetryPolicy bounds redelivery of one reminder.
type RetryPolicy struct {
	MaxRetries  int
	Delays []time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		Delays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// TelegramError is a failed Bot API call as seen by the notifier.
type TelegramError struct {
	Code       int
	Message    string
	RetryAfter int // seconds, set on 429
}

func (e *TelegramError) Error() string {
	return fmt.Sprintf("telegram api %d: %s", e.Code, e.Message)
}

func AsTelegramError(err error) (*TelegramError, bool) {
	var tgErr *TelegramError
	ok := errors.As(err, &tgErr)
	return tgErr, ok
}

// errUndeliverable marks a reminder that must not be retried.
var errUndeliverable = errors.New("reminder undeliverable")

func (s *Service) delay(attempt int) time.Duration {
	delays := s.retry.Delays
	if len(delays) == 0 {
		return time.Second
	}
	if attempt >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt]
}

// sendWithRetry delivers r, backing off on transient failures and honoring
// Telegram's retry_after on 429.
func (s *Service) sendWithRetry(ctx context.Context, r models.Reservation, freeUntil time.Time) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for send slot: %w", err)
	}

	l := s.logger.With().Int64("reservation_id", r.ID).Int64("owner_id", r.OwnerID).Logger()

	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		err := s.notifier.SendReminder(ctx, r, freeUntil)
		if err == nil {
			return nil
		}
		lastErr = err

		wait := s.delay(attempt)
		if tgErr, ok := AsTelegramError(err); ok {
			switch tgErr.Code {
			case http.StatusTooManyRequests:
				if tgErr.RetryAfter > 0 {
					wait = time.Duration(tgErr.RetryAfter) * time.Second
				}
				l.Info().Dur("retry_after", wait).Int("attempt", attempt).Msg("rate limited by Telegram, waiting")
			case http.StatusForbidden:
				l.Info().Msg("user blocked bot")
				return fmt.Errorf("%w: user_blocked", errUndeliverable)
			case http.StatusBadRequest:
				l.Error().Err(err).Msg("bad request to Telegram")
				return fmt.Errorf("%w: bad_request", errUndeliverable)
			}
		}

		if attempt == s.retry.MaxRetries {
			break
		}
		l.Info().Err(err).Int("attempt", attempt+1).Dur("delay", wait).Msg("retrying reminder send")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
