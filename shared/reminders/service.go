package reminders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/RuslanDrummer/telegram-bot/internal/metrics"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
)

// Config holds configuration for the reminder service.
type Config struct {
	// CheckInterval is how often to look for upcoming lessons.
	// Default: 15 minutes.
	CheckInterval time.Duration

	// HoursBefore is how long before the start a reminder goes out.
	// Default: 24 hours.
	HoursBefore int

	// MaxPerSecond caps outgoing Telegram messages. Default: 20.
	MaxPerSecond int

	Retry RetryPolicy
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval: 15 * time.Minute,
		HoursBefore:   24,
		MaxPerSecond:  20,
		Retry:         DefaultRetryPolicy(),
	}
}

// Service sends one reminder per upcoming reservation.
type Service struct {
	config   Config
	retry    RetryPolicy
	store    Store
	notifier Notifier
	policy   Policy
	clock    scheduler.Clock
	limiter  *rate.Limiter
	logger   *zerolog.Logger

	mu      sync.Mutex
	running bool
}

func NewService(config Config, store Store, notifier Notifier, policy Policy, clock scheduler.Clock, logger *zerolog.Logger) *Service {
	def := DefaultConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.HoursBefore <= 0 {
		config.HoursBefore = def.HoursBefore
	}
	if config.MaxPerSecond <= 0 {
		config.MaxPerSecond = def.MaxPerSecond
	}
	if config.Retry.MaxRetries == 0 && len(config.Retry.Delays) == 0 {
		config.Retry = def.Retry
	}

	l := logger.With().Str("component", "reminders").Logger()
	return &Service{
		config:   config,
		retry:    config.Retry,
		store:    store,
		notifier: notifier,
		policy:   policy,
		clock:    clock,
		limiter:  rate.NewLimiter(rate.Limit(config.MaxPerSecond), config.MaxPerSecond),
		logger:   &l,
	}
}

// Start runs the check loop until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().
		Dur("check_interval", s.config.CheckInterval).
		Int("hours_before", s.config.HoursBefore).
		Msg("Reminder service started")

	s.CheckNow(ctx)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Reminder service stopped")
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

// Due filters reservations whose reminder should go out at now: active,
// not yet reminded, and starting within the next HoursBefore hours.
func (s *Service) Due(list []models.Reservation, now time.Time) []models.Reservation {
	horizon := now.Add(time.Duration(s.config.HoursBefore) * time.Hour)
	var due []models.Reservation
	for _, r := range list {
		if !r.IsActive() || r.ReminderSent {
			continue
		}
		start := r.StartsAt()
		if !start.After(now) || start.After(horizon) {
			continue
		}
		due = append(due, r)
	}
	return due
}

// CheckNow sends every due reminder and returns how many were delivered.
func (s *Service) CheckNow(ctx context.Context) int {
	now := s.clock.Now()
	horizon := now.Add(time.Duration(s.config.HoursBefore) * time.Hour)

	list, err := s.store.ListBetween(ctx, models.DateOf(now), models.DateOf(horizon))
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to get upcoming reservations")
		metrics.IncReminder("error")
		return 0
	}

	sent := 0
	for _, r := range s.Due(list, now) {
		if ctx.Err() != nil {
			return sent
		}

		err := s.sendWithRetry(ctx, r, s.policy.FreeUntil(r.StartsAt()))
		switch {
		case err == nil:
			sent++
			metrics.IncReminder("sent")
		case errors.Is(err, errUndeliverable):
			metrics.IncReminder("undeliverable")
		default:
			metrics.IncReminder("failed")
			s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("Failed to send reminder")
			continue
		}

		// Undeliverable reminders are marked too so they are not retried forever.
		if err := s.store.MarkReminderSent(ctx, r.ID); err != nil {
			s.logger.Error().Err(err).Int64("reservation_id", r.ID).Msg("Failed to mark reminder as sent (notification was sent)")
		}
	}

	if sent > 0 {
		s.logger.Info().Int("sent", sent).Msg("Reminders sent")
	}
	return sent
}
