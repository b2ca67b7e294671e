package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

const recoveryInterval = time.Minute

// FailoverStateRepository routes to primary (Redis) and switches to the
// fallback while primary is failing. Primary is retried once a minute.
type FailoverStateRepository struct {
	primary  StateRepository
	fallback StateRepository
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverStateRepository(primary, fallback StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	l := logger.With().Str("component", "state_failover").Logger()
	return &FailoverStateRepository{primary: primary, fallback: fallback, logger: &l}
}

func (f *FailoverStateRepository) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) >= recoveryInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverStateRepository) markDown(op string, err error) {
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Str("op", op).Msg("state storage unavailable, switching to fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverStateRepository) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("state storage recovered")
	}
}

func (f *FailoverStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	if f.usePrimary() {
		state, err := f.primary.GetState(ctx, userID)
		if err == nil {
			f.markUp()
			return state, nil
		}
		f.markDown("get", err)
	}
	return f.fallback.GetState(ctx, userID)
}

func (f *FailoverStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	if f.usePrimary() {
		err := f.primary.SetState(ctx, state)
		if err == nil {
			f.markUp()
			return nil
		}
		f.markDown("set", err)
	}
	return f.fallback.SetState(ctx, state)
}

func (f *FailoverStateRepository) ClearState(ctx context.Context, userID int64) error {
	// Clear both sides: a finished dialogue must not come back after recovery.
	_ = f.fallback.ClearState(ctx, userID)
	if f.usePrimary() {
		err := f.primary.ClearState(ctx, userID)
		if err == nil {
			f.markUp()
			return nil
		}
		f.markDown("clear", err)
	}
	return nil
}

func (f *FailoverStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if f.usePrimary() {
		ok, err := f.primary.CheckRateLimit(ctx, userID, limit, window)
		if err == nil {
			f.markUp()
			return ok, nil
		}
		f.markDown("rate_limit", err)
	}
	return f.fallback.CheckRateLimit(ctx, userID, limit, window)
}
