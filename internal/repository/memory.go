package repository

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// MemoryStateRepository keeps dialogue state in process. It backs the bot
// when Redis is not configured and serves as the failover target.
type MemoryStateRepository struct {
	mu       sync.Mutex
	ttl      time.Duration
	states   map[int64]*models.UserState
	limiters map[int64]*rate.Limiter
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStateRepository{
		ttl:      ttl,
		states:   make(map[int64]*models.UserState),
		limiters: make(map[int64]*rate.Limiter),
	}
}

func (m *MemoryStateRepository) GetState(ctx context.Context, userID int64) (*models.UserState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	if time.Since(state.UpdatedAt) > m.ttl {
		delete(m.states, userID)
		return nil, nil
	}
	cp := *state
	cp.TempData = make(map[string]interface{}, len(state.TempData))
	for k, v := range state.TempData {
		cp.TempData[k] = v
	}
	return &cp, nil
}

func (m *MemoryStateRepository) SetState(ctx context.Context, state *models.UserState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *state
	cp.UpdatedAt = time.Now()
	cp.TempData = make(map[string]interface{}, len(state.TempData))
	for k, v := range state.TempData {
		cp.TempData[k] = v
	}
	m.states[state.UserID] = &cp
	return nil
}

func (m *MemoryStateRepository) ClearState(ctx context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.states, userID)
	m.mu.Unlock()
	return nil
}

// CheckRateLimit uses a token bucket per user refilled at limit per window.
func (m *MemoryStateRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	m.mu.Lock()
	lim, ok := m.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		m.limiters[userID] = lim
	}
	m.mu.Unlock()
	return lim.Allow(), nil
}
