package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/repository"
)

type brokenRepo struct {
	repository.StateRepository
}

func (brokenRepo) GetState(context.Context, int64) (*models.UserState, error) {
	return nil, errors.New("redis: connection refused")
}

func (brokenRepo) CheckRateLimit(context.Context, int64, int, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func newService(repo repository.StateRepository) *StateService {
	logger := zerolog.New(io.Discard)
	return NewStateService(repo, &logger)
}

func TestStateService_UpdateUserStateData(t *testing.T) {
	svc := newService(repository.NewMemoryStateRepository(time.Minute))
	ctx := context.Background()

	require.NoError(t, svc.UpdateUserStateData(ctx, 1, "ask_time", "date", "2030-01-02"))
	require.NoError(t, svc.UpdateUserStateData(ctx, 1, "", "start", 600))

	state, err := svc.GetUserState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "ask_time", state.Step)
	assert.Equal(t, "2030-01-02", state.GetString("date"))
	assert.Equal(t, int64(600), state.GetInt64("start"))

	require.NoError(t, svc.SetUserState(ctx, 1, "ask_day", nil))
	state, err = svc.GetUserState(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "ask_day", state.Step)
	assert.Empty(t, state.GetString("date"))

	require.NoError(t, svc.ClearUserState(ctx, 1))
	state, err = svc.GetUserState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateService_Errors(t *testing.T) {
	svc := newService(brokenRepo{})
	ctx := context.Background()

	_, err := svc.GetUserState(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, svc.UpdateUserStateData(ctx, 1, "ask_day", "k", "v"))
	assert.True(t, svc.Allow(ctx, 1, 10), "rate limiter failures let messages through")
}

func TestStateService_Allow(t *testing.T) {
	svc := newService(repository.NewMemoryStateRepository(time.Minute))
	ctx := context.Background()

	assert.True(t, svc.Allow(ctx, 1, 0))
	assert.True(t, svc.Allow(ctx, 1, 1))
	assert.False(t, svc.Allow(ctx, 1, 1))
}
