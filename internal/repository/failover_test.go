package repository

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

type failoverFixture struct {
	mr       *miniredis.Miniredis
	memory   *MemoryStateRepository
	repo     *FailoverStateRepository
	redisRep *RedisStateRepository
}

func newFailoverFixture(t *testing.T) *failoverFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	logger := zerolog.New(io.Discard)
	primary := NewRedisStateRepository(client, time.Hour)
	memory := NewMemoryStateRepository(time.Hour)
	return &failoverFixture{
		mr:       mr,
		memory:   memory,
		redisRep: primary,
		repo:     NewFailoverStateRepository(primary, memory, &logger),
	}
}

func draftState(userID int64, step string) *models.UserState {
	return &models.UserState{UserID: userID, Step: step, TempData: map[string]interface{}{"date": "2030-01-02"}}
}

func TestFailoverUsesRedisWhileHealthy(t *testing.T) {
	f := newFailoverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.repo.SetState(ctx, draftState(1, "ask_time")))
	assert.True(t, f.mr.Exists(stateKey(1)))

	inMemory, err := f.memory.GetState(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, inMemory, "fallback untouched while primary works")

	got, err := f.repo.GetState(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ask_time", got.Step)
	assert.False(t, f.repo.isDown.Load())
}

func TestFailoverSwitchesToMemoryOnOutage(t *testing.T) {
	f := newFailoverFixture(t)
	ctx := context.Background()

	f.mr.Close()

	require.NoError(t, f.repo.SetState(ctx, draftState(2, "ask_duration")))
	assert.True(t, f.repo.isDown.Load())

	got, err := f.repo.GetState(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ask_duration", got.Step)

	ok, err := f.repo.CheckRateLimit(ctx, 2, 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.repo.CheckRateLimit(ctx, 2, 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "memory limiter enforces the limit during the outage")
}

func TestFailoverRecoversAfterInterval(t *testing.T) {
	f := newFailoverFixture(t)
	ctx := context.Background()

	f.mr.Close()
	require.NoError(t, f.repo.SetState(ctx, draftState(3, "confirm")))
	require.True(t, f.repo.isDown.Load())

	require.NoError(t, f.mr.Restart())

	// Within the recovery interval the primary is not probed.
	got, err := f.repo.GetState(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, f.repo.isDown.Load())

	f.repo.mu.Lock()
	f.repo.lastCheck = time.Now().Add(-2 * recoveryInterval)
	f.repo.mu.Unlock()

	got, err = f.repo.GetState(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, got, "state written during the outage lives only in memory")
	assert.False(t, f.repo.isDown.Load())
}

func TestFailoverClearTouchesBoth(t *testing.T) {
	f := newFailoverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.redisRep.SetState(ctx, draftState(4, "ask_day")))
	require.NoError(t, f.memory.SetState(ctx, draftState(4, "ask_time")))

	require.NoError(t, f.repo.ClearState(ctx, 4))

	assert.False(t, f.mr.Exists(stateKey(4)))
	inMemory, err := f.memory.GetState(ctx, 4)
	require.NoError(t, err)
	assert.Nil(t, inMemory)
}

func TestFailoverClearDuringOutageSucceeds(t *testing.T) {
	f := newFailoverFixture(t)
	ctx := context.Background()

	require.NoError(t, f.memory.SetState(ctx, draftState(5, "ask_day")))
	f.mr.Close()

	assert.NoError(t, f.repo.ClearState(ctx, 5))
	inMemory, err := f.memory.GetState(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, inMemory)
}
