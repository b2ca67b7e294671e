package repository

import (
	"context"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// StateRepository persists per-user dialogue state between Telegram updates.
type StateRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	// CheckRateLimit reports whether the user may send one more message
	// within the window.
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
}
