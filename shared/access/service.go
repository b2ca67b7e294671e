// Package access decides who may run administrative commands.
package access

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

var ErrForbidden = errors.New("admin rights required")

// Service holds the set of administrator Telegram IDs.
type Service struct {
	mu     sync.RWMutex
	admins map[int64]struct{}
	logger zerolog.Logger
}

func NewService(admins []int64, logger zerolog.Logger) *Service {
	s := &Service{logger: logger.With().Str("component", "access").Logger()}
	s.SetAdmins(admins)
	return s
}

// SetAdmins replaces the administrator list, e.g. after a config reload.
func (s *Service) SetAdmins(admins []int64) {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	s.mu.Lock()
	s.admins = set
	s.mu.Unlock()
}

func (s *Service) IsAdmin(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[userID]
	return ok
}

// RequireAdmin returns ErrForbidden and logs the attempt for non-admins.
func (s *Service) RequireAdmin(ctx context.Context, userID int64, action string) error {
	if s.IsAdmin(userID) {
		return nil
	}
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &s.logger
	}
	l.Warn().
		Int64("user_id", userID).
		Str("action", action).
		Msg("admin command denied")
	return ErrForbidden
}
