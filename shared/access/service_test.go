package access

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestService(t *testing.T) {
	s := NewService([]int64{1, 2}, zerolog.Nop())
	ctx := context.Background()

	assert.True(t, s.IsAdmin(1))
	assert.False(t, s.IsAdmin(3))
	assert.NoError(t, s.RequireAdmin(ctx, 2, "hours"))
	assert.ErrorIs(t, s.RequireAdmin(ctx, 3, "hours"), ErrForbidden)

	s.SetAdmins([]int64{3})
	assert.False(t, s.IsAdmin(1))
	assert.True(t, s.IsAdmin(3))
}
