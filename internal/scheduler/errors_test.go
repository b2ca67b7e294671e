package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectionError_Is(t *testing.T) {
	err := reject(ReasonSlotTaken, RuleOverlap, "10:00-11:00")

	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.ErrorIs(t, err, &RejectionError{Reason: ReasonSlotTaken, Rule: RuleOverlap})
	assert.NotErrorIs(t, err, &RejectionError{Reason: ReasonSlotTaken, Rule: RuleMissingOwner})
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInfrastructure)

	wrapped := fmt.Errorf("bot: %w", err)
	assert.Equal(t, ReasonSlotTaken, ReasonOf(wrapped))
	assert.Equal(t, RuleOverlap, RuleOf(wrapped))
	assert.Equal(t, "slot_taken: overlap: 10:00-11:00", err.Error())
}

func TestInfraError(t *testing.T) {
	err := infraError("insert reservation", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrInfrastructure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
	assert.NotErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, Reason(""), ReasonOf(err))
	assert.False(t, IsRetryable(ErrSlotTaken))
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", resultLabel(nil, "ok"))
	assert.Equal(t, "infrastructure", resultLabel(infraError("x", errors.New("boom")), "ok"))
	assert.Equal(t, "past_time", resultLabel(reject(ReasonPastTime, RuleStartElapsed, ""), "ok"))
	assert.Equal(t, "error", resultLabel(errors.New("other"), "ok"))
}
