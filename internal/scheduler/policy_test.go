package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	fee := Fee{Amount: 200, Currency: "UAH"}

	tests := []struct {
		name     string
		start    time.Time
		wantFree bool
	}{
		{"exactly twelve hours", now.Add(12 * time.Hour), true},
		{"one minute short", now.Add(11*time.Hour + 59*time.Minute), false},
		{"one second short", now.Add(12*time.Hour - time.Second), false},
		{"next week", now.AddDate(0, 0, 7), true},
		{"already started", now.Add(-time.Minute), false},
		{"next morning", time.Date(2024, 1, 2, 7, 59, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Evaluate(now, tt.start, 12*time.Hour, fee)
			assert.Equal(t, tt.wantFree, d.Free)
			assert.Equal(t, tt.start.Sub(now), d.Notice)
			if tt.wantFree {
				assert.Zero(t, d.Fee)
			} else {
				assert.Equal(t, fee, d.Fee)
			}
		})
	}
}

func TestPolicy_Defaults(t *testing.T) {
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	start := now.Add(12 * time.Hour)

	p := Policy{Fee: Fee{Amount: 150, Currency: "UAH"}}
	assert.True(t, p.Evaluate(now, start).Free)
	assert.False(t, p.Evaluate(now, start.Add(-time.Minute)).Free)
	assert.Equal(t, now, p.FreeUntil(start))
	assert.Equal(t, "150 UAH", p.Fee.String())
}
