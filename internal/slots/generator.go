package slots

import (
	"fmt"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// DefaultGranularity is used when the configured slot step is not positive.
const DefaultGranularity = 30 * time.Minute

// Generate lists every slot start within working hours, spaced by granularity.
// A slot is emitted while its start is before the closing hour.
func Generate(wh models.WorkingHours, granularity time.Duration) []models.TimeOfDay {
	if wh.Validate() != nil {
		return nil
	}
	if granularity < time.Minute {
		granularity = DefaultGranularity
	}

	closes := wh.Closes()
	result := make([]models.TimeOfDay, 0, int(closes-wh.Opens())/int(granularity/time.Minute)+1)
	for cursor := wh.Opens(); cursor < closes; cursor = cursor.Add(granularity) {
		result = append(result, cursor)
	}
	return result
}

// Available keeps the candidates that are in the future relative to now and
// that could host a booking of minDuration without overlapping reservations.
// It is advisory: the authoritative check runs when the booking is stored.
func Available(date time.Time, candidates []models.TimeOfDay, reservations []models.Reservation, now time.Time, minDuration time.Duration) []models.TimeOfDay {
	today := models.SameDay(date, now)
	result := make([]models.TimeOfDay, 0, len(candidates))

	for _, s := range candidates {
		if today && !s.On(date).After(now) {
			continue
		}
		if models.Conflicts(models.Interval{Start: s, End: s.Add(minDuration)}, reservations, now) {
			continue
		}
		result = append(result, s)
	}
	return result
}

// DurationOptions returns the durations that fit at start: inside working
// hours and free of overlap with the given reservations.
func DurationOptions(start models.TimeOfDay, durations []time.Duration, wh models.WorkingHours, reservations []models.Reservation, now time.Time) []time.Duration {
	var options []time.Duration
	for _, d := range durations {
		iv := models.Interval{Start: start, End: start.Add(d)}
		if !wh.Contains(iv) {
			continue
		}
		if models.Conflicts(iv, reservations, now) {
			continue
		}
		options = append(options, d)
	}
	return options
}

// FormatDuration formats minutes to human-readable string.
func FormatDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	hours := minutes / 60
	mins := minutes % 60

	switch {
	case hours == 0:
		return fmt.Sprintf("%d хв", mins)
	case mins == 0:
		return fmt.Sprintf("%d год", hours)
	default:
		return fmt.Sprintf("%d год %d хв", hours, mins)
	}
}
