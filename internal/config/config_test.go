package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("telegram:\n  bot_token: abc\n"))
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 8, cfg.WorkingHours().StartHour)
	assert.Equal(t, 20, cfg.WorkingHours().EndHour)
	assert.Equal(t, 30*time.Minute, cfg.SlotGranularity())
	assert.Equal(t, []time.Duration{time.Hour, 90 * time.Minute, 2 * time.Hour}, cfg.Durations())
	assert.Equal(t, 12*time.Hour, cfg.MinNotice())
	assert.Equal(t, "UAH", cfg.FeeCurrency())
	assert.Equal(t, 7, cfg.WindowDays())
	assert.Equal(t, 5, cfg.ConnectRetries())
	assert.Equal(t, "Europe/Kyiv", cfg.Schedule.Timezone)
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("TOKEN", "123:token")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/db")

	cfg, err := Parse([]byte(`
telegram:
  bot_token: ${TOKEN}
database:
  url: ${DATABASE_URL}
schedule:
  start_hour: 9
  end_hour: 21
  durations_minutes: [45, 90]
cancellation:
  min_notice_hours: 24
  fee_amount: 300
admins: [1, 2]
`))
	require.NoError(t, err)

	assert.Equal(t, "123:token", cfg.Telegram.BotToken)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost/db", cfg.Database.URL)
	assert.Equal(t, []time.Duration{45 * time.Minute, 90 * time.Minute}, cfg.Durations())
	assert.Equal(t, 24*time.Hour, cfg.MinNotice())
	assert.Equal(t, int64(300), cfg.Cancellation.FeeAmount)
	assert.Contains(t, cfg.Admins, int64(2))
	assert.NotContains(t, cfg.Admins, int64(3))
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		msg  string
	}{
		{"hours reversed", "schedule:\n  start_hour: 20\n  end_hour: 8\n", "invalid working hours"},
		{"unknown driver", "database:\n  driver: mysql\n", "unknown database.driver"},
		{"postgres without url", "database:\n  driver: postgres\n", "database.url is required"},
		{"bad timezone", "schedule:\n  timezone: Mars/Olympus\n", "schedule.timezone"},
		{"bad duration", "schedule:\n  durations_minutes: [0]\n", "not positive"},
		{"sheets without id", "google:\n  enabled: true\n", "spreadsheet_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(start int, mod time.Time) {
		body := []byte("database:\n  path: " + filepath.Join(dir, "db.sqlite") + "\nschedule:\n  start_hour: " + strconv.Itoa(start) + "\n  end_hour: 20\n")
		require.NoError(t, os.WriteFile(path, body, 0o644))
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	base := time.Now().Add(-time.Hour)
	write(8, base)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan *Config, 1)
	require.NoError(t, Watch(ctx, path, 10*time.Millisecond, func(c *Config) { updates <- c }))

	write(10, base.Add(time.Minute))

	select {
	case cfg := <-updates:
		assert.Equal(t, 10, cfg.Schedule.StartHour)
	case <-time.After(2 * time.Second):
		t.Fatal("config was not reloaded")
	}
}
