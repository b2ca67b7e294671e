package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		Debug    bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Driver         string `yaml:"driver"`
		Path           string `yaml:"path"`
		URL            string `yaml:"url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		ConnectRetries int    `yaml:"connect_retries"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		StateTTLMinutes int    `yaml:"state_ttl_minutes"`
	} `yaml:"redis"`

	Schedule struct {
		Timezone         string `yaml:"timezone"`
		StartHour        int    `yaml:"start_hour"`
		EndHour          int    `yaml:"end_hour"`
		SlotMinutes      int    `yaml:"slot_minutes"`
		DurationsMinutes []int  `yaml:"durations_minutes"`
		WindowDays       int    `yaml:"window_days"`
	} `yaml:"schedule"`

	Cancellation struct {
		MinNoticeHours int    `yaml:"min_notice_hours"`
		FeeAmount      int64  `yaml:"fee_amount"`
		FeeCurrency    string `yaml:"fee_currency"`
	} `yaml:"cancellation"`

	API struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"api"`

	AMQP struct {
		Enabled  bool   `yaml:"enabled"`
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`

	Google struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		SheetName       string `yaml:"sheet_name"`
	} `yaml:"google"`

	Reminders struct {
		Enabled              bool `yaml:"enabled"`
		HoursBefore          int  `yaml:"hours_before"`
		CheckIntervalMinutes int  `yaml:"check_interval_minutes"`
		MaxPerSecond         int  `yaml:"max_per_second"`
	} `yaml:"reminders"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		GRPCHealthPort    int  `yaml:"grpc_health_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	RateLimit struct {
		MessagesPerMinute int `yaml:"messages_per_minute"`
	} `yaml:"rate_limit"`

	Admins []int64 `yaml:"admins"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == DriverSQLite {
		if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Parse expands ${ENV_VAR} placeholders, decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
		if c.Database.URL != "" {
			c.Database.Driver = DriverPostgres
		}
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/drumbot.db"
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = "Europe/Kyiv"
	}
	if c.Schedule.StartHour == 0 && c.Schedule.EndHour == 0 {
		c.Schedule.StartHour, c.Schedule.EndHour = 8, 20
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "drumbot.events"
	}
	if c.Google.SheetName == "" {
		c.Google.SheetName = "Reservations"
	}
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	if err := c.WorkingHours().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("schedule: %w", err))
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("schedule.timezone: %w", err))
	}
	for _, m := range c.Schedule.DurationsMinutes {
		if m <= 0 {
			errs = append(errs, fmt.Errorf("schedule.durations_minutes: %d is not positive", m))
		}
	}
	if c.Google.Enabled && c.Google.SpreadsheetID == "" {
		errs = append(errs, errors.New("google.spreadsheet_id is required when google is enabled"))
	}
	return errors.Join(errs...)
}

func (c *Config) WorkingHours() models.WorkingHours {
	return models.WorkingHours{StartHour: c.Schedule.StartHour, EndHour: c.Schedule.EndHour}
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *Config) SlotGranularity() time.Duration {
	if c.Schedule.SlotMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Schedule.SlotMinutes) * time.Minute
}

func (c *Config) Durations() []time.Duration {
	if len(c.Schedule.DurationsMinutes) == 0 {
		return []time.Duration{60 * time.Minute, 90 * time.Minute, 120 * time.Minute}
	}
	out := make([]time.Duration, 0, len(c.Schedule.DurationsMinutes))
	for _, m := range c.Schedule.DurationsMinutes {
		out = append(out, time.Duration(m)*time.Minute)
	}
	return out
}

func (c *Config) WindowDays() int {
	if c.Schedule.WindowDays <= 0 {
		return 7
	}
	return c.Schedule.WindowDays
}

func (c *Config) MinNotice() time.Duration {
	if c.Cancellation.MinNoticeHours <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.Cancellation.MinNoticeHours) * time.Hour
}

func (c *Config) FeeCurrency() string {
	if c.Cancellation.FeeCurrency == "" {
		return "UAH"
	}
	return c.Cancellation.FeeCurrency
}

func (c *Config) StoreTimeout() time.Duration {
	if c.Database.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Database.TimeoutSeconds) * time.Second
}

func (c *Config) ConnectRetries() int {
	if c.Database.ConnectRetries <= 0 {
		return 5
	}
	return c.Database.ConnectRetries
}

func (c *Config) StateTTL() time.Duration {
	if c.Redis.StateTTLMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Redis.StateTTLMinutes) * time.Minute
}

func (c *Config) MessagesPerMinute() int {
	if c.RateLimit.MessagesPerMinute <= 0 {
		return 30
	}
	return c.RateLimit.MessagesPerMinute
}
