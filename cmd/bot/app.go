package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/config"
	"github.com/RuslanDrummer/telegram-bot/internal/database"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/postgres"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
)

// reservationStore is what every backend offers beyond scheduler.Store.
type reservationStore interface {
	scheduler.Store
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
	MarkReminderSent(ctx context.Context, id int64) error
}

type storeHandle struct {
	store  reservationStore
	sqlite *database.DB
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*storeHandle, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.Database.URL, postgres.Options{
			Retries:    cfg.ConnectRetries(),
			RetryDelay: 5 * time.Second,
			Location:   cfg.Location(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return &storeHandle{store: pg, close: pg.Close}, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, cfg.Location(), logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &storeHandle{store: db, sqlite: db, close: func() { _ = db.Close() }}, nil
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Granularity:  cfg.SlotGranularity(),
		Durations:    cfg.Durations(),
		WorkingHours: cfg.WorkingHours(),
		Policy: scheduler.Policy{
			MinNotice: cfg.MinNotice(),
			Fee:       scheduler.Fee{Amount: cfg.Cancellation.FeeAmount, Currency: cfg.FeeCurrency()},
		},
		WindowDays:   cfg.WindowDays(),
		Location:     cfg.Location(),
		StoreTimeout: cfg.StoreTimeout(),
	}
}
