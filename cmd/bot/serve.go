package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/RuslanDrummer/telegram-bot/internal/api"
	"github.com/RuslanDrummer/telegram-bot/internal/bot"
	"github.com/RuslanDrummer/telegram-bot/internal/config"
	"github.com/RuslanDrummer/telegram-bot/internal/database"
	"github.com/RuslanDrummer/telegram-bot/internal/events"
	"github.com/RuslanDrummer/telegram-bot/internal/google"
	"github.com/RuslanDrummer/telegram-bot/internal/health"
	"github.com/RuslanDrummer/telegram-bot/internal/metrics"
	"github.com/RuslanDrummer/telegram-bot/internal/repository"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
	"github.com/RuslanDrummer/telegram-bot/internal/service"
	"github.com/RuslanDrummer/telegram-bot/shared/access"
	"github.com/RuslanDrummer/telegram-bot/shared/audit"
	"github.com/RuslanDrummer/telegram-bot/shared/reminders"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot with its background services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(*configPath)
		},
	}
}

func serve(configPath string) error {
	logger := newLogger(false)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Telegram.Debug {
		logger = newLogger(true)
	}
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		return errors.New("set TOKEN or telegram.bot_token in config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := openStore(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer handle.close()

	sched := scheduler.New(handle.store, scheduler.SystemClock{Location: cfg.Location()}, schedulerConfig(cfg), &logger)

	bus := events.NewEventBus()
	bus.OnError = func(ev events.Event, err error) {
		logger.Warn().Err(err).Str("event", ev.Type).Int64("event_id", ev.ID).Msg("event handler failed")
	}
	sched.SetEventPublisher(bus)

	if cfg.AMQP.Enabled {
		fwd, err := events.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("amqp disabled: dial failed")
		} else {
			defer fwd.Close()
			bus.Subscribe("*", fwd.Handle)
		}
	}

	if cfg.Google.Enabled {
		sheets, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID, cfg.Google.SheetName, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets mirror disabled")
		} else {
			if err := sheets.EnsureHeader(ctx); err != nil {
				logger.Warn().Err(err).Msg("sheets header check failed")
			}
			sheets.WithSchedule(handle.store, google.ScheduleConfig{
				WorkingHours: sched.WorkingHours,
				Granularity:  cfg.SlotGranularity(),
				Days:         cfg.WindowDays(),
				Today:        sched.Today,
			})
			for _, t := range []string{scheduler.EventReservationCreated, scheduler.EventReservationCancelled, scheduler.EventReservationPenalized} {
				bus.Subscribe(t, sheets.Handle)
			}
		}
	}

	var rdb *redis.Client
	var stateRepo repository.StateRepository = repository.NewMemoryStateRepository(cfg.StateTTL())
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		stateRepo = repository.NewFailoverStateRepository(
			repository.NewRedisStateRepository(rdb, cfg.StateTTL()),
			stateRepo,
			&logger,
		)
	}
	states := service.NewStateService(stateRepo, &logger)

	acl := access.NewService(cfg.Admins, logger)
	exporter := audit.NewExporter(handle.store, audit.NewExcelizeWriter, &logger)

	b, err := bot.New(cfg.Telegram.BotToken, sched, states, acl, exporter, bot.Options{MessagesPerMinute: cfg.MessagesPerMinute()}, &logger)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	if cfg.Reminders.Enabled {
		rs := reminders.NewService(reminders.Config{
			CheckInterval: time.Duration(cfg.Reminders.CheckIntervalMinutes) * time.Minute,
			HoursBefore:   cfg.Reminders.HoursBefore,
			MaxPerSecond:  cfg.Reminders.MaxPerSecond,
		}, handle.store, b, sched.Policy(), scheduler.SystemClock{Location: cfg.Location()}, &logger)
		run(func() { rs.Start(ctx) })
	}

	if handle.sqlite != nil && cfg.Backup.Enabled {
		backups := database.NewBackupService(handle.sqlite, database.BackupConfig{
			Enabled:       true,
			Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			StoragePath:   cfg.Backup.Path,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		run(func() { backups.Start(ctx) })
	}

	if err := config.Watch(ctx, configPath, 30*time.Second, onConfigReload(ctx, cfg, sched, acl, &logger)); err != nil {
		logger.Warn().Err(err).Msg("config watch disabled")
	}

	checker := health.NewChecker(
		health.Check{Name: "db", Pinger: handle.store},
		health.Check{Name: "redis", Pinger: redisPinger(rdb)},
	)
	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	run(func() { checker.ServeHTTP(ctx, cfg.Monitoring.HealthCheckPort, &logger) })
	if cfg.Monitoring.GRPCHealthPort > 0 {
		g := health.NewGRPCServer(checker, &logger)
		run(func() {
			if err := g.Serve(ctx, cfg.Monitoring.GRPCHealthPort); err != nil {
				logger.Error().Err(err).Msg("grpc health server error")
			}
		})
	}

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		run(func() { startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger) })
	}

	if cfg.API.Enabled {
		srv := api.NewHTTPServer(cfg.API.Port, cfg.API.APIKey, sched, &logger)
		run(func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("api server error")
			}
		})
	}

	logger.Info().
		Str("version", Version).
		Str("driver", cfg.Database.Driver).
		Str("timezone", cfg.Location().String()).
		Msg("drumbot started")
	b.Start(ctx)

	stop()
	wg.Wait()
	logger.Info().Msg("drumbot stopped")
	return nil
}

// onConfigReload applies admins and working hours from a changed config file.
func onConfigReload(ctx context.Context, current *config.Config, sched *scheduler.Scheduler, acl *access.Service, logger *zerolog.Logger) func(*config.Config) {
	var mu sync.Mutex
	last := current.WorkingHours()
	return func(next *config.Config) {
		mu.Lock()
		defer mu.Unlock()

		acl.SetAdmins(next.Admins)
		wh := next.WorkingHours()
		if wh == last {
			logger.Info().Int("admins", len(next.Admins)).Msg("config reloaded")
			return
		}
		if err := sched.SetWorkingHours(ctx, wh); err != nil {
			logger.Error().Err(err).Str("working_hours", wh.String()).Msg("apply working hours from config")
			return
		}
		last = wh
		logger.Info().Int("admins", len(next.Admins)).Str("working_hours", wh.String()).Msg("config reloaded")
	}
}

func redisPinger(rdb *redis.Client) health.Pinger {
	if rdb == nil {
		return nil
	}
	return health.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
