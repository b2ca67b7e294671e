package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/RuslanDrummer/telegram-bot/internal/config"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
	"github.com/RuslanDrummer/telegram-bot/shared/audit"
)

func newSlotsCmd(configPath *string) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print free start times for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(false)
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx := cmd.Context()
			handle, err := openStore(ctx, cfg, &logger)
			if err != nil {
				return err
			}
			defer handle.close()

			sched := scheduler.New(handle.store, scheduler.SystemClock{Location: cfg.Location()}, schedulerConfig(cfg), &logger)
			day := sched.Today()
			if date != "" {
				day, err = models.ParseDate(date, cfg.Location())
				if err != nil {
					return err
				}
			}

			free, err := sched.ListAvailableSlots(ctx, day)
			if errors.Is(err, scheduler.ErrNoAvailability) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no free slots\n", models.DateKey(day))
				return nil
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s:\n", models.DateKey(day))
			for _, t := range free {
				fmt.Fprintf(out, "  %s\n", t)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default today)")
	return cmd
}

func newExportCmd(configPath *string) *cobra.Command {
	var from, to, outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write reservations of a period to an .xlsx file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger(false)
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			loc := cfg.Location()

			start, end := audit.MonthRange(time.Now().In(loc))
			if from != "" {
				if start, err = models.ParseDate(from, loc); err != nil {
					return err
				}
			}
			if to != "" {
				if end, err = models.ParseDate(to, loc); err != nil {
					return err
				}
			}
			if end.Before(start) {
				return fmt.Errorf("--to %s is before --from %s", models.DateKey(end), models.DateKey(start))
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			handle, err := openStore(ctx, cfg, &logger)
			if err != nil {
				return err
			}
			defer handle.close()

			exporter := audit.NewExporter(handle.store, audit.NewExcelizeWriter, &logger)
			path, n, err := exporter.ExportToFile(ctx, outDir, start, end)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d reservations\n", path, n)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day YYYY-MM-DD (default start of current month)")
	cmd.Flags().StringVar(&to, "to", "", "last day YYYY-MM-DD (default end of current month)")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	return cmd
}
