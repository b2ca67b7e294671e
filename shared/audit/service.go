package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/slots"
)

const (
	sheetReservations = "Записи"
	sheetSummary      = "Підсумок"
)

var reservationColumns = []string{
	"№", "Дата", "Початок", "Кінець", "Тривалість", "Учень", "Telegram ID", "Статус", "Нагадування", "Створено",
}

// Exporter writes reservations of a date range into an .xlsx workbook:
// one row per lesson plus a per-day summary sheet.
type Exporter struct {
	source    Source
	newWriter func() ExcelWriter
	logger    *zerolog.Logger
}

// NewExporter uses excelize when writerFactory is nil.
func NewExporter(source Source, writerFactory func() ExcelWriter, logger *zerolog.Logger) *Exporter {
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	l := logger.With().Str("component", "audit").Logger()
	return &Exporter{source: source, newWriter: writerFactory, logger: &l}
}

// Export writes the workbook to w and returns the number of reservations.
func (e *Exporter) Export(ctx context.Context, w io.Writer, from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, fmt.Errorf("export range %s..%s is reversed", models.DateKey(from), models.DateKey(to))
	}

	list, err := e.source.ListBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("load reservations: %w", err)
	}

	xw := e.newWriter()
	defer xw.Close()

	if err := xw.StartSheet(sheetReservations); err != nil {
		return 0, err
	}
	if err := xw.HeaderRow(reservationColumns); err != nil {
		return 0, err
	}
	for _, r := range list {
		if err := xw.AppendRow(reservationRow(r)); err != nil {
			return 0, fmt.Errorf("write reservation %d: %w", r.ID, err)
		}
	}

	if err := xw.StartSheet(sheetSummary); err != nil {
		return 0, err
	}
	if err := xw.HeaderRow([]string{"Дата", "Занять", "Годин"}); err != nil {
		return 0, err
	}
	for _, day := range summarize(list) {
		if err := xw.AppendRow([]interface{}{day.date, day.lessons, day.hours}); err != nil {
			return 0, err
		}
	}

	if err := xw.Save(w); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}

	e.logger.Info().
		Str("from", models.DateKey(from)).
		Str("to", models.DateKey(to)).
		Int("reservations", len(list)).
		Msg("reservations exported")
	return len(list), nil
}

// ExportToFile writes the workbook into dir under GenerateFilename.
func (e *Exporter) ExportToFile(ctx context.Context, dir string, from, to time.Time) (string, int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, GenerateFilename(from, to))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	n, err := e.Export(ctx, f, from, to)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

func reservationRow(r models.Reservation) []interface{} {
	reminded := "ні"
	if r.ReminderSent {
		reminded = "так"
	}
	return []interface{}{
		r.ID,
		r.Date.Format("02.01.2006"),
		r.Start.String(),
		r.End().String(),
		slots.FormatDuration(r.Duration),
		r.DisplayName,
		r.OwnerID,
		statusLabel(r.Status),
		reminded,
		r.CreatedAt.In(r.Date.Location()).Format("02.01.2006 15:04"),
	}
}

func statusLabel(status string) string {
	switch status {
	case models.StatusCancelled:
		return "скасовано"
	default:
		return "активний"
	}
}

type daySummary struct {
	date    string
	lessons int
	hours   float64
}

func summarize(list []models.Reservation) []daySummary {
	byDay := make(map[string]*daySummary)
	for _, r := range list {
		key := r.Date.Format("02.01.2006")
		d, ok := byDay[key]
		if !ok {
			d = &daySummary{date: key}
			byDay[key] = d
		}
		d.lessons++
		d.hours += r.Duration.Hours()
	}

	out := make([]daySummary, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, _ := time.Parse("02.01.2006", out[i].date)
		tj, _ := time.Parse("02.01.2006", out[j].date)
		return ti.Before(tj)
	})
	return out
}
