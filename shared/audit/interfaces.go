package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
)

// Source provides the reservations to export.
type Source interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// ExcelWriter builds a workbook one sheet at a time.
type ExcelWriter interface {
	// StartSheet makes name the sheet that later rows go to.
	StartSheet(name string) error

	HeaderRow(columns []string) error
	AppendRow(row []interface{}) error

	Save(w io.Writer) error

	Close() error
}

// monthNames are used in export file names.
var monthNames = map[time.Month]string{
	time.January:   "Січень",
	time.February:  "Лютий",
	time.March:     "Березень",
	time.April:     "Квітень",
	time.May:       "Травень",
	time.June:      "Червень",
	time.July:      "Липень",
	time.August:    "Серпень",
	time.September: "Вересень",
	time.October:   "Жовтень",
	time.November:  "Листопад",
	time.December:  "Грудень",
}

// GenerateFilename creates a filename like "Січень_2030.xlsx" for a whole
// month, or "Записи_2030-01-02_2030-01-08.xlsx" for any other range.
func GenerateFilename(from, to time.Time) string {
	first := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	last := first.AddDate(0, 1, -1)
	if models.SameDay(from, first) && models.SameDay(to, last) {
		return fmt.Sprintf("%s_%d.xlsx", monthNames[from.Month()], from.Year())
	}
	return fmt.Sprintf("Записи_%s_%s.xlsx", models.DateKey(from), models.DateKey(to))
}

// MonthRange returns the first and last day of t's month.
func MonthRange(t time.Time) (time.Time, time.Time) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first, first.AddDate(0, 1, -1)
}
