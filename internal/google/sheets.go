package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/RuslanDrummer/telegram-bot/internal/events"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
	"github.com/RuslanDrummer/telegram-bot/internal/slots"
)

const scheduleSheet = "Розклад"

var logHeader = []interface{}{
	"ID", "Учень ID", "Учень", "Дата", "Початок", "Кінець", "Статус", "Створено", "Скасовано",
}

var (
	colorFree   = &sheets.Color{Red: 0.85, Green: 0.95, Blue: 0.85}
	colorBooked = &sheets.Color{Red: 0.98, Green: 0.8, Blue: 0.8}
	colorHeader = &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9}
)

var errRowNotFound = errors.New("reservation row not found")

// sheetsAPI is the slice of the Sheets API used by the mirror.
type sheetsAPI interface {
	appendRows(ctx context.Context, rng string, rows [][]interface{}) (updatedRange string, err error)
	updateRows(ctx context.Context, rng string, rows [][]interface{}) error
	getRows(ctx context.Context, rng string) ([][]interface{}, error)
	sheetID(ctx context.Context, title string) (int64, error)
	batchUpdate(ctx context.Context, reqs []*sheets.Request) error
}

// Source lists reservations for the schedule grid.
type Source interface {
	ListBetween(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// ScheduleConfig describes the grid rendered on the schedule sheet.
type ScheduleConfig struct {
	WorkingHours func(ctx context.Context) (models.WorkingHours, error)
	Granularity  time.Duration
	Days         int
	Today        func() time.Time
}

// SheetsService mirrors reservations into a spreadsheet: an append-only log
// sheet keyed by reservation id and a per-day schedule grid.
type SheetsService struct {
	api       sheetsAPI
	sheetName string
	source    Source
	schedule  ScheduleConfig
	timeout   time.Duration
	logger    zerolog.Logger

	cacheMu  sync.RWMutex
	rowCache map[int64]int

	syncMu sync.Mutex
}

// NewSheetsService authenticates with a service-account JSON key and binds
// to one spreadsheet.
func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsService, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	srv, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return newSheetsService(&googleSheets{srv: srv, spreadsheetID: spreadsheetID}, sheetName, logger), nil
}

func newSheetsService(api sheetsAPI, sheetName string, logger *zerolog.Logger) *SheetsService {
	if sheetName == "" {
		sheetName = "Записи"
	}
	return &SheetsService{
		api:       api,
		sheetName: sheetName,
		timeout:   15 * time.Second,
		rowCache:  make(map[int64]int),
		logger:    logger.With().Str("component", "sheets").Logger(),
	}
}

// WithSchedule enables the schedule grid, refreshed after every event.
func (s *SheetsService) WithSchedule(source Source, cfg ScheduleConfig) *SheetsService {
	if cfg.Days <= 0 {
		cfg.Days = 14
	}
	if cfg.Granularity <= 0 {
		cfg.Granularity = 30 * time.Minute
	}
	s.source = source
	s.schedule = cfg
	return s
}

// EnsureHeader writes the log header when the first row is empty.
func (s *SheetsService) EnsureHeader(ctx context.Context) error {
	rows, err := s.api.getRows(ctx, s.sheetName+"!A1:I1")
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}
	return s.api.updateRows(ctx, s.sheetName+"!A1:I1", [][]interface{}{logHeader})
}

// Handle is an events.EventHandler for reservation events.
func (s *SheetsService) Handle(event events.Event) error {
	var ev scheduler.ReservationEvent
	if err := event.Decode(&ev); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	switch event.Type {
	case scheduler.EventReservationCreated:
		err = s.AppendReservation(ctx, &ev.Reservation)
	case scheduler.EventReservationCancelled, scheduler.EventReservationPenalized:
		err = s.UpdateReservation(ctx, &ev.Reservation)
	default:
		return nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("event", event.Type).Int64("reservation_id", ev.Reservation.ID).Msg("mirror reservation")
		return err
	}

	if s.source != nil {
		if err := s.SyncSchedule(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("sync schedule")
		}
	}
	return nil
}

// AppendReservation adds a log row and remembers its position.
func (s *SheetsService) AppendReservation(ctx context.Context, r *models.Reservation) error {
	updated, err := s.api.appendRows(ctx, s.sheetName+"!A:I", [][]interface{}{reservationRowValues(r)})
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	if row, ok := rowFromRange(updated); ok {
		s.setCachedRow(r.ID, row)
	}
	s.logger.Debug().Int64("reservation_id", r.ID).Str("range", updated).Msg("reservation appended")
	return nil
}

// UpdateReservation rewrites the log row of r, appending when it is missing.
func (s *SheetsService) UpdateReservation(ctx context.Context, r *models.Reservation) error {
	row, err := s.findRow(ctx, r.ID)
	if errors.Is(err, errRowNotFound) {
		return s.AppendReservation(ctx, r)
	}
	if err != nil {
		return err
	}
	rng := fmt.Sprintf("%s!A%d:I%d", s.sheetName, row, row)
	if err := s.api.updateRows(ctx, rng, [][]interface{}{reservationRowValues(r)}); err != nil {
		s.deleteCacheRow(r.ID)
		return fmt.Errorf("update row %d: %w", row, err)
	}
	return nil
}

func (s *SheetsService) findRow(ctx context.Context, id int64) (int, error) {
	if row, ok := s.getCachedRow(id); ok {
		return row, nil
	}
	rows, err := s.api.getRows(ctx, s.sheetName+"!A:A")
	if err != nil {
		return 0, fmt.Errorf("scan ids: %w", err)
	}
	want := strconv.FormatInt(id, 10)
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		if fmt.Sprint(row[0]) == want {
			s.setCachedRow(id, i+1)
			return i + 1, nil
		}
	}
	return 0, errRowNotFound
}

// SyncSchedule redraws the schedule grid for the configured window.
func (s *SheetsService) SyncSchedule(ctx context.Context) error {
	if s.source == nil || s.schedule.WorkingHours == nil || s.schedule.Today == nil {
		return nil
	}
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	wh, err := s.schedule.WorkingHours(ctx)
	if err != nil {
		return fmt.Errorf("working hours: %w", err)
	}
	from := s.schedule.Today()
	to := from.AddDate(0, 0, s.schedule.Days-1)
	list, err := s.source.ListBetween(ctx, from, to)
	if err != nil {
		return fmt.Errorf("list reservations: %w", err)
	}
	sheetID, err := s.api.sheetID(ctx, scheduleSheet)
	if err != nil {
		return err
	}

	headers, cols := s.prepareDateHeaders(from, to)
	rows := make([]*sheets.RowData, 0)
	rows = append(rows, headerRow(headers))

	byDay := make(map[string][]models.Reservation, cols)
	for _, r := range s.filterActiveReservations(list) {
		key := models.DateKey(r.Date)
		byDay[key] = append(byDay[key], r)
	}

	for _, start := range slots.Generate(wh, s.schedule.Granularity) {
		iv := models.Interval{Start: start, End: start.Add(s.schedule.Granularity)}
		cells := []*sheets.CellData{textCell(start.String(), colorHeader)}
		for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
			value, color := s.formatScheduleCell(iv, byDay[models.DateKey(d)])
			cells = append(cells, textCell(value, color))
		}
		rows = append(rows, &sheets.RowData{Values: cells})
	}

	return s.api.batchUpdate(ctx, []*sheets.Request{
		{UpdateCells: &sheets.UpdateCellsRequest{
			Range:  &sheets.GridRange{SheetId: sheetID},
			Fields: "userEnteredValue,userEnteredFormat.backgroundColor",
		}},
		{UpdateCells: &sheets.UpdateCellsRequest{
			Start:  &sheets.GridCoordinate{SheetId: sheetID},
			Rows:   rows,
			Fields: "userEnteredValue,userEnteredFormat.backgroundColor",
		}},
	})
}

func (s *SheetsService) prepareDateHeaders(from, to time.Time) ([]string, int) {
	headers := []string{"Час"}
	cols := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		headers = append(headers, d.Format("02.01"))
		cols++
	}
	return headers, cols
}

// formatScheduleCell renders one grid cell: who occupies the slot, or free.
func (s *SheetsService) formatScheduleCell(slot models.Interval, dayReservations []models.Reservation) (string, *sheets.Color) {
	for i := range dayReservations {
		r := &dayReservations[i]
		if !r.IsActive() || !slot.Overlaps(r.Interval()) {
			continue
		}
		name := r.DisplayName
		if name == "" {
			name = "#" + strconv.FormatInt(r.OwnerID, 10)
		}
		return fmt.Sprintf("%s (%s-%s)", name, r.Start, r.End()), colorBooked
	}
	return "вільно", colorFree
}

func (s *SheetsService) filterActiveReservations(list []models.Reservation) []models.Reservation {
	out := make([]models.Reservation, 0, len(list))
	for _, r := range list {
		if r.IsActive() {
			out = append(out, r)
		}
	}
	return out
}

func (s *SheetsService) getCachedRow(id int64) (int, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	row, ok := s.rowCache[id]
	return row, ok
}

func (s *SheetsService) setCachedRow(id int64, row int) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache[id] = row
}

func (s *SheetsService) deleteCacheRow(id int64) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	delete(s.rowCache, id)
}

// ClearCache forgets all known row positions.
func (s *SheetsService) ClearCache() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.rowCache = make(map[int64]int)
}

func reservationRowValues(r *models.Reservation) []interface{} {
	cancelled := ""
	if r.CancelledAt != nil {
		cancelled = r.CancelledAt.Format("2006-01-02 15:04:05")
	}
	status := r.Status
	if status == "" {
		status = models.StatusActive
	}
	return []interface{}{
		r.ID,
		r.OwnerID,
		r.DisplayName,
		models.DateKey(r.Date),
		r.Start.String(),
		r.End().String(),
		status,
		r.CreatedAt.Format("2006-01-02 15:04:05"),
		cancelled,
	}
}

var updatedRangeRow = regexp.MustCompile(`![A-Z]+(\d+)(?::[A-Z]+\d+)?$`)

// rowFromRange extracts the first row number from an A1 range such as
// "Записи!A7:I7".
func rowFromRange(rng string) (int, bool) {
	m := updatedRangeRow.FindStringSubmatch(rng)
	if m == nil {
		return 0, false
	}
	row, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return row, true
}

func headerRow(headers []string) *sheets.RowData {
	cells := make([]*sheets.CellData, 0, len(headers))
	for _, h := range headers {
		cells = append(cells, textCell(h, colorHeader))
	}
	return &sheets.RowData{Values: cells}
}

func textCell(value string, bg *sheets.Color) *sheets.CellData {
	v := value
	return &sheets.CellData{
		UserEnteredValue:  &sheets.ExtendedValue{StringValue: &v},
		UserEnteredFormat: &sheets.CellFormat{BackgroundColor: bg},
	}
}

// googleSheets adapts *sheets.Service to sheetsAPI.
type googleSheets struct {
	srv           *sheets.Service
	spreadsheetID string
}

func (g *googleSheets) appendRows(ctx context.Context, rng string, rows [][]interface{}) (string, error) {
	resp, err := g.srv.Spreadsheets.Values.Append(g.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if resp.Updates == nil {
		return "", nil
	}
	return resp.Updates.UpdatedRange, nil
}

func (g *googleSheets) updateRows(ctx context.Context, rng string, rows [][]interface{}) error {
	_, err := g.srv.Spreadsheets.Values.Update(g.spreadsheetID, rng, &sheets.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (g *googleSheets) getRows(ctx context.Context, rng string) ([][]interface{}, error) {
	resp, err := g.srv.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g *googleSheets) sheetID(ctx context.Context, title string) (int64, error) {
	ss, err := g.srv.Spreadsheets.Get(g.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", title)
}

func (g *googleSheets) batchUpdate(ctx context.Context, reqs []*sheets.Request) error {
	_, err := g.srv.Spreadsheets.BatchUpdate(g.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).
		Do()
	return err
}
