package google

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/sheets/v4"

	"github.com/RuslanDrummer/telegram-bot/internal/events"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
)

type fakeSheets struct {
	rows     [][]interface{}
	updates  map[string][][]interface{}
	requests []*sheets.Request
}

func newFakeSheets() *fakeSheets {
	return &fakeSheets{updates: make(map[string][][]interface{})}
}

func (f *fakeSheets) appendRows(_ context.Context, _ string, rows [][]interface{}) (string, error) {
	f.rows = append(f.rows, rows...)
	n := len(f.rows)
	return fmt.Sprintf("Записи!A%d:I%d", n, n), nil
}

func (f *fakeSheets) updateRows(_ context.Context, rng string, rows [][]interface{}) error {
	f.updates[rng] = rows
	return nil
}

func (f *fakeSheets) getRows(_ context.Context, _ string) ([][]interface{}, error) {
	out := make([][]interface{}, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, []interface{}{fmt.Sprint(r[0])})
	}
	return out, nil
}

func (f *fakeSheets) sheetID(context.Context, string) (int64, error) { return 7, nil }

func (f *fakeSheets) batchUpdate(_ context.Context, reqs []*sheets.Request) error {
	f.requests = append(f.requests, reqs...)
	return nil
}

func testService(api sheetsAPI) *SheetsService {
	logger := zerolog.Nop()
	return newSheetsService(api, "Записи", &logger)
}

func TestFilterActiveReservations(t *testing.T) {
	s := &SheetsService{}

	list := []models.Reservation{
		{ID: 1, Status: models.StatusActive},
		{ID: 2, Status: ""},
		{ID: 3, Status: models.StatusCancelled},
	}

	active := s.filterActiveReservations(list)

	if len(active) != 2 {
		t.Errorf("Expected 2 active reservations, got %d", len(active))
	}
	for _, r := range active {
		if r.Status == models.StatusCancelled {
			t.Errorf("Cancelled reservation found in active list")
		}
	}
}

func TestReservationRowValues(t *testing.T) {
	date := time.Date(2030, 12, 25, 0, 0, 0, 0, time.UTC)
	createdAt := time.Date(2030, 12, 20, 10, 0, 0, 0, time.UTC)
	cancelledAt := time.Date(2030, 12, 21, 11, 0, 0, 0, time.UTC)

	r := &models.Reservation{
		ID:          123,
		OwnerID:     456,
		DisplayName: "Тарас",
		Date:        date,
		Start:       models.At(14, 30),
		Duration:    90 * time.Minute,
		Status:      models.StatusCancelled,
		CreatedAt:   createdAt,
		CancelledAt: &cancelledAt,
	}

	values := reservationRowValues(r)

	expected := []interface{}{
		int64(123),
		int64(456),
		"Тарас",
		"2030-12-25",
		"14:30",
		"16:00",
		"cancelled",
		"2030-12-20 10:00:00",
		"2030-12-21 11:00:00",
	}

	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestCacheOperations(t *testing.T) {
	s := &SheetsService{
		rowCache: make(map[int64]int),
	}

	s.setCachedRow(100, 5)
	row, ok := s.getCachedRow(100)
	if !ok || row != 5 {
		t.Errorf("Expected row 5, got %d (ok=%v)", row, ok)
	}

	s.deleteCacheRow(100)
	_, ok = s.getCachedRow(100)
	if ok {
		t.Errorf("Expected row to be deleted from cache")
	}

	s.setCachedRow(200, 10)
	s.ClearCache()
	_, ok = s.getCachedRow(200)
	if ok {
		t.Errorf("Expected cache to be cleared")
	}
}

func TestPrepareDateHeaders(t *testing.T) {
	s := &SheetsService{}
	startDate := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := time.Date(2030, 1, 3, 0, 0, 0, 0, time.UTC)

	headers, cols := s.prepareDateHeaders(startDate, endDate)
	if cols != 3 {
		t.Errorf("Expected 3 columns, got %d", cols)
	}
	if len(headers) != 4 {
		t.Errorf("Expected 4 headers, got %d", len(headers))
	}
	if headers[1] != "01.01" || headers[2] != "02.01" || headers[3] != "03.01" {
		t.Errorf("Unexpected headers: %v", headers)
	}
}

func TestFormatScheduleCell(t *testing.T) {
	s := &SheetsService{}
	slot := models.Interval{Start: models.At(10, 0), End: models.At(10, 30)}

	t.Run("Empty", func(t *testing.T) {
		val, color := s.formatScheduleCell(slot, nil)
		assert.Equal(t, "вільно", val)
		assert.Equal(t, colorFree, color)
	})

	t.Run("Booked", func(t *testing.T) {
		day := []models.Reservation{
			{ID: 1, DisplayName: "Оля", Start: models.At(9, 30), Duration: time.Hour, Status: models.StatusActive},
		}
		val, color := s.formatScheduleCell(slot, day)
		assert.Equal(t, "Оля (09:30-10:30)", val)
		assert.Equal(t, colorBooked, color)
	})

	t.Run("AdjacentIsFree", func(t *testing.T) {
		day := []models.Reservation{
			{ID: 2, Start: models.At(10, 30), Duration: time.Hour},
		}
		val, _ := s.formatScheduleCell(slot, day)
		assert.Equal(t, "вільно", val)
	})

	t.Run("CancelledIsFree", func(t *testing.T) {
		day := []models.Reservation{
			{ID: 3, Start: models.At(10, 0), Duration: time.Hour, Status: models.StatusCancelled},
		}
		val, _ := s.formatScheduleCell(slot, day)
		assert.Equal(t, "вільно", val)
	})
}

func TestRowFromRange(t *testing.T) {
	cases := []struct {
		in  string
		row int
		ok  bool
	}{
		{"Записи!A7:I7", 7, true},
		{"Sheet1!A12", 12, true},
		{"'My Sheet'!B3:C4", 3, true},
		{"", 0, false},
		{"garbage", 0, false},
	}
	for _, tc := range cases {
		row, ok := rowFromRange(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.row, row, tc.in)
	}
}

func reservationEvent(t *testing.T, eventType string, r models.Reservation) events.Event {
	t.Helper()
	payload, err := json.Marshal(scheduler.ReservationEvent{Type: eventType, Reservation: r})
	require.NoError(t, err)
	return events.Event{Type: eventType, Payload: payload}
}

func TestHandleAppendsThenUpdatesCachedRow(t *testing.T) {
	api := newFakeSheets()
	s := testService(api)

	r := models.Reservation{ID: 42, OwnerID: 1, Date: time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), Start: models.At(10, 0), Duration: time.Hour, Status: models.StatusActive}
	require.NoError(t, s.Handle(reservationEvent(t, scheduler.EventReservationCreated, r)))
	require.Len(t, api.rows, 1)

	row, ok := s.getCachedRow(42)
	require.True(t, ok)
	assert.Equal(t, 1, row)

	r.Status = models.StatusCancelled
	require.NoError(t, s.Handle(reservationEvent(t, scheduler.EventReservationCancelled, r)))
	got, ok := api.updates["Записи!A1:I1"]
	require.True(t, ok)
	assert.Equal(t, "cancelled", got[0][6])
}

func TestUpdateFindsRowWhenCacheIsCold(t *testing.T) {
	api := newFakeSheets()
	api.rows = [][]interface{}{
		{"ID"},
		{int64(5)},
		{int64(9)},
	}
	s := testService(api)

	r := &models.Reservation{ID: 9, Date: time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), Start: models.At(8, 0), Duration: time.Hour, Status: models.StatusCancelled}
	require.NoError(t, s.UpdateReservation(context.Background(), r))

	_, ok := api.updates["Записи!A3:I3"]
	assert.True(t, ok)
	row, _ := s.getCachedRow(9)
	assert.Equal(t, 3, row)
}

func TestUpdateAppendsUnknownReservation(t *testing.T) {
	api := newFakeSheets()
	s := testService(api)

	r := &models.Reservation{ID: 77, Date: time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), Start: models.At(8, 0), Duration: time.Hour}
	require.NoError(t, s.UpdateReservation(context.Background(), r))
	assert.Len(t, api.rows, 1)
}

func TestHandleIgnoresOtherEvents(t *testing.T) {
	api := newFakeSheets()
	s := testService(api)

	require.NoError(t, s.Handle(reservationEvent(t, "something.else", models.Reservation{ID: 1})))
	assert.Empty(t, api.rows)
}

func TestEnsureHeader(t *testing.T) {
	api := newFakeSheets()
	s := testService(api)

	require.NoError(t, s.EnsureHeader(context.Background()))
	assert.Equal(t, [][]interface{}{logHeader}, api.updates["Записи!A1:I1"])
}

func TestSyncScheduleDrawsGrid(t *testing.T) {
	api := newFakeSheets()
	store := scheduler.NewMemoryStore()
	today := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)

	ok, err := store.InsertIfFree(context.Background(), &models.Reservation{
		OwnerID: 1, DisplayName: "Оля", Date: today, Start: models.At(9, 0), Duration: time.Hour, Status: models.StatusActive,
	}, today)
	require.NoError(t, err)
	require.True(t, ok)

	s := testService(api).WithSchedule(store, ScheduleConfig{
		WorkingHours: func(context.Context) (models.WorkingHours, error) {
			return models.WorkingHours{StartHour: 8, EndHour: 10}, nil
		},
		Granularity: time.Hour,
		Days:        2,
		Today:       func() time.Time { return today },
	})

	require.NoError(t, s.SyncSchedule(context.Background()))
	require.Len(t, api.requests, 2)

	grid := api.requests[1].UpdateCells.Rows
	require.Len(t, grid, 3) // header + 08:00 + 09:00
	assert.Equal(t, "Час", *grid[0].Values[0].UserEnteredValue.StringValue)
	assert.Equal(t, "вільно", *grid[1].Values[1].UserEnteredValue.StringValue)
	assert.Equal(t, "Оля (09:00-10:00)", *grid[2].Values[1].UserEnteredValue.StringValue)
	assert.Equal(t, "вільно", *grid[2].Values[2].UserEnteredValue.StringValue)
}
