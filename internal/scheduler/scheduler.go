package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/metrics"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/slots"
)

// Event types published after state changes.
const (
	EventReservationCreated   = "reservation.created"
	EventReservationCancelled = "reservation.cancelled"
	EventReservationPenalized = "reservation.penalized"
)

const maxWindowDays = 60

// ReservationEvent is the payload of every reservation event.
type ReservationEvent struct {
	Type        string             `json:"type"`
	Reservation models.Reservation `json:"reservation"`
	Fee         *Fee               `json:"fee,omitempty"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

// EventPublisher receives reservation events. Failures are logged only.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Config holds the booking rules.
type Config struct {
	Granularity  time.Duration
	Durations    []time.Duration
	WorkingHours models.WorkingHours
	Policy       Policy
	WindowDays   int
	Location     *time.Location
	StoreTimeout time.Duration
}

// Scheduler validates and commits reservations and cancellations.
// It holds no reservation state between calls.
type Scheduler struct {
	store  Store
	clock  Clock
	cfg    Config
	events EventPublisher
	logger zerolog.Logger
}

func New(store Store, clock Clock, cfg Config, logger *zerolog.Logger) *Scheduler {
	if cfg.Granularity <= 0 {
		cfg.Granularity = slots.DefaultGranularity
	}
	if len(cfg.Durations) == 0 {
		cfg.Durations = []time.Duration{time.Hour, 90 * time.Minute, 2 * time.Hour}
	}
	cfg.Durations = append([]time.Duration(nil), cfg.Durations...)
	sort.Slice(cfg.Durations, func(i, j int) bool { return cfg.Durations[i] < cfg.Durations[j] })
	if cfg.WorkingHours.Validate() != nil {
		cfg.WorkingHours = models.WorkingHours{StartHour: 8, EndHour: 20}
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if clock == nil {
		clock = SystemClock{Location: cfg.Location}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}

	return &Scheduler{
		store:  store,
		clock:  clock,
		cfg:    cfg,
		logger: l.With().Str("component", "scheduler").Logger(),
	}
}

// SetEventPublisher attaches the sink for reservation events.
func (s *Scheduler) SetEventPublisher(p EventPublisher) {
	s.events = p
}

// Durations returns the allowed lesson lengths, shortest first.
func (s *Scheduler) Durations() []time.Duration {
	return append([]time.Duration(nil), s.cfg.Durations...)
}

func (s *Scheduler) Policy() Policy { return s.cfg.Policy }
func (s *Scheduler) Location() *time.Location { return s.cfg.Location }
func (s *Scheduler) WindowDays() int { return s.cfg.WindowDays }

// Now is the scheduler's notion of the current instant.
func (s *Scheduler) Now() time.Time {
	return s.clock.Now().In(s.cfg.Location)
}

// Today is midnight of the current day.
func (s *Scheduler) Today() time.Time {
	return models.DateOf(s.Now())
}

func (s *Scheduler) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		sub := l.With().Str("component", "scheduler").Logger()
		return &sub
	}
	return &s.logger
}

func (s *Scheduler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// normalizeDate maps the calendar day of d to midnight in the service zone.
func (s *Scheduler) normalizeDate(d time.Time) time.Time {
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, s.cfg.Location)
}

func (s *Scheduler) minDuration() time.Duration {
	return s.cfg.Durations[0]
}

func (s *Scheduler) allowedDuration(d time.Duration) bool {
	for _, allowed := range s.cfg.Durations {
		if allowed == d {
			return true
		}
	}
	return false
}

// WorkingHours returns the stored hours, falling back to the configured default.
func (s *Scheduler) WorkingHours(ctx context.Context) (models.WorkingHours, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	wh, err := s.store.LoadWorkingHours(ctx)
	if err != nil {
		metrics.IncStoreError("load_working_hours")
		return models.WorkingHours{}, infraError("load working hours", err)
	}
	if wh == nil {
		return s.cfg.WorkingHours, nil
	}
	return *wh, nil
}

// SetWorkingHours is the administrative mutation of the bookable day.
// Existing reservations are left untouched.
func (s *Scheduler) SetWorkingHours(ctx context.Context, wh models.WorkingHours) error {
	if err := wh.Validate(); err != nil {
		return reject(ReasonInvalidRequest, RuleInvalidWorkingHours, "%v", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.SaveWorkingHours(ctx, wh); err != nil {
		metrics.IncStoreError("save_working_hours")
		return infraError("save working hours", err)
	}
	s.log(ctx).Info().Str("working_hours", wh.String()).Msg("working hours updated")
	return nil
}

// DayAvailability is one bookable day and how many starts remain on it.
type DayAvailability struct {
	Date  time.Time `json:"date"`
	Slots int       `json:"slots"`
}

// ListAvailableDays scans windowDays days from today and keeps those with at
// least one free start. windowDays <= 0 uses the configured window.
func (s *Scheduler) ListAvailableDays(ctx context.Context, windowDays int) ([]DayAvailability, error) {
	if windowDays <= 0 {
		windowDays = s.cfg.WindowDays
	}
	if windowDays > maxWindowDays {
		return nil, reject(ReasonInvalidRequest, RuleWindowTooLarge, "window of %d days exceeds %d", windowDays, maxWindowDays)
	}

	now := s.Now()
	today := models.DateOf(now)
	wh, err := s.WorkingHours(ctx)
	if err != nil {
		return nil, err
	}

	var days []DayAvailability
	for i := 0; i < windowDays; i++ {
		date := today.AddDate(0, 0, i)
		free, err := s.freeStarts(ctx, date, wh, now)
		if err != nil {
			return nil, err
		}
		if len(free) > 0 {
			days = append(days, DayAvailability{Date: date, Slots: len(free)})
		}
	}
	return days, nil
}

// ListAvailableSlots returns the free starts of date. The result is advisory;
// Reserve re-checks at commit time.
func (s *Scheduler) ListAvailableSlots(ctx context.Context, date time.Time) ([]models.TimeOfDay, error) {
	if date.IsZero() {
		return nil, reject(ReasonInvalidRequest, RuleMalformedDate, "date is required")
	}
	now := s.Now()
	date = s.normalizeDate(date)
	if date.Before(models.DateOf(now)) {
		return nil, reject(ReasonInvalidRequest, RuleDateInPast, "%s is before today", models.DateKey(date))
	}

	wh, err := s.WorkingHours(ctx)
	if err != nil {
		return nil, err
	}
	free, err := s.freeStarts(ctx, date, wh, now)
	if err != nil {
		return nil, err
	}
	if len(free) == 0 {
		return nil, reject(ReasonNoAvailability, RuleFullyBooked, "no free slots on %s", models.DateKey(date))
	}
	return free, nil
}

func (s *Scheduler) freeStarts(ctx context.Context, date time.Time, wh models.WorkingHours, now time.Time) ([]models.TimeOfDay, error) {
	reservations, err := s.loadReservations(ctx, date)
	if err != nil {
		return nil, err
	}

	shortest := s.minDuration()
	available := slots.Available(date, slots.Generate(wh, s.cfg.Granularity), reservations, now, shortest)

	// A start is only worth offering if the shortest lesson fits before closing.
	free := available[:0]
	for _, start := range available {
		if start.Add(shortest) <= wh.Closes() {
			free = append(free, start)
		}
	}
	return free, nil
}

func (s *Scheduler) loadReservations(ctx context.Context, date time.Time) ([]models.Reservation, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	reservations, err := s.store.LoadReservations(ctx, date)
	if err != nil {
		metrics.IncStoreError("load_reservations")
		return nil, infraError("load reservations", err)
	}
	for i := range reservations {
		reservations[i].Date = s.normalizeDate(reservations[i].Date)
	}
	return reservations, nil
}

// DurationOptions lists the lesson lengths that currently fit at start on date.
func (s *Scheduler) DurationOptions(ctx context.Context, date time.Time, start models.TimeOfDay) ([]time.Duration, error) {
	date = s.normalizeDate(date)
	wh, err := s.WorkingHours(ctx)
	if err != nil {
		return nil, err
	}
	reservations, err := s.loadReservations(ctx, date)
	if err != nil {
		return nil, err
	}
	return slots.DurationOptions(start, s.cfg.Durations, wh, reservations, s.Now()), nil
}

// ReserveRequest carries a complete booking request.
type ReserveRequest struct {
	OwnerID     int64
	DisplayName string
	Date        time.Time
	Start       models.TimeOfDay
	Duration    time.Duration
}

// Reserve validates req and atomically stores it if its interval is free.
func (s *Scheduler) Reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	started := time.Now()
	r, err := s.reserve(ctx, req)
	metrics.ObserveReserve(resultLabel(err, "ok"), time.Since(started))

	l := s.log(ctx)
	if err != nil {
		l.Info().
			Err(err).
			Int64("owner_id", req.OwnerID).
			Str("date", models.DateKey(req.Date)).
			Str("start", req.Start.String()).
			Dur("duration", req.Duration).
			Msg("reservation rejected")
		return nil, err
	}

	l.Info().
		Int64("reservation_id", r.ID).
		Int64("owner_id", r.OwnerID).
		Str("date", models.DateKey(r.Date)).
		Str("start", r.Start.String()).
		Dur("duration", r.Duration).
		Msg("reservation created")
	s.publish(ctx, EventReservationCreated, r, nil)
	return r, nil
}

func (s *Scheduler) reserve(ctx context.Context, req ReserveRequest) (*models.Reservation, error) {
	switch {
	case req.OwnerID == 0:
		return nil, reject(ReasonInvalidRequest, RuleMissingOwner, "owner id is required")
	case req.Date.IsZero():
		return nil, reject(ReasonInvalidRequest, RuleMalformedDate, "date is required")
	case req.Start < 0 || req.Start >= models.At(24, 0):
		return nil, reject(ReasonInvalidRequest, RuleMalformedTime, "start %d is not a time of day", int(req.Start))
	case !s.allowedDuration(req.Duration):
		return nil, reject(ReasonInvalidRequest, RuleDurationNotAllowed, "duration %s is not offered", req.Duration)
	}

	date := s.normalizeDate(req.Date)
	now := s.Now()
	if startsAt := req.Start.On(date); !startsAt.After(now) {
		return nil, reject(ReasonPastTime, RuleStartElapsed, "%s %s has already started", models.DateKey(date), req.Start)
	}

	wh, err := s.WorkingHours(ctx)
	if err != nil {
		return nil, err
	}
	iv := models.Interval{Start: req.Start, End: req.Start.Add(req.Duration)}
	if !wh.Contains(iv) {
		return nil, reject(ReasonInvalidRequest, RuleOutsideWorkingHours, "%s-%s is outside %s", iv.Start, iv.End, wh)
	}

	r := &models.Reservation{
		OwnerID:     req.OwnerID,
		DisplayName: req.DisplayName,
		Date:        date,
		Start:       req.Start,
		Duration:    req.Duration,
	}

	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	inserted, err := s.store.InsertIfFree(storeCtx, r, now)
	if err != nil {
		metrics.IncStoreError("insert_reservation")
		return nil, infraError("insert reservation", err)
	}
	if !inserted {
		return nil, reject(ReasonSlotTaken, RuleOverlap, "%s %s-%s overlaps an existing reservation", models.DateKey(date), iv.Start, iv.End)
	}
	return r, nil
}

// CancelStatus distinguishes a free cancellation from a penalized one.
type CancelStatus string

const (
	CancelOK        CancelStatus = "ok"
	CancelPenalized CancelStatus = "penalized"
)

// CancelResult describes a completed cancellation request. A penalized
// result leaves the reservation active and carries the fee owed.
type CancelResult struct {
	Status      CancelStatus       `json:"status"`
	Reservation models.Reservation `json:"reservation"`
	Fee         *Fee               `json:"fee,omitempty"`
	Notice      time.Duration      `json:"notice"`
}

// Cancel withdraws ownerID's reservation when the notice window allows it.
func (s *Scheduler) Cancel(ctx context.Context, ownerID, reservationID int64) (*CancelResult, error) {
	result, err := s.cancel(ctx, ownerID, reservationID)

	l := s.log(ctx)
	switch {
	case err != nil:
		metrics.IncCancel(resultLabel(err, ""))
		l.Info().Err(err).Int64("owner_id", ownerID).Int64("reservation_id", reservationID).Msg("cancellation rejected")
		return nil, err
	case result.Status == CancelPenalized:
		metrics.IncCancel(string(CancelPenalized))
		l.Info().
			Int64("owner_id", ownerID).
			Int64("reservation_id", reservationID).
			Dur("notice", result.Notice).
			Str("fee", result.Fee.String()).
			Msg("late cancellation, reservation kept")
		s.publish(ctx, EventReservationPenalized, &result.Reservation, result.Fee)
	default:
		metrics.IncCancel(string(CancelOK))
		l.Info().Int64("owner_id", ownerID).Int64("reservation_id", reservationID).Msg("reservation cancelled")
		s.publish(ctx, EventReservationCancelled, &result.Reservation, nil)
	}
	return result, nil
}

func (s *Scheduler) cancel(ctx context.Context, ownerID, reservationID int64) (*CancelResult, error) {
	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := s.store.GetReservation(storeCtx, reservationID)
	if err != nil {
		metrics.IncStoreError("get_reservation")
		return nil, infraError("get reservation", err)
	}
	if r == nil || r.OwnerID != ownerID {
		return nil, reject(ReasonNotFound, RuleUnknownReservation, "reservation %d", reservationID)
	}
	r.Date = s.normalizeDate(r.Date)

	now := s.Now()
	if r.IsCompleted(now) {
		return nil, reject(ReasonInvalidRequest, RuleAlreadyCompleted, "reservation %d ended at %s", reservationID, r.EndsAt().Format(time.RFC3339))
	}
	decision := s.cfg.Policy.Evaluate(now, r.StartsAt())
	if !decision.Free {
		fee := decision.Fee
		return &CancelResult{Status: CancelPenalized, Reservation: *r, Fee: &fee, Notice: decision.Notice}, nil
	}

	deleted, err := s.store.DeleteReservation(storeCtx, reservationID, now)
	if err != nil {
		metrics.IncStoreError("delete_reservation")
		return nil, infraError("delete reservation", err)
	}
	if !deleted {
		return nil, reject(ReasonNotFound, RuleUnknownReservation, "reservation %d", reservationID)
	}
	r.Status = models.StatusCancelled
	r.CancelledAt = &now
	return &CancelResult{Status: CancelOK, Reservation: *r, Notice: decision.Notice}, nil
}

// OwnedReservation is a reservation as shown to its owner.
type OwnedReservation struct {
	models.Reservation
	Completed bool      `json:"completed"`
	FreeUntil time.Time `json:"free_cancellation_until"`
}

// ListMyReservations returns ownerID's active reservations ordered by start.
func (s *Scheduler) ListMyReservations(ctx context.Context, ownerID int64) ([]OwnedReservation, error) {
	if ownerID == 0 {
		return nil, reject(ReasonInvalidRequest, RuleMissingOwner, "owner id is required")
	}

	storeCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	list, err := s.store.ListByOwner(storeCtx, ownerID)
	if err != nil {
		metrics.IncStoreError("list_by_owner")
		return nil, infraError("list reservations", err)
	}

	now := s.Now()
	out := make([]OwnedReservation, 0, len(list))
	for _, r := range list {
		r.Date = s.normalizeDate(r.Date)
		out = append(out, OwnedReservation{
			Reservation: r,
			Completed:   r.IsCompleted(now),
			FreeUntil:   s.cfg.Policy.FreeUntil(r.StartsAt()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartsAt().Before(out[j].StartsAt())
	})
	return out, nil
}

func (s *Scheduler) publish(ctx context.Context, eventType string, r *models.Reservation, fee *Fee) {
	if s.events == nil {
		return
	}
	ev := ReservationEvent{Type: eventType, Reservation: *r, Fee: fee, OccurredAt: s.Now()}
	if err := s.events.PublishJSON(eventType, ev); err != nil {
		s.log(ctx).Warn().Err(err).Str("event", eventType).Msg("publish event")
	}
}
