package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error  string `json:"error"`
	Rule   string `json:"rule,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// DayResponse is one bookable day.
type DayResponse struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Slots int    `json:"slots"`
}

// SlotsResponse lists free starts; Reason is set when the day is full.
type SlotsResponse struct {
	Date   string           `json:"date"`
	Slots  []string         `json:"slots"` // HH:MM
	Reason scheduler.Reason `json:"reason,omitempty"`
}

// ReserveRequest is the body of POST /api/reservations.
type ReserveRequest struct {
	OwnerID         int64  `json:"owner_id"`
	DisplayName     string `json:"display_name"`
	Date            string `json:"date"`  // YYYY-MM-DD
	Start           string `json:"start"` // HH:MM
	DurationMinutes int    `json:"duration_minutes"`
}

// ReservationResponse is a reservation as returned by the API.
type ReservationResponse struct {
	ID                    int64      `json:"id"`
	OwnerID               int64      `json:"owner_id"`
	DisplayName           string     `json:"display_name,omitempty"`
	Date                  string     `json:"date"`
	Start                 string     `json:"start"`
	End                   string     `json:"end"`
	DurationMinutes       int        `json:"duration_minutes"`
	Status                string     `json:"status"`
	Completed             bool       `json:"completed,omitempty"`
	FreeCancellationUntil *time.Time `json:"free_cancellation_until,omitempty"`
}

// CancelRequest is the body of POST /api/reservations/:id/cancel.
type CancelRequest struct {
	OwnerID int64 `json:"owner_id"`
}

// CancelResponse reports the cancellation outcome.
type CancelResponse struct {
	Status      scheduler.CancelStatus `json:"status"`
	Reservation ReservationResponse    `json:"reservation"`
	Fee         *scheduler.Fee         `json:"fee,omitempty"`
}

// handleDays lists days with free slots.
// GET /api/days?window=7
func (s *HTTPServer) handleDays(c *gin.Context) {
	window := 0
	if raw := c.Query("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "window must be a non-negative integer")
			return
		}
		window = n
	}

	days, err := s.sched.ListAvailableDays(c.Request.Context(), window)
	if err != nil {
		s.writeSchedulerError(c, err)
		return
	}

	out := make([]DayResponse, 0, len(days))
	for _, d := range days {
		out = append(out, DayResponse{Date: models.DateKey(d.Date), Slots: d.Slots})
	}
	c.JSON(http.StatusOK, gin.H{"days": out})
}

// handleSlots lists free starts of a date.
// GET /api/days/:date/slots
func (s *HTTPServer) handleSlots(c *gin.Context) {
	date, err := models.ParseDate(c.Param("date"), s.sched.Location())
	if err != nil {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "invalid date format; expected YYYY-MM-DD")
		return
	}

	starts, err := s.sched.ListAvailableSlots(c.Request.Context(), date)
	resp := SlotsResponse{Date: models.DateKey(date), Slots: []string{}}
	switch {
	case errors.Is(err, scheduler.ErrNoAvailability):
		resp.Reason = scheduler.ReasonNoAvailability
		c.JSON(http.StatusOK, resp)
		return
	case err != nil:
		s.writeSchedulerError(c, err)
		return
	}

	for _, st := range starts {
		resp.Slots = append(resp.Slots, st.String())
	}
	c.JSON(http.StatusOK, resp)
}

// handleReserve books an interval.
// POST /api/reservations
func (s *HTTPServer) handleReserve(c *gin.Context) {
	var req ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "invalid JSON body")
		return
	}

	date, err := models.ParseDate(req.Date, s.sched.Location())
	if err != nil {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "invalid date format; expected YYYY-MM-DD")
		return
	}
	start, err := models.ParseTimeOfDay(req.Start)
	if err != nil {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "invalid start format; expected HH:MM")
		return
	}

	r, err := s.sched.Reserve(c.Request.Context(), scheduler.ReserveRequest{
		OwnerID:     req.OwnerID,
		DisplayName: req.DisplayName,
		Date:        date,
		Start:       start,
		Duration:    time.Duration(req.DurationMinutes) * time.Minute,
	})
	if err != nil {
		s.writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusCreated, reservationResponse(r))
}

// handleCancel cancels a reservation on behalf of its owner.
// POST /api/reservations/:id/cancel
func (s *HTTPServer) handleCancel(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "invalid reservation id")
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OwnerID == 0 {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "owner_id is required")
		return
	}

	result, err := s.sched.Cancel(c.Request.Context(), req.OwnerID, id)
	if err != nil {
		s.writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, CancelResponse{
		Status:      result.Status,
		Reservation: reservationResponse(&result.Reservation),
		Fee:         result.Fee,
	})
}

// handleMyReservations lists an owner's reservations.
// GET /api/owners/:owner_id/reservations
func (s *HTTPServer) handleMyReservations(c *gin.Context) {
	ownerID, err := strconv.ParseInt(c.Param("owner_id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "invalid owner id")
		return
	}

	list, err := s.sched.ListMyReservations(c.Request.Context(), ownerID)
	if err != nil {
		s.writeSchedulerError(c, err)
		return
	}

	out := make([]ReservationResponse, 0, len(list))
	for i := range list {
		resp := reservationResponse(&list[i].Reservation)
		resp.Completed = list[i].Completed
		freeUntil := list[i].FreeUntil
		resp.FreeCancellationUntil = &freeUntil
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, gin.H{"reservations": out})
}

// GET /api/working-hours
func (s *HTTPServer) handleGetWorkingHours(c *gin.Context) {
	wh, err := s.sched.WorkingHours(c.Request.Context())
	if err != nil {
		s.writeSchedulerError(c, err)
		return
	}
	c.JSON(http.StatusOK, wh)
}

// PUT /api/working-hours
func (s *HTTPServer) handleSetWorkingHours(c *gin.Context) {
	var wh models.WorkingHours
	if err := c.ShouldBindJSON(&wh); err != nil {
		writeError(c, http.StatusBadRequest, string(scheduler.ReasonInvalidRequest), "invalid JSON body")
		return
	}
	if err := s.sched.SetWorkingHours(c.Request.Context(), wh); err != nil {
		s.writeSchedulerError(c, err)
		return
	}
	zerolog.Ctx(c.Request.Context()).Info().Str("hours", wh.String()).Msg("working hours updated via api")
	c.JSON(http.StatusOK, wh)
}

// writeSchedulerError maps the scheduler's error taxonomy onto HTTP.
func (s *HTTPServer) writeSchedulerError(c *gin.Context, err error) {
	var rej *scheduler.RejectionError
	switch {
	case scheduler.IsRetryable(err):
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("infrastructure failure")
		c.Header("Retry-After", "5")
		writeError(c, http.StatusServiceUnavailable, "infrastructure_failure", "temporarily unavailable, retry later")
	case errors.As(err, &rej):
		c.AbortWithStatusJSON(statusFor(rej.Reason), ErrorResponse{Error: string(rej.Reason), Rule: rej.Rule, Detail: rej.Detail})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("unexpected error")
		writeError(c, http.StatusInternalServerError, "internal", "internal error")
	}
}

func statusFor(reason scheduler.Reason) int {
	switch reason {
	case scheduler.ReasonInvalidRequest:
		return http.StatusBadRequest
	case scheduler.ReasonPastTime:
		return http.StatusUnprocessableEntity
	case scheduler.ReasonSlotTaken:
		return http.StatusConflict
	case scheduler.ReasonNotFound, scheduler.ReasonNoAvailability:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func writeError(c *gin.Context, status int, code, detail string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Detail: detail})
}

func reservationResponse(r *models.Reservation) ReservationResponse {
	status := r.Status
	if status == "" {
		status = models.StatusActive
	}
	return ReservationResponse{
		ID:              r.ID,
		OwnerID:         r.OwnerID,
		DisplayName:     r.DisplayName,
		Date:            models.DateKey(r.Date),
		Start:           r.Start.String(),
		End:             r.End().String(),
		DurationMinutes: int(r.Duration / time.Minute),
		Status:          status,
	}
}
