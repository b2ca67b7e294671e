package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RuslanDrummer/telegram-bot/internal/metrics"
	"github.com/RuslanDrummer/telegram-bot/internal/models"
	"github.com/RuslanDrummer/telegram-bot/internal/scheduler"
)

const apiKeyHeader = "x-api-key"

// Scheduler is the booking surface exposed over HTTP.
type Scheduler interface {
	ListAvailableDays(ctx context.Context, windowDays int) ([]scheduler.DayAvailability, error)
	ListAvailableSlots(ctx context.Context, date time.Time) ([]models.TimeOfDay, error)
	Reserve(ctx context.Context, req scheduler.ReserveRequest) (*models.Reservation, error)
	Cancel(ctx context.Context, ownerID, reservationID int64) (*scheduler.CancelResult, error)
	ListMyReservations(ctx context.Context, ownerID int64) ([]scheduler.OwnedReservation, error)
	WorkingHours(ctx context.Context) (models.WorkingHours, error)
	SetWorkingHours(ctx context.Context, wh models.WorkingHours) error
	Location() *time.Location
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	sched  Scheduler
	apiKey string
	server *http.Server
	logger zerolog.Logger
}

// NewHTTPServer builds the router. An empty apiKey leaves the API open.
func NewHTTPServer(port int, apiKey string, sched Scheduler, logger *zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		sched:  sched,
		apiKey: apiKey,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api", s.authMiddleware())
	{
		api.GET("/days", s.handleDays)
		api.GET("/days/:date/slots", s.handleSlots)
		api.POST("/reservations", s.handleReserve)
		api.POST("/reservations/:id/cancel", s.handleCancel)
		api.GET("/owners/:owner_id/reservations", s.handleMyReservations)
		api.GET("/working-hours", s.handleGetWorkingHours)
		api.PUT("/working-hours", s.handleSetWorkingHours)
	}
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("api listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("api server: %w", err)
	}
}

func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		l := s.logger.With().Str("request_id", reqID).Logger()
		c.Request = c.Request.WithContext(l.WithContext(c.Request.Context()))
		c.Header("X-Request-ID", reqID)

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(endpoint, c.Writer.Status())
		l.Debug().
			Str("method", c.Request.Method).
			Str("path", endpoint).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(started)).
			Msg("api request")
	}
}

func (s *HTTPServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.apiKey == "" {
			c.Next()
			return
		}
		key := c.GetHeader(apiKeyHeader)
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.apiKey)) != 1 {
			writeError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
			return
		}
		c.Next()
	}
}
