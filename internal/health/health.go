package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is anything whose liveness can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Check is a named readiness dependency.
type Check struct {
	Name   string
	Pinger Pinger
}

// Checker aggregates readiness dependencies.
type Checker struct {
	checks  []Check
	timeout time.Duration
}

func NewChecker(checks ...Check) *Checker {
	return &Checker{checks: checks, timeout: time.Second}
}

// Ready pings every dependency and returns the first failure, naming it.
func (c *Checker) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	for _, chk := range c.checks {
		if chk.Pinger == nil {
			continue
		}
		if err := chk.Pinger.Ping(ctx); err != nil {
			return fmt.Errorf("%s not ready: %w", chk.Name, err)
		}
	}
	return nil
}

// Handler serves /healthz (liveness) and /readyz (dependencies).
func (c *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Ready(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	return mux
}

// ServeHTTP runs the health endpoints on port until ctx is done.
func (c *Checker) ServeHTTP(ctx context.Context, port int, logger *zerolog.Logger) {
	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: c.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("health server error")
	}
}

// GRPCServer exposes the standard grpc.health.v1 service, refreshing the
// overall status from the Checker on an interval.
type GRPCServer struct {
	checker  *Checker
	health   *grpchealth.Server
	server   *grpc.Server
	interval time.Duration
	logger   zerolog.Logger
}

func NewGRPCServer(checker *Checker, logger *zerolog.Logger) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCServer{
		checker:  checker,
		health:   hs,
		server:   srv,
		interval: 15 * time.Second,
		logger:   logger.With().Str("component", "grpc_health").Logger(),
	}
}

// Refresh re-evaluates readiness once and publishes it.
func (g *GRPCServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := g.checker.Ready(ctx); err != nil {
		g.logger.Warn().Err(err).Msg("not serving")
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	return status
}

// Serve listens on port until ctx is done.
func (g *GRPCServer) Serve(ctx context.Context, port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}
	return g.serve(ctx, lis)
}

func (g *GRPCServer) serve(ctx context.Context, lis net.Listener) error {
	g.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				g.health.Shutdown()
				g.server.GracefulStop()
				return
			case <-ticker.C:
				g.Refresh(ctx)
			}
		}
	}()
	g.logger.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
	if err := g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
