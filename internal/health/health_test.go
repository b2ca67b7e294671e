package health

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type switchPinger struct {
	err error
}

func (p *switchPinger) Ping(context.Context) error { return p.err }

func TestHealthEndpoints(t *testing.T) {
	db := &switchPinger{}
	redis := &switchPinger{}
	h := NewChecker(Check{Name: "db", Pinger: db}, Check{Name: "redis", Pinger: redis}, Check{Name: "absent"}).Handler()

	tests := []struct {
		name       string
		path       string
		dbErr      error
		redisErr   error
		wantStatus int
		wantBody   string
	}{
		{name: "liveness", path: "/healthz", dbErr: errors.New("down"), wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "ready", path: "/readyz", wantStatus: http.StatusOK, wantBody: "ready"},
		{name: "db down", path: "/readyz", dbErr: errors.New("down"), wantStatus: http.StatusServiceUnavailable, wantBody: "db not ready"},
		{name: "redis down", path: "/readyz", redisErr: errors.New("down"), wantStatus: http.StatusServiceUnavailable, wantBody: "redis not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db.err, redis.err = tt.dbErr, tt.redisErr
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestPingFunc(t *testing.T) {
	called := false
	c := NewChecker(Check{Name: "store", Pinger: PingFunc(func(context.Context) error {
		called = true
		return nil
	})})
	require.NoError(t, c.Ready(context.Background()))
	assert.True(t, called)
}

func TestGRPCRefresh(t *testing.T) {
	logger := zerolog.New(io.Discard)
	store := &switchPinger{}
	g := NewGRPCServer(NewChecker(Check{Name: "store", Pinger: store}), &logger)
	ctx := context.Background()

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, g.Refresh(ctx))
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	store.err = errors.New("gone")
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, g.Refresh(ctx))
	resp, err = g.health.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}
