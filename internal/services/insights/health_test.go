package insights

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func grpcStatus(t *testing.T, h *Health, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.server.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestHealthStartsNotServing(t *testing.T) {
	h := NewHealth(nil, nil)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, grpcStatus(t, h, ServiceName))
}

func TestHealthRefresh(t *testing.T) {
	var dbErr error
	h := NewHealth(map[string]Pinger{
		"sqlite": pingFunc(func(context.Context) error { return dbErr }),
	}, nil)

	assert.Empty(t, h.Refresh(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, grpcStatus(t, h, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, grpcStatus(t, h, ServiceName))

	dbErr = errors.New("disk I/O error")
	failed := h.Refresh(context.Background())
	assert.Equal(t, map[string]string{"sqlite": "disk I/O error"}, failed)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, grpcStatus(t, h, ServiceName))
}

func TestReadyz(t *testing.T) {
	var dbErr error
	h := NewHealth(map[string]Pinger{
		"sqlite": pingFunc(func(context.Context) error { return dbErr }),
	}, nil)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	dbErr = errors.New("locked")
	rec = httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "locked")
}
