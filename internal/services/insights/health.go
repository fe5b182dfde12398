package insights

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/greenhouse_insights/internal/api"
)

// ServiceName is the gRPC health service name of the insights API.
const ServiceName = "greenhouse.insights"

// Pinger is a dependency whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Health tracks readiness for both /readyz and the gRPC health service.
type Health struct {
	server *health.Server
	deps   map[string]Pinger
	logger *zap.Logger
}

func NewHealth(deps map[string]Pinger, logger *zap.Logger) *Health {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Health{server: health.NewServer(), deps: deps, logger: logger}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

func (h *Health) set(st healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(ServiceName, st)
}

// Check pings every dependency and returns name -> error text for the failing ones.
func (h *Health) Check(ctx context.Context) map[string]string {
	failed := make(map[string]string)
	for name, dep := range h.deps {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := dep.Ping(pctx); err != nil {
			failed[name] = err.Error()
		}
		cancel()
	}
	return failed
}

// Refresh updates the gRPC serving status from a fresh Check.
func (h *Health) Refresh(ctx context.Context) map[string]string {
	failed := h.Check(ctx)
	if len(failed) == 0 {
		h.set(healthpb.HealthCheckResponse_SERVING)
	} else {
		h.logger.Warn("not ready", zap.Any("failed", failed))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return failed
}

// Run refreshes every interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	h.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return nil
		case <-t.C:
			h.Refresh(ctx)
		}
	}
}

func (h *Health) Livez(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Health) Readyz(w http.ResponseWriter, r *http.Request) {
	failed := h.Refresh(r.Context())
	if len(failed) > 0 {
		api.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"ready": false, "failed": failed})
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// ServeGRPC exposes the health service on addr until ctx is done.
func (h *Health) ServeGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, h.server)

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	h.logger.Info("grpc health listening", zap.String("addr", addr))
	if err := srv.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}
