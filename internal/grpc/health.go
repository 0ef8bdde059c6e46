package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name clients can check besides "".
const ServiceName = "bookstore.Bookstore"

type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler keeps the gRPC health status in line with the backing
// stores: SERVING while every dependency answers its ping, NOT_SERVING as
// soon as one does not.
type HealthHandler struct {
	health   *health.Server
	deps     map[string]Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHealthHandler(deps map[string]Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		health:   health.NewServer(),
		deps:     deps,
		interval: 10 * time.Second,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// NewServer returns a gRPC server exposing the health service and reflection.
func NewServer(h *HealthHandler) *grpc.Server {
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, h.health)
	// Enable reflection for grpcurl/grpcui
	reflection.Register(grpcServer)
	return grpcServer
}

func (h *HealthHandler) Run(ctx context.Context) {
	h.check(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.check(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING so clients drain before the server stops.
func (h *HealthHandler) Shutdown() {
	h.health.Shutdown()
}

func (h *HealthHandler) check(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	for name, dep := range h.deps {
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := dep.Ping(pingCtx)
		cancel()
		if err != nil {
			h.logger.Warn("dependency unhealthy", zap.String("dependency", name), zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}
