// Package admin supplies operational surfaces that sit outside the
// client-facing Bancho wire protocol: a gRPC health check for
// container probes, and a JWT-gated HTTP API for silence/notice/
// inspection actions.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes only the standard health check service; liveness
// and readiness probes are the sole reason banchod speaks gRPC at all.
type GRPCServer struct {
	addr       string
	server     *grpc.Server
	healthSrv  *health.Server
	logger     *slog.Logger
}

func NewGRPCServer(host string, port int, logger *slog.Logger) *GRPCServer {
	server := grpc.NewServer()
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthSrv)

	return &GRPCServer{
		addr:      fmt.Sprintf("%s:%d", host, port),
		server:    server,
		healthSrv: healthSrv,
		logger:    logger,
	}
}

// SetServing flags the overall service healthy or not, surfaced to
// any client calling the standard Check/Watch RPCs.
func (g *GRPCServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	g.healthSrv.SetServingStatus("", status)
}

func (g *GRPCServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("admin: listen on %s: %w", g.addr, err)
	}

	g.logger.Info("admin gRPC health server starting", "address", g.addr)
	go func() {
		if err := g.server.Serve(listener); err != nil {
			g.logger.Error("admin gRPC server error", "error", err)
		}
	}()
	return nil
}

func (g *GRPCServer) Stop(ctx context.Context) error {
	g.logger.Info("admin gRPC health server stopping")
	g.server.GracefulStop()
	return nil
}
