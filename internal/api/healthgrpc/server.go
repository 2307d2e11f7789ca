// Package healthgrpc exposes the standard gRPC health service so a process
// supervisor can probe the camera daemon.
package healthgrpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"spicam-server/internal/clock"
)

// CameraService is the per-service name reporting camera availability.
const CameraService = "spicam.camera"

const defaultRefresh = 5 * time.Second

// Probe reports whether the camera can be opened.
type Probe interface {
	Available() bool
}

type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	probe   Probe
	refresh time.Duration
	clock   clock.Clock
	logger  zerolog.Logger
}

func NewServer(probe Probe, clk clock.Clock, logger zerolog.Logger) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{
		grpc:    gs,
		health:  hs,
		probe:   probe,
		refresh: defaultRefresh,
		clock:   clk,
		logger:  logger,
	}
	s.Refresh()
	return s
}

// Refresh recomputes the serving status. The overall service is always
// SERVING while the process runs; only the camera entry follows the device.
func (s *Server) Refresh() {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.probe.Available() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(CameraService, status)
}

// Health is the underlying health implementation, useful for in-process checks.
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server listening")
	if err := s.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("grpc health server: %w", err)
	}
	return nil
}

// Watch refreshes the status until ctx is cancelled.
func (s *Server) Watch(ctx context.Context) {
	for {
		if err := clock.SleepContext(ctx, s.clock, s.refresh); err != nil {
			return
		}
		s.Refresh()
	}
}

func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
	s.logger.Info().Msg("gRPC health server stopped")
}
