// Package health exposes provider availability over the standard gRPC
// health protocol. The overall service ("") stays SERVING while the process
// runs; each provider is its own service and turns NOT_SERVING when its
// breaker opens.
package health

import (
	"context"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"advisor-core/internal/coordinator"
	"advisor-core/internal/events"
)

// Server wraps grpc-go's health implementation.
type Server struct {
	hs     *grpchealth.Server
	gs     *grpc.Server
	logger *zap.Logger
}

// New seeds one service per provider from its current breaker state.
func New(providers []coordinator.ProviderStatus, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	for _, p := range providers {
		hs.SetServingStatus(p.Name, status(p.Enabled))
	}
	s := &Server{hs: hs, gs: grpc.NewServer(), logger: logger}
	s.Register(s.gs)
	return s
}

func status(enabled bool) healthpb.HealthCheckResponse_ServingStatus {
	if enabled {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Check answers a health query without going through the network.
func (s *Server) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	res, err := s.hs.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return res.GetStatus(), nil
}

// Watch marks providers NOT_SERVING as their trip events arrive, until ctx ends.
func (s *Server) Watch(ctx context.Context, bus *events.Bus) {
	if bus == nil {
		return
	}
	trips, unsub := bus.Subscribe(events.EventProviderTripped, 8)
	go func() {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-trips:
				if !ok {
					return
				}
				trip, ok := msg.(events.ProviderTripped)
				if !ok {
					continue
				}
				s.hs.SetServingStatus(trip.Provider, healthpb.HealthCheckResponse_NOT_SERVING)
				s.logger.Warn("[HEALTH] provider not serving", zap.String("provider", trip.Provider), zap.String("reason", trip.Reason))
			}
		}
	}()
}

// Register attaches the health service to another gRPC server as well.
func (s *Server) Register(gs *grpc.Server) {
	healthpb.RegisterHealthServer(gs, s.hs)
}

// Serve runs the dedicated gRPC server on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	return s.gs.Serve(lis)
}

// Stop flips every service to NOT_SERVING and drains the gRPC server.
func (s *Server) Stop() {
	s.hs.Shutdown()
	s.gs.GracefulStop()
}
