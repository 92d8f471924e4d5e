// Package grpcapi exposes the gRPC health service for the voice turn service.
package grpcapi

import (
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"voice-turn-service/internal/observability"
	"voice-turn-service/internal/observability/metrics"
)

// TurnServiceName is the health check service name for turn processing.
const TurnServiceName = "voice.turn.TurnService"

// Server wraps a gRPC server carrying health checks and reflection.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
}

// New creates the gRPC server. Both the overall and the turn service status
// start as NOT_SERVING.
func New(m *metrics.Metrics) *Server {
	g := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(m)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(m)),
	)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(g, hs)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(g)

	s := &Server{grpc: g, health: hs}
	s.SetServing(false)
	return s
}

// SetServing updates the health status of the server and the turn service.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(TurnServiceName, status)
}

// Listen binds port and serves in a goroutine.
func (s *Server) Listen(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go s.Serve(lis)
	return nil
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) {
	log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health server started")
	if err := s.grpc.Serve(lis); err != nil {
		log.Error().Err(err).Msg("gRPC serve failed")
	}
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
