// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package server

import (
	"context"
	"fmt"
	"net"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/AccelByte/extend-guided-progression/pkg/common"
	progressionv1 "github.com/AccelByte/extend-guided-progression/pkg/pb/progression/v1"
)

// GRPCServer manages the gRPC server lifecycle.
type GRPCServer struct {
	server  *grpc.Server
	port    int
	service progressionv1.ProgressionServiceServer
	health  *health.Server
}

// NewGRPCServer creates a new gRPC server instance serving service.
func NewGRPCServer(port int, service progressionv1.ProgressionServiceServer) *GRPCServer {
	return &GRPCServer{
		port:    port,
		service: service,
	}
}

// Setup configures the server with interceptors and registers the
// progression service, reflection and health checks.
func (s *GRPCServer) Setup() error {
	logger := common.InterceptorLogger(logrus.StandardLogger())

	s.server = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(logging.UnaryServerInterceptor(logger)),
		grpc.ChainStreamInterceptor(logging.StreamServerInterceptor(logger)),
	)

	progressionv1.RegisterProgressionServiceServer(s.server, s.service)
	logrus.Infof("registered service %s", progressionv1.ServiceName)

	reflection.Register(s.server)
	s.health = health.NewServer()
	s.health.SetServingStatus(progressionv1.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(s.server, s.health)

	logrus.Infof("gRPC reflection and health check enabled")

	return nil
}

// Start begins listening on the configured port.
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}

	go func() {
		logrus.Infof("gRPC server listening on port %d", s.port)
		if err := s.server.Serve(lis); err != nil {
			logrus.Fatalf("gRPC server failed: %v", err)
		}
	}()

	return nil
}

// Shutdown marks the service not serving and drains in-flight calls.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	logrus.Info("shutting down gRPC server...")
	if s.health != nil {
		s.health.Shutdown()
	}
	s.server.GracefulStop()
	logrus.Info("gRPC server stopped")
	return nil
}
