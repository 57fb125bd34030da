// Package server builds the gRPC server that exposes the standard health service.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"voicetrust/backend/internal/server/interceptors"
)

// NewGRPCServer returns a gRPC server with otelgrpc instrumentation, request logging and the
// grpc.health.v1 service registered. The returned health server is updated by the caller
// (see health.Checker.Watch).
func NewGRPCServer(log *zap.Logger, enableReflection bool) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.RecoverUnary(log),
			interceptors.LoggingUnary(log, map[string]bool{healthpb.Health_Check_FullMethodName: true}),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if enableReflection {
		reflection.Register(srv)
	}
	return srv, hs
}
