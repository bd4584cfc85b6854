package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// RegisterServices registers the gRPC services with s.
//
//   - grpc.health.v1.Health → google.golang.org/grpc/health, kept in sync by internal/health/handler
func RegisterServices(s grpc.ServiceRegistrar, hs healthpb.HealthServer) {
	healthpb.RegisterHealthServer(s, hs)
}

// NewGRPCServer returns a server with otelgrpc instrumentation and the health service registered.
// Reflection is enabled when withReflection is set (non-production).
func NewGRPCServer(hs healthpb.HealthServer, withReflection bool, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, hs)
	if withReflection {
		reflection.Register(s)
	}
	return s
}
