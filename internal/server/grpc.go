// Package server assembles the HTTP router and the gRPC health endpoint.
package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewGRPCServer returns a gRPC server instrumented with OpenTelemetry and the given
// health server registered on it.
func NewGRPCServer(hs *health.Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{grpc.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpc.NewServer(opts...)
	RegisterServices(s, hs)
	return s
}

// RegisterServices registers the gRPC services with s. A nil health server is skipped.
func RegisterServices(s grpc.ServiceRegistrar, hs *health.Server) {
	if hs != nil {
		healthpb.RegisterHealthServer(s, hs)
	}
}
