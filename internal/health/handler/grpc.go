// Package handler reports readiness over the standard gRPC health service and GET /healthz.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"alumni-tracker/internal/platform/httputil"
)

// ServiceName is the gRPC health service name reported alongside the overall ("") status.
const ServiceName = "alumni.v1.AlumniTracker"

const checkTimeout = 2 * time.Second

// Pinger checks that the record store is reachable (e.g. kv.Store).
type Pinger interface {
	Ping(ctx context.Context) error
}

// PolicyChecker checks that the authorization policy still evaluates.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker combines the readiness checks. Nil checks are skipped.
type Checker struct {
	pinger Pinger
	policy PolicyChecker
	logger *slog.Logger
}

// NewChecker returns a Checker. Either check may be nil.
func NewChecker(pinger Pinger, policy PolicyChecker, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{pinger: pinger, policy: policy, logger: logger}
}

// Check runs every configured check and joins their errors.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	var errs []error
	if c.pinger != nil {
		if err := c.pinger.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Report runs Check once and publishes the result on hs for both the overall and the named service.
func (c *Checker) Report(ctx context.Context, hs *health.Server) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := c.Check(ctx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		c.logger.WarnContext(ctx, "readiness check failed", "error", err)
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
	return status
}

// Run reports immediately and then every interval until ctx is done, when it marks the
// server NOT_SERVING so load balancers drain it during shutdown.
func (c *Checker) Run(ctx context.Context, hs *health.Server, interval time.Duration) {
	c.Report(ctx, hs)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			c.Report(ctx, hs)
		}
	}
}

// ServeHTTP answers GET /healthz with 200 {"status":"ok"} or 503 {"status":"unavailable"}.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		c.logger.WarnContext(r.Context(), "healthz failed", "error", err)
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
