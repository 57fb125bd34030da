// Package health reports readiness from the database and the policy engine, for both the
// HTTP /readyz check and the standard gRPC health service.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA evaluator.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// ErrNotReady wraps every readiness failure.
var ErrNotReady = errors.New("not ready")

// Checker runs readiness checks. Nil dependencies are skipped.
type Checker struct {
	DB     Pinger
	Policy PolicyChecker
	// Timeout bounds each Check; default 2s.
	Timeout time.Duration
}

// Check returns nil when every configured dependency is healthy.
func (c *Checker) Check(ctx context.Context) error {
	if c == nil {
		return nil
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if c.DB != nil {
		if err := c.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("%w: database: %v", ErrNotReady, err)
		}
	}
	if c.Policy != nil {
		if err := c.Policy.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%w: policy engine: %v", ErrNotReady, err)
		}
	}
	return nil
}

// Watch re-runs Check every interval and publishes the result as the overall ("") serving
// status of srv until ctx is done.
func (c *Checker) Watch(ctx context.Context, srv *health.Server, interval time.Duration, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	last := healthpb.HealthCheckResponse_UNKNOWN
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := c.Check(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if last != status {
				log.Warn("health: not serving", zap.Error(err))
			}
		}
		last = status
		srv.SetServingStatus("", status)
	}
	update()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
