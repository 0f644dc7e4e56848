package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/louisbranch/sheetphrase/internal/platform/timeouts"
	gogrpc "google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	initialHealthBackoff = 100 * time.Millisecond
	maxHealthBackoff     = time.Second
)

// WaitForHealth polls the health service until service reports SERVING or
// ctx ends. Probes back off exponentially up to one second apart.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if logf == nil {
		logf = func(string, ...any) {}
	}

	client := grpc_health_v1.NewHealthClient(conn)
	backoff := initialHealthBackoff
	for attempt := 1; ; attempt++ {
		probeCtx, cancel := context.WithTimeout(ctx, timeouts.HealthProbe)
		resp, err := client.Check(probeCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		switch {
		case err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING:
			logf("%s health is SERVING after %d attempts", healthName(service), attempt)
			return nil
		case err != nil:
			logf("waiting for %s health: %v", healthName(service), err)
		default:
			logf("waiting for %s health: status %s", healthName(service), resp.GetStatus())
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for %s health: %w", healthName(service), ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxHealthBackoff)
	}
}

func healthName(service string) string {
	if service == "" {
		return "server"
	}
	return service
}
