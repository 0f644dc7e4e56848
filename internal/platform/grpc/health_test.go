package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestWaitForHealthTransitionsToServing(t *testing.T) {
	addr, setStatus, stop := startHealthServer(t, phraseService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	defer stop()

	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer conn.Close()

	go func() {
		time.Sleep(200 * time.Millisecond)
		setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var lines []string
	logf := func(format string, _ ...any) { lines = append(lines, format) }
	if err := WaitForHealth(ctx, conn, phraseService, logf); err != nil {
		t.Fatalf("wait for health after transition: %v", err)
	}
	if len(lines) < 2 {
		t.Fatalf("expected waiting and serving log lines, got %v", lines)
	}
}

func TestWaitForHealthUnknownService(t *testing.T) {
	addr, _, stop := startHealthServer(t, phraseService, grpc_health_v1.HealthCheckResponse_SERVING)
	defer stop()

	conn, err := gogrpc.NewClient(addr, ClientOptions()...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := WaitForHealth(ctx, conn, "other.Service", nil); err == nil {
		t.Fatal("expected unknown service to time out")
	}
}

func TestWaitForHealthRequiresConnection(t *testing.T) {
	if err := WaitForHealth(context.Background(), nil, "", nil); err == nil {
		t.Fatal("expected error")
	}
}

func startHealthServer(t *testing.T, service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) (string, func(grpc_health_v1.HealthCheckResponse_ServingStatus), func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	grpcServer := gogrpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(service, status)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()

	setStatus := func(next grpc_health_v1.HealthCheckResponse_ServingStatus) {
		healthServer.SetServingStatus(service, next)
	}
	stop := func() {
		grpcServer.GracefulStop()
		_ = listener.Close()
		select {
		case <-serveErr:
		case <-time.After(2 * time.Second):
		}
	}
	return listener.Addr().String(), setStatus, stop
}
