package grpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const phraseService = "sheetphrase.phrase.v1.PhraseService"

func TestConnectServing(t *testing.T) {
	addr, _, stop := startHealthServer(t, phraseService, grpc_health_v1.HealthCheckResponse_SERVING)
	defer stop()

	conn, err := Connect(context.Background(), addr, phraseService, 2*time.Second, t.Logf)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("close conn: %v", err)
	}
}

func TestConnectTimeoutBoundsHealth(t *testing.T) {
	addr, _, stop := startHealthServer(t, phraseService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	defer stop()

	start := time.Now()
	conn, err := Connect(context.Background(), addr, phraseService, 250*time.Millisecond, nil)
	if err == nil {
		_ = conn.Close()
		t.Fatal("expected error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected timeout to bound the health wait, took %v", elapsed)
	}
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageHealth {
		t.Fatalf("expected health DialError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestConnectRejectsMissingAddress(t *testing.T) {
	_, err := Connect(context.Background(), "  ", "", time.Second, nil)
	var dialErr *DialError
	if !errors.As(err, &dialErr) || dialErr.Stage != DialStageConnect {
		t.Fatalf("expected connect DialError, got %v", err)
	}
}

func TestDialErrorFormatting(t *testing.T) {
	wrapped := &DialError{Addr: "localhost:8090", Stage: DialStageConnect, Err: fmt.Errorf("boom")}
	if !strings.Contains(wrapped.Error(), "gRPC connect error for localhost:8090") {
		t.Fatalf("unexpected error: %s", wrapped.Error())
	}
	if wrapped.Unwrap() == nil {
		t.Fatal("expected wrapped error")
	}

	var nilErr *DialError
	if nilErr.Error() == "" {
		t.Fatal("expected fallback error message")
	}
	if nilErr.Unwrap() != nil {
		t.Fatal("expected nil unwrap for nil error")
	}
}
