package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	phraseservice "github.com/louisbranch/sheetphrase/internal/services/phrase/api/grpc/phrase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

func TestServerServesPhraseAndHealth(t *testing.T) {
	server, err := New(Config{
		Addr:   "127.0.0.1:0",
		DBPath: filepath.Join(t.TempDir(), "nested", "phrase.db"),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	conn, err := grpc.NewClient(server.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	healthResp, err := grpc_health_v1.NewHealthClient(conn).Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: phraseservice.ServiceName})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if healthResp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %s", healthResp.GetStatus())
	}

	seed := int64(3)
	req, err := phraseservice.Encode(phraseservice.ComputeRequest{Text: "${[1d1] + 2}$", Seed: &seed})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := phraseservice.NewPhraseServiceClient(conn).ComputePhrase(callCtx, req)
	if err != nil {
		t.Fatalf("compute phrase: %v", err)
	}
	var resp phraseservice.ComputeResponse
	if err := phraseservice.Decode(out, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result != "3" || resp.Seed != 3 {
		t.Fatalf("resp = %+v", resp)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewRejectsBadAddress(t *testing.T) {
	if _, err := New(Config{Addr: "bad::addr::", DBPath: filepath.Join(t.TempDir(), "phrase.db")}); err == nil {
		t.Fatal("expected listen error")
	}
}

func TestCloseNil(t *testing.T) {
	var s *Server
	s.Close()
	if s.Addr() != "" {
		t.Fatal("expected empty addr")
	}
}
