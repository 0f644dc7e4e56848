// Package server hosts the phrase gRPC API over its SQLite store.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/sheetphrase/internal/platform/timeouts"
	phraseservice "github.com/louisbranch/sheetphrase/internal/services/phrase/api/grpc/phrase"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/script"
	phrasesqlite "github.com/louisbranch/sheetphrase/internal/services/phrase/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultDBPath is used when Config.DBPath is blank.
var DefaultDBPath = filepath.Join("data", "sheetphrase.db")

// Config holds the phrase server settings.
type Config struct {
	Addr   string
	DBPath string
	// ScriptsEnabled allows %{...}% blocks to run author-supplied Lua.
	ScriptsEnabled bool
	Locale         string
	// StopTimeout bounds the graceful stop; zero means timeouts.Shutdown.
	StopTimeout time.Duration
}

// Server owns the listener, the gRPC server and the store it serves.
type Server struct {
	listener    net.Listener
	grpcServer  *grpc.Server
	health      *health.Server
	store       *phrasesqlite.Store
	stopTimeout time.Duration
	closeOnce   sync.Once
}

// New opens the store, listens on cfg.Addr and registers the phrase and
// health services. Nothing is served until Serve.
func New(cfg Config) (*Server, error) {
	dbPath := strings.TrimSpace(cfg.DBPath)
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	store, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	var scripts engine.ScriptRunner
	if cfg.ScriptsEnabled {
		scripts = script.New()
		log.Printf("script blocks enabled")
	}

	logger := log.Default()
	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			recoverInterceptor(logger),
			callLogInterceptor(logger),
		),
	)
	phraseservice.RegisterPhraseServiceServer(grpcServer, phraseservice.NewService(store, scripts, cfg.Locale))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	for _, name := range []string{"", phraseservice.ServiceName} {
		healthServer.SetServingStatus(name, grpc_health_v1.HealthCheckResponse_SERVING)
	}

	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = timeouts.Shutdown
	}
	return &Server{
		listener:    listener,
		grpcServer:  grpcServer,
		health:      healthServer,
		store:       store,
		stopTimeout: stopTimeout,
	}, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates a server from cfg and serves it until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve blocks until ctx is done or the gRPC server fails, then releases
// every resource. Cancellation is a clean exit.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	defer s.Close()

	log.Printf("phrase server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() { serveErr <- s.grpcServer.Serve(s.listener) }()

	var err error
	select {
	case <-ctx.Done():
		s.stop()
		err = <-serveErr
	case err = <-serveErr:
	}
	if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}
	return nil
}

// stop reports NOT_SERVING, drains in-flight calls for up to stopTimeout and
// then cuts the rest off.
func (s *Server) stop() {
	s.health.Shutdown()
	drained := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(s.stopTimeout):
		log.Printf("graceful stop exceeded %s; forcing", s.stopTimeout)
		s.grpcServer.Stop()
		<-drained
	}
}

// Close releases the server's resources. It is safe to call more than once.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.health != nil {
			s.health.Shutdown()
		}
		if s.grpcServer != nil {
			s.grpcServer.Stop()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.store != nil {
			if err := s.store.Close(); err != nil {
				log.Printf("close phrase store: %v", err)
			}
		}
	})
}

func openStore(path string) (*phrasesqlite.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	store, err := phrasesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phrase store: %w", err)
	}
	return store, nil
}
