package mcp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	platformgrpc "github.com/louisbranch/sheetphrase/internal/platform/grpc"
	"github.com/louisbranch/sheetphrase/internal/platform/timeouts"
	phrasegrpc "github.com/louisbranch/sheetphrase/internal/services/phrase/api/grpc/phrase"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "sheetphrase"
	serverVersion = "0.1.0"

	// TransportStdio serves MCP over stdin/stdout.
	TransportStdio = "stdio"
	// TransportHTTP serves MCP over streamable HTTP.
	TransportHTTP = "http"
)

// NewServer creates an MCP server with the phrase tools registered.
func NewServer(client phrasegrpc.PhraseServiceClient) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	mcp.AddTool(server, ComputePhraseTool(), ComputePhraseHandler(client))
	mcp.AddTool(server, ResolveSheetTool(), ResolveSheetHandler(client))
	mcp.AddTool(server, RollDiceTool(), RollDiceHandler(client))
	return server
}

// Run dials the phrase service at addr and serves MCP over transport until
// ctx is canceled.
func Run(ctx context.Context, addr, httpAddr, transport string) error {
	conn, err := platformgrpc.Connect(ctx, addr, phrasegrpc.ServiceName, timeouts.PhraseDial, log.Printf)
	if err != nil {
		return fmt.Errorf("dial phrase service: %w", err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("close phrase connection: %v", err)
		}
	}()

	server := NewServer(phrasegrpc.NewPhraseServiceClient(conn))
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", TransportStdio:
		return server.Run(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		return serveHTTP(ctx, server, httpAddr)
	default:
		return fmt.Errorf("unsupported transport %q", transport)
	}
}

func serveHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return server }, nil)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("mcp server listening at %s", addr)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown mcp http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve mcp http: %w", err)
	}
}
