// Package mcp configures the MCP adapter that fronts a running phrase server.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/sheetphrase/internal/platform/cmd"
	phrasemcp "github.com/louisbranch/sheetphrase/internal/services/phrase/mcp"
)

// Config holds MCP command configuration.
type Config struct {
	Addr      string `env:"SHEETPHRASE_ADDR"          envDefault:"localhost:8090"`
	HTTPAddr  string `env:"SHEETPHRASE_MCP_HTTP_ADDR" envDefault:"localhost:8091"`
	Transport string `env:"SHEETPHRASE_MCP_TRANSPORT" envDefault:"stdio"`
}

// ParseConfig reads the environment, then lets flags override it. The
// transport is normalized to lower case and must be stdio or http.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "phrase gRPC server address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "listen address for the http transport")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "MCP transport: stdio or http")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	cfg.Transport = strings.ToLower(strings.TrimSpace(cfg.Transport))
	switch cfg.Transport {
	case phrasemcp.TransportStdio, phrasemcp.TransportHTTP:
	default:
		return Config{}, fmt.Errorf("transport must be %s or %s, got %q", phrasemcp.TransportStdio, phrasemcp.TransportHTTP, cfg.Transport)
	}
	return cfg, nil
}

// Run serves MCP until ctx is done.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMCP, func(ctx context.Context) error {
		return phrasemcp.Run(ctx, cfg.Addr, cfg.HTTPAddr, cfg.Transport)
	})
}
