// Command mcp exposes a running phrase server as MCP tools.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpcmd "github.com/louisbranch/sheetphrase/internal/cmd/mcp"
	"github.com/louisbranch/sheetphrase/internal/platform/config"
)

func main() {
	// stdout carries the stdio transport; logs stay on stderr.
	log.SetOutput(os.Stderr)
	log.SetPrefix("[MCP] ")

	cfg, err := mcpcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exit(config.UsageError{Err: err})
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcpcmd.Run(ctx, cfg); err != nil {
		stop()
		config.Exit(err)
	}
}
