// Command phrase serves phrase computation over gRPC.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	phrasecmd "github.com/louisbranch/sheetphrase/internal/cmd/phrase"
	"github.com/louisbranch/sheetphrase/internal/platform/config"
)

func main() {
	log.SetPrefix("[PHRASE] ")
	cfg, err := phrasecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exit(config.UsageError{Err: err})
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := phrasecmd.Run(ctx, cfg); err != nil {
		stop()
		config.Exit(err)
	}
}
