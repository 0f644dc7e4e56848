package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	sheetcalccmd "github.com/louisbranch/sheetphrase/internal/cmd/sheetcalc"
	"github.com/louisbranch/sheetphrase/internal/platform/config"
)

func main() {
	cfg, err := sheetcalccmd.ParseConfig()
	if err != nil {
		config.Exit(fmt.Errorf("parse config: %w", err))
	}
	log.SetPrefix("[SHEETCALC] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sheetcalccmd.Run(ctx, cfg, os.Args[1:]); err != nil {
		stop()
		config.Exit(err)
	}
}
