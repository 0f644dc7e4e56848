// Package cmd holds the startup steps every sheetphrase binary shares:
// environment config, flag overrides and tracing around the run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/louisbranch/sheetphrase/internal/platform/config"
	"github.com/louisbranch/sheetphrase/internal/platform/otel"
	"github.com/louisbranch/sheetphrase/internal/platform/timeouts"
)

// Service names, reported as the trace service.name.
const (
	ServicePhrase    = "sheetphrase-phrase"
	ServiceMCP       = "sheetphrase-mcp"
	ServiceSheetcalc = "sheetphrase-sheetcalc"
)

// ParseConfig fills cfg from SHEETPHRASE_* variables.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs applies command-line overrides on top of the environment.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag set is required")
	}
	return fs.Parse(append([]string{}, args...))
}

// RunWithTelemetry runs fn with tracing configured for service. Spans are
// flushed once fn returns; a flush failure is joined to fn's error.
func RunWithTelemetry(ctx context.Context, service string, fn func(context.Context) error) (err error) {
	service = strings.TrimSpace(service)
	switch {
	case service == "":
		return errors.New("service name is required")
	case fn == nil:
		return errors.New("run function is required")
	}

	flush, err := otel.Setup(ctx, service)
	if err != nil {
		return fmt.Errorf("%s: tracing: %w", service, err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Shutdown)
		defer cancel()
		if flushErr := flush(flushCtx); flushErr != nil {
			err = errors.Join(err, fmt.Errorf("%s: flush traces: %w", service, flushErr))
		}
	}()
	return fn(ctx)
}
