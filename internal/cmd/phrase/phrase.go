// Package phrase parses phrase command flags and starts the phrase runtime.
package phrase

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/sheetphrase/internal/platform/cmd"
	server "github.com/louisbranch/sheetphrase/internal/services/phrase/app"
)

// Config holds phrase command configuration.
type Config struct {
	Addr           string `env:"SHEETPHRASE_ADDR"            envDefault:"localhost:8090"`
	DBPath         string `env:"SHEETPHRASE_DB_PATH"         envDefault:"data/sheetphrase.db"`
	ScriptsEnabled bool   `env:"SHEETPHRASE_SCRIPTS_ENABLED" envDefault:"false"`
	Locale         string `env:"SHEETPHRASE_LOCALE"          envDefault:"en-US"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The phrase server listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the phrase sqlite database")
	fs.BoolVar(&cfg.ScriptsEnabled, "scripts", cfg.ScriptsEnabled, "Allow %{...}% script blocks")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "Default locale for warnings and errors")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the phrase API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePhrase, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Addr:           cfg.Addr,
			DBPath:         cfg.DBPath,
			ScriptsEnabled: cfg.ScriptsEnabled,
			Locale:         cfg.Locale,
		})
	})
}
