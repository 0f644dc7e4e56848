// Package sheetcalc implements the operator CLI that computes phrases and
// resolves sheets locally, without a running phrase server.
package sheetcalc

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	entrypoint "github.com/louisbranch/sheetphrase/internal/platform/cmd"
	"github.com/louisbranch/sheetphrase/internal/platform/config"
	"github.com/louisbranch/sheetphrase/internal/platform/i18n/catalog"
	"github.com/louisbranch/sheetphrase/internal/random"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/dice"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/script"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/session"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/sheet"
	"github.com/spf13/cobra"
)

// Config holds sheetcalc defaults read from the environment.
type Config struct {
	DBPath         string `env:"SHEETPHRASE_DB_PATH"         envDefault:"data/sheetphrase.db"`
	ScriptsEnabled bool   `env:"SHEETPHRASE_SCRIPTS_ENABLED" envDefault:"false"`
	Locale         string `env:"SHEETPHRASE_LOCALE"          envDefault:"en-US"`
}

// ParseConfig loads sheetcalc defaults from the environment.
func ParseConfig() (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the sheetcalc command line.
func Run(ctx context.Context, cfg Config, args []string) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSheetcalc, func(ctx context.Context) error {
		root := NewRootCommand(cfg)
		root.SetArgs(args)
		return root.ExecuteContext(ctx)
	})
}

// NewRootCommand builds the sheetcalc command tree.
func NewRootCommand(cfg Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "sheetcalc",
		Short:         "Compute phrases and resolve character sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return config.UsageError{Err: err}
	})
	root.PersistentFlags().StringVar(&cfg.Locale, "locale", cfg.Locale, "Locale for warnings")
	root.PersistentFlags().BoolVar(&cfg.ScriptsEnabled, "scripts", cfg.ScriptsEnabled, "Allow %{...}% script blocks")

	// Subcommands read cfg through the pointer so persistent flags apply.
	root.AddCommand(
		newComputeCommand(&cfg),
		newResolveCommand(&cfg),
		newRollCommand(&cfg),
		newImportCommand(&cfg),
		newWatchCommand(&cfg),
		newEnvCommand(),
	)
	return root
}

// seedFlag is an optional int64 flag; unset means a fresh random seed.
type seedFlag struct {
	value *int64
}

func (s *seedFlag) String() string {
	if s.value == nil {
		return ""
	}
	return strconv.FormatInt(*s.value, 10)
}

func (s *seedFlag) Set(raw string) error {
	v, err := random.ParseSeed(raw)
	if err != nil {
		return err
	}
	s.value = v
	return nil
}

func (s *seedFlag) Type() string { return "int64" }

func (s *seedFlag) resolve() (int64, error) {
	return random.ResolveSeed(s.value)
}

// answersFlag collects repeated name=value prompt answers.
type answersFlag map[string]any

func (a answersFlag) String() string {
	parts := make([]string, 0, len(a))
	for k, v := range a {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, ",")
}

func (a answersFlag) Set(raw string) error {
	name, value, ok := strings.Cut(raw, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("answer %q must be name=value", raw)
	}
	a[strings.TrimSpace(name)] = engine.Coerce(value)
	return nil
}

func (a answersFlag) Type() string { return "name=value" }

// newRuntime builds a local runtime over the sheet's tables and templates.
func newRuntime(cfg *Config, doc *sheet.Document, seed int64, notices *session.Notices) *engine.Runtime {
	rt := &engine.Runtime{
		Notifier: notices,
		Printer:  catalog.Printer(cfg.Locale),
	}
	var tables dice.TableSource
	if doc != nil {
		tables = doc.RollTables()
		rt.Templates = doc.PromptTemplates()
	}
	rt.Roller = dice.NewRoller(seed, tables)
	if cfg.ScriptsEnabled {
		rt.Scripts = script.New()
	}
	return rt
}

func newEnvCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables sheetcalc reads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars, err := config.Vars(&Config{})
			if err != nil {
				return err
			}
			for _, v := range vars {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", v.Name, v.Default)
			}
			return nil
		},
	}
}

func loadSheet(path string) (*sheet.Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	return sheet.Load(path)
}

func printNotices(w io.Writer, notices *session.Notices) {
	for _, notice := range notices.List() {
		fmt.Fprintf(w, "[%s] %s\n", notice.Severity, notice.Message)
	}
}
