package sheetcalc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/engine"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/render"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/session"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/sheet"
	"github.com/louisbranch/sheetphrase/internal/services/phrase/storage"
	phrasesqlite "github.com/louisbranch/sheetphrase/internal/services/phrase/storage/sqlite"
	"github.com/spf13/cobra"
)

func newComputeCommand(cfg *Config) *cobra.Command {
	var (
		sheetPath string
		seed      seedFlag
		answers   = answersFlag{}
		explain   bool
		html      bool
		static    bool
	)
	cmd := &cobra.Command{
		Use:   "compute <text>",
		Short: "Compute a phrase, optionally against a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := loadSheet(sheetPath)
			if err != nil {
				return err
			}
			seedValue, err := seed.resolve()
			if err != nil {
				return err
			}
			notices := &session.Notices{}
			defer printNotices(cmd.ErrOrStderr(), notices)
			rt := newRuntime(cfg, doc, seedValue, notices)
			rt.Prompter = session.NewAnswers(answers)

			props := map[string]any{}
			if doc != nil {
				resolved, err := doc.Resolve(ctx, rt, engine.Options{})
				if err != nil {
					return fmt.Errorf("resolve sheet: %w", err)
				}
				props = resolved.Props
			}

			phrase := engine.NewPhrase(args[0])
			opts := engine.Options{Explain: explain}
			if static {
				err = phrase.ComputeStatic(ctx, rt, props, opts)
			} else {
				err = phrase.Compute(ctx, rt, props, opts)
			}
			if err != nil {
				return fmt.Errorf("compute phrase: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, phrase.Result())
			for _, entry := range phrase.Formulas() {
				for _, record := range entry.Formula.Rolls() {
					fmt.Fprintf(out, "  %s %s\n", entry.ID, describeRoll(record.Roll))
				}
				if explain {
					writeTokens(out, entry.Formula.Tokens(), 1)
				}
			}
			if html {
				markup, err := render.HTML(ctx, render.Phrase(phrase))
				if err != nil {
					return fmt.Errorf("render phrase: %w", err)
				}
				fmt.Fprintln(out, markup)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "seed %d\n", seedValue)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetPath, "sheet", "", "YAML sheet whose resolved props the phrase reads")
	cmd.Flags().Var(&seed, "seed", "Seed to replay rolls")
	cmd.Flags().Var(answers, "answer", "Prompt answer as name=value (repeatable)")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print explanation trees")
	cmd.Flags().BoolVar(&html, "html", false, "Print the rendered HTML")
	cmd.Flags().BoolVar(&static, "static", false, "Fail instead of prompting or rolling")
	return cmd
}

func newResolveCommand(cfg *Config) *cobra.Command {
	var seed seedFlag
	cmd := &cobra.Command{
		Use:   "resolve <sheet>",
		Short: "Resolve every formula of a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := sheet.Load(args[0])
			if err != nil {
				return err
			}
			seedValue, err := seed.resolve()
			if err != nil {
				return err
			}
			_, err = resolveAndPrint(cmd.Context(), cfg, doc, seedValue, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return err
		},
	}
	cmd.Flags().Var(&seed, "seed", "Seed to replay rolls")
	return cmd
}

func newRollCommand(cfg *Config) *cobra.Command {
	var (
		sheetPath string
		table     string
		selector  int
		seed      seedFlag
	)
	cmd := &cobra.Command{
		Use:   "roll [notation]",
		Short: "Roll dice notation or draw from a sheet roll table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadSheet(sheetPath)
			if err != nil {
				return err
			}
			seedValue, err := seed.resolve()
			if err != nil {
				return err
			}
			notices := &session.Notices{}
			rt := newRuntime(cfg, doc, seedValue, notices)

			var roll engine.Roll
			switch {
			case table != "":
				var pick *int
				if cmd.Flags().Changed("selector") {
					pick = &selector
				}
				roll, err = rt.Roller.DrawTable(cmd.Context(), table, pick)
			case len(args) == 1:
				roll, err = rt.Roller.Roll(cmd.Context(), args[0])
			default:
				return errors.New("dice notation or --table is required")
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeRoll(roll))
			fmt.Fprintf(cmd.ErrOrStderr(), "seed %d\n", seedValue)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheetPath, "sheet", "", "YAML sheet holding roll tables")
	cmd.Flags().StringVar(&table, "table", "", "Roll table to draw from")
	cmd.Flags().IntVar(&selector, "selector", 0, "Table entry to pick without rolling")
	cmd.Flags().Var(&seed, "seed", "Seed to replay the roll")
	return cmd
}

func newImportCommand(cfg *Config) *cobra.Command {
	var (
		id   string
		seed seedFlag
	)
	cmd := &cobra.Command{
		Use:   "import <sheet>",
		Short: "Store a resolved sheet with its roll tables and prompt templates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			doc, err := sheet.Load(args[0])
			if err != nil {
				return err
			}
			seedValue, err := seed.resolve()
			if err != nil {
				return err
			}
			notices := &session.Notices{}
			defer printNotices(cmd.ErrOrStderr(), notices)
			resolved, err := doc.Resolve(ctx, newRuntime(cfg, doc, seedValue, notices), engine.Options{})
			if err != nil {
				return fmt.Errorf("resolve sheet: %w", err)
			}

			store, err := openStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				if err := store.Close(); err != nil {
					log.Printf("close phrase store: %v", err)
				}
			}()

			if id == "" {
				id = entityID(doc.Name)
			}
			if err := store.PutEntity(ctx, storage.Entity{ID: id, Name: doc.Name, Props: resolved.Props}); err != nil {
				return err
			}
			for _, table := range doc.Tables {
				if err := store.PutRollTable(ctx, table); err != nil {
					return err
				}
			}
			for _, tpl := range doc.Templates {
				if err := store.PutPromptTemplate(ctx, tpl); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s as %s (%d tables, %d templates)\n", doc.Name, id, len(doc.Tables), len(doc.Templates))
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "Path to the phrase sqlite database")
	cmd.Flags().StringVar(&id, "id", "", "Entity id (defaults to the sheet name)")
	cmd.Flags().Var(&seed, "seed", "Seed for rolls made while resolving")
	return cmd
}

func newWatchCommand(cfg *Config) *cobra.Command {
	var seed seedFlag
	cmd := &cobra.Command{
		Use:   "watch <sheet>",
		Short: "Resolve a sheet again every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchSheet(cmd.Context(), cfg, args[0], &seed, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().Var(&seed, "seed", "Seed to replay rolls on every pass")
	return cmd
}

func watchSheet(ctx context.Context, cfg *Config, path string, seed *seedFlag, out, errOut io.Writer) error {
	target, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve sheet path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	// Editors often replace the file, so the directory is watched.
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	resolve := func() {
		doc, err := sheet.Load(target)
		if err != nil {
			fmt.Fprintf(errOut, "load %s: %v\n", path, err)
			return
		}
		seedValue, err := seed.resolve()
		if err != nil {
			fmt.Fprintf(errOut, "seed: %v\n", err)
			return
		}
		if _, err := resolveAndPrint(ctx, cfg, doc, seedValue, out, errOut); err != nil {
			fmt.Fprintf(errOut, "resolve %s: %v\n", path, err)
		}
	}
	resolve()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			resolve()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch %s: %v", path, err)
		}
	}
}

func resolveAndPrint(ctx context.Context, cfg *Config, doc *sheet.Document, seed int64, out, errOut io.Writer) (sheet.Resolution, error) {
	notices := &session.Notices{}
	defer printNotices(errOut, notices)
	resolved, err := doc.Resolve(ctx, newRuntime(cfg, doc, seed, notices), engine.Options{})
	if err != nil {
		return sheet.Resolution{}, err
	}

	fmt.Fprintf(out, "%s (%d passes)\n", doc.Name, resolved.Passes)
	keys := make([]string, 0, len(resolved.Resolved))
	for key := range resolved.Resolved {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(out, "  %s = %s\n", key, engine.FormatValue(resolved.Resolved[key]))
	}
	if len(resolved.Stuck) > 0 {
		fmt.Fprintf(out, "stuck: %s\n", strings.Join(resolved.Stuck, ", "))
	}
	failed := make([]string, 0, len(resolved.Failed))
	for key := range resolved.Failed {
		failed = append(failed, key)
	}
	sort.Strings(failed)
	for _, key := range failed {
		fmt.Fprintf(out, "failed: %s: %v\n", key, resolved.Failed[key])
	}
	return resolved, nil
}

func describeRoll(roll engine.Roll) string {
	if len(roll.Entries) > 0 {
		return fmt.Sprintf("%s -> %s", roll.Formula, strings.Join(roll.Entries, ", "))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s = %s", roll.Formula, engine.FormatValue(roll.Total))
	for _, die := range roll.Dice {
		fmt.Fprintf(&b, " d%d%v", die.Sides, die.Results)
	}
	return b.String()
}

func writeTokens(w io.Writer, tokens []engine.Token, depth int) {
	indent := strings.Repeat("  ", depth+1)
	for _, token := range tokens {
		label := token.Display
		if token.Handle != "" && token.Handle != token.Display {
			label = fmt.Sprintf("%s (%s)", token.Display, token.Handle)
		}
		fmt.Fprintf(w, "%s%s = %s\n", indent, label, engine.FormatValue(token.Value))
		writeTokens(w, token.Children, depth+1)
	}
}

func openStore(path string) (*phrasesqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := phrasesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open phrase sqlite store: %w", err)
	}
	return store, nil
}

func entityID(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	if len(fields) == 0 {
		return "entity"
	}
	return strings.Join(fields, "-")
}
