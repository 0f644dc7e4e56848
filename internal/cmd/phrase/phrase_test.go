package phrase

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("phrase", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8090" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.DBPath != "data/sheetphrase.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.ScriptsEnabled {
		t.Fatal("expected scripts disabled by default")
	}
	if cfg.Locale != "en-US" {
		t.Fatalf("expected default locale, got %q", cfg.Locale)
	}
}

func TestParseConfigEnv(t *testing.T) {
	t.Setenv("SHEETPHRASE_SCRIPTS_ENABLED", "true")
	t.Setenv("SHEETPHRASE_LOCALE", "pt-BR")
	fs := flag.NewFlagSet("phrase", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if !cfg.ScriptsEnabled || cfg.Locale != "pt-BR" {
		t.Fatalf("expected env overrides, got %+v", cfg)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("SHEETPHRASE_ADDR", "env:1")
	fs := flag.NewFlagSet("phrase", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "127.0.0.1:9999", "-db", "/tmp/p.db", "-scripts"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9999" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
	if cfg.DBPath != "/tmp/p.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
	if !cfg.ScriptsEnabled {
		t.Fatal("expected scripts flag to enable scripts")
	}
}

func TestParseConfigRejectsUnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("phrase", flag.ContinueOnError)
	fs.SetOutput(discard{})
	if _, err := ParseConfig(fs, []string{"-nope"}); err == nil {
		t.Fatal("expected error")
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
