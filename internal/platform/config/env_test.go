package config

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type envTestConfig struct {
	Addr    string `env:"SHEETPHRASE_TEST_ADDR" envDefault:"localhost:8090"`
	Scripts bool   `env:"SHEETPHRASE_TEST_SCRIPTS"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "localhost:8090" || cfg.Scripts {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestParseEnvFrom(t *testing.T) {
	var cfg envTestConfig
	err := ParseEnvFrom(&cfg, map[string]string{
		"SHEETPHRASE_TEST_ADDR":    "0.0.0.0:9000",
		"SHEETPHRASE_TEST_SCRIPTS": "true",
	})
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if diff := cmp.Diff(envTestConfig{Addr: "0.0.0.0:9000", Scripts: true}, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("SHEETPHRASE_TEST_SCRIPTS", "sometimes")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestVars(t *testing.T) {
	got, err := Vars(&envTestConfig{})
	if err != nil {
		t.Fatalf("vars: %v", err)
	}
	want := []Var{
		{Name: "SHEETPHRASE_TEST_ADDR", Default: "localhost:8090"},
		{Name: "SHEETPHRASE_TEST_SCRIPTS"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("vars mismatch (-want +got):\n%s", diff)
	}
	if _, err := Vars(envTestConfig{}); err == nil {
		t.Fatal("expected error for non-pointer")
	}
}
