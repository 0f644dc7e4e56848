package mcp

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "localhost:8090" {
		t.Fatalf("expected default addr, got %q", cfg.Addr)
	}
	if cfg.HTTPAddr != "localhost:8091" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("SHEETPHRASE_ADDR", "env-phrase")
	t.Setenv("SHEETPHRASE_MCP_HTTP_ADDR", "env-http")
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-addr", "flag-phrase", "-transport", "http"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Addr != "flag-phrase" {
		t.Fatalf("expected flag addr, got %q", cfg.Addr)
	}
	if cfg.HTTPAddr != "env-http" {
		t.Fatalf("expected env http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected transport http, got %q", cfg.Transport)
	}
}

func TestParseConfigTransport(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: " HTTP ", want: "http"},
		{raw: "Stdio", want: "stdio"},
		{raw: "grpc", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
		cfg, err := ParseConfig(fs, []string{"-transport", tt.raw})
		if tt.wantErr {
			if err == nil {
				t.Fatalf("transport %q: expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("transport %q: %v", tt.raw, err)
		}
		if cfg.Transport != tt.want {
			t.Fatalf("transport %q = %q, want %q", tt.raw, cfg.Transport, tt.want)
		}
	}
}
