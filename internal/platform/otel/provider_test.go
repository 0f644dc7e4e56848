package otel

import (
	"context"
	"os"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		active  bool
		ratio   float64
		wantErr bool
	}{
		{name: "no endpoint", env: map[string]string{}, active: false, ratio: 1},
		{name: "endpoint", env: map[string]string{"SHEETPHRASE_OTEL_ENDPOINT": "http://192.0.2.1:4318"}, active: true, ratio: 1},
		{
			name:   "disabled",
			env:    map[string]string{"SHEETPHRASE_OTEL_ENDPOINT": "http://192.0.2.1:4318", "SHEETPHRASE_OTEL_ENABLED": "false"},
			active: false,
			ratio:  1,
		},
		{
			name:   "sampled",
			env:    map[string]string{"SHEETPHRASE_OTEL_ENDPOINT": "http://192.0.2.1:4318", "SHEETPHRASE_OTEL_SAMPLE_RATIO": "0.25"},
			active: true,
			ratio:  0.25,
		},
		{name: "ratio out of range", env: map[string]string{"SHEETPHRASE_OTEL_SAMPLE_RATIO": "2"}, wantErr: true},
		{name: "bad bool", env: map[string]string{"SHEETPHRASE_OTEL_ENABLED": "maybe"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"SHEETPHRASE_OTEL_ENDPOINT", "SHEETPHRASE_OTEL_ENABLED", "SHEETPHRASE_OTEL_SAMPLE_RATIO"} {
				value, ok := tt.env[key]
				t.Setenv(key, value)
				if !ok {
					os.Unsetenv(key)
				}
			}
			cfg, err := LoadConfig()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("load config: %v", err)
			}
			if cfg.Active() != tt.active || cfg.SampleRatio != tt.ratio {
				t.Fatalf("config = %+v, want active=%v ratio=%v", cfg, tt.active, tt.ratio)
			}
		})
	}
}

func TestSetupInactiveIsNoop(t *testing.T) {
	shutdown, err := SetupWithConfig(context.Background(), "sheetphrase-test", Config{Enabled: true})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := shutdown(ctx); err != nil {
		t.Fatalf("noop shutdown: %v", err)
	}
}

func TestSetupWithEndpointFlushes(t *testing.T) {
	// 192.0.2.0/24 is reserved for documentation; nothing is exported.
	cfg := Config{Endpoint: "http://192.0.2.1:4318", Enabled: true, SampleRatio: 1}
	shutdown, err := SetupWithConfig(context.Background(), "sheetphrase-test", cfg)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetupRejectsBadEnv(t *testing.T) {
	t.Setenv("SHEETPHRASE_OTEL_SAMPLE_RATIO", "-1")
	if _, err := Setup(context.Background(), "sheetphrase-test"); err == nil {
		t.Fatal("expected error")
	}
}
