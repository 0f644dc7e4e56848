package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: 0},
		{name: "help", err: fmt.Errorf("parse: %w", flag.ErrHelp), want: 0},
		{name: "usage", err: fmt.Errorf("compute: %w", UsageError{Err: errors.New("bad seed")}), want: 2},
		{name: "failure", err: errors.New("boom"), want: 1},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Fatalf("%s: ExitCode() = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	if code := report(&buf, "sheetcalc", errors.New("sheet not found")); code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if buf.String() != "sheetcalc: sheet not found\n" {
		t.Fatalf("output = %q", buf.String())
	}

	buf.Reset()
	if code := report(&buf, "sheetcalc", nil); code != 0 || buf.Len() != 0 {
		t.Fatalf("nil error reported %q with code %d", buf.String(), code)
	}
}

// os.Exit cannot be intercepted in-process, so the child re-runs this test.
func TestExitTerminatesProcess(t *testing.T) {
	if os.Getenv("SHEETPHRASE_EXIT_SUBPROCESS") == "1" {
		Exit(errors.New("something broke"))
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitTerminatesProcess$")
	cmd.Env = append(os.Environ(), "SHEETPHRASE_EXIT_SUBPROCESS=1")
	out, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != 1 {
		t.Fatalf("exit code = %d, want 1", exitErr.ExitCode())
	}
	if !strings.Contains(string(out), ": something broke") {
		t.Fatalf("output %q missing error", out)
	}
}
