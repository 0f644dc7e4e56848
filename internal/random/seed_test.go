package random

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/iotest"
)

func withEntropy(t *testing.T, r io.Reader) {
	t.Helper()
	prev := entropy
	entropy = r
	t.Cleanup(func() { entropy = prev })
}

func TestResolveSeedKeepsRequested(t *testing.T) {
	requested := int64(-1234)
	got, err := ResolveSeed(&requested)
	if err != nil {
		t.Fatalf("ResolveSeed() error = %v", err)
	}
	if got != requested {
		t.Fatalf("ResolveSeed() = %d, want %d", got, requested)
	}
}

func TestNewSeedClearsSignBit(t *testing.T) {
	withEntropy(t, bytes.NewReader(bytes.Repeat([]byte{0xff}, 8)))
	got, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed() error = %v", err)
	}
	if got != 1<<63-1 {
		t.Fatalf("NewSeed() = %d, want max int64", got)
	}
}

func TestNewSeedEntropyFailure(t *testing.T) {
	withEntropy(t, iotest.ErrReader(errors.New("no entropy")))
	if _, err := ResolveSeed(nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestResolveSeedGeneratesFresh(t *testing.T) {
	seen := map[int64]bool{}
	for i := 0; i < 4; i++ {
		seed, err := ResolveSeed(nil)
		if err != nil {
			t.Fatalf("ResolveSeed() error = %v", err)
		}
		if seed < 0 {
			t.Fatalf("seed %d is negative", seed)
		}
		seen[seed] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected distinct seeds, got %v", seen)
	}
}

func TestParseSeed(t *testing.T) {
	if got, err := ParseSeed("  "); err != nil || got != nil {
		t.Fatalf("ParseSeed(blank) = %v, %v", got, err)
	}
	got, err := ParseSeed(" 42 ")
	if err != nil || got == nil || *got != 42 {
		t.Fatalf("ParseSeed(42) = %v, %v", got, err)
	}
	if _, err := ParseSeed("4d6"); err == nil {
		t.Fatal("expected error for non-integer seed")
	}
}
