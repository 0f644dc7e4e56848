package engine

import (
	"math"
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  any
	}{
		{name: "numeric string", value: "3", want: 3},
		{name: "float string", value: "2.5", want: 2.5},
		{name: "signed string", value: "+5", want: 5},
		{name: "bool unchanged", value: true, want: true},
		{name: "text unchanged", value: "abc", want: "abc"},
		{name: "empty string unchanged", value: "", want: ""},
		{name: "int64 widened", value: int64(7), want: 7},
		{name: "uint widened", value: uint(7), want: 7},
		{name: "uint64 in range", value: uint64(math.MaxInt), want: math.MaxInt},
		{name: "uint64 past int", value: uint64(math.MaxUint64), want: float64(math.MaxUint64)},
		{name: "nil", value: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Coerce(tt.value); got != tt.want {
				t.Fatalf("Coerce(%v) = %#v, want %#v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCoercionPolicy_Apply(t *testing.T) {
	tests := []struct {
		name     string
		policy   CoercionPolicy
		key      string
		value    any
		present  bool
		fallback []any
		want     any
		wantErr  bool
	}{
		{name: "present value coerced", key: "hp", value: "3", present: true, want: 3},
		{name: "text without default stays", key: "name", value: "abc", present: true, want: "abc"},
		{name: "missing without default or must-resolve", key: "hp", want: nil},
		{
			name:   "missing must-resolve with default",
			policy: CoercionPolicy{Default: 0, MustResolve: keySet([]string{"hp"})},
			key:    "hp",
			want:   0,
		},
		{
			name:    "missing must-resolve without default",
			policy:  CoercionPolicy{MustResolve: keySet([]string{"hp"})},
			key:     "hp",
			wantErr: true,
		},
		{
			name:    "must-resolve by root segment",
			policy:  CoercionPolicy{MustResolve: keySet([]string{"stats"})},
			key:     "stats.str",
			wantErr: true,
		},
		{
			name:     "per-call fallback beats default",
			policy:   CoercionPolicy{Default: 0},
			key:      "hp",
			fallback: []any{"9"},
			want:     9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.policy.Apply(tt.key, tt.value, tt.present, tt.fallback...)
			if tt.wantErr {
				if !IsUnresolvable(err) {
					t.Fatalf("Apply() error = %v, want unresolvable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Apply() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, ""},
		{5, "5"},
		{2.0, "2"},
		{2.5, "2.5"},
		{true, "true"},
		{[]any{1, "a"}, "1, a"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.value); got != tt.want {
			t.Fatalf("FormatValue(%#v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
