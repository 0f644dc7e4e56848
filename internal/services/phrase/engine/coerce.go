package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Coerce applies the numeric coercion policy to a value read from outside
// the expression: booleans pass through, strings that parse fully as a number
// become that number, integers are widened to int (float64 when int cannot
// hold them) and everything else is returned unchanged.
func Coerce(value any) any {
	switch v := value.(type) {
	case bool, int, float64:
		return v
	case string:
		if n, ok := parseNumber(v); ok {
			return n
		}
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		if v < math.MinInt || v > math.MaxInt {
			return float64(v)
		}
		return int(v)
	case uint:
		return widenUnsigned(uint64(v))
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return widenUnsigned(uint64(v))
	case uint64:
		return widenUnsigned(v)
	case float32:
		return float64(v)
	default:
		return value
	}
}

// widenUnsigned keeps values past math.MaxInt as float64 instead of
// wrapping them negative.
func widenUnsigned(v uint64) any {
	if v > math.MaxInt {
		return float64(v)
	}
	return int(v)
}

func parseNumber(raw string) (any, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, false
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return nil, false
	}
	return f, true
}

// toFloat reports the numeric value of v after coercion.
func toFloat(v any) (float64, bool) {
	switch n := Coerce(v).(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// CoercionPolicy decides what a reference resolves to once it has been
// looked up.
type CoercionPolicy struct {
	// Default replaces missing values. Nil means no default.
	Default any
	// MustResolve holds references that raise an UnresolvableError when they
	// have no value and no default applies.
	MustResolve map[string]struct{}
}

// Apply resolves key given the looked-up value. A present, non-nil value is
// coerced. A missing one falls back to the per-call fallback, then to the
// policy default; without either, keys in MustResolve fail and any other key
// resolves to nil.
func (p CoercionPolicy) Apply(key string, value any, present bool, fallback ...any) (any, error) {
	if present && value != nil {
		return Coerce(value), nil
	}
	if len(fallback) > 0 && fallback[0] != nil {
		return Coerce(fallback[0]), nil
	}
	if p.Default != nil {
		return Coerce(p.Default), nil
	}
	if p.mustResolve(key) {
		return nil, &UnresolvableError{Token: key}
	}
	return nil, nil
}

func (p CoercionPolicy) mustResolve(key string) bool {
	if len(p.MustResolve) == 0 {
		return false
	}
	if _, ok := p.MustResolve[key]; ok {
		return true
	}
	root, _, found := strings.Cut(key, ".")
	if !found {
		return false
	}
	_, ok := p.MustResolve[root]
	return ok
}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// FormatValue renders a computed value for display inside a phrase.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return formatFloat(v)
	case float32:
		return formatFloat(float64(v))
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, FormatValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		if n, ok := toFloat(v); ok {
			return formatFloat(n)
		}
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
