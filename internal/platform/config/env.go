// Package config reads SHEETPHRASE_* environment settings into command
// configs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from the process environment using its env tags.
func ParseEnv(target any) error {
	return parse(target, env.Options{})
}

// ParseEnvFrom fills target from environ instead of the process environment.
func ParseEnvFrom(target any, environ map[string]string) error {
	return parse(target, env.Options{Environment: environ})
}

func parse(target any, opts env.Options) error {
	if err := env.ParseWithOptions(target, opts); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Var documents one environment variable a config reads.
type Var struct {
	Name    string
	Default string
}

// Vars lists the environment variables target reads, in field order.
func Vars(target any) ([]Var, error) {
	params, err := env.GetFieldParams(target)
	if err != nil {
		return nil, fmt.Errorf("describe env: %w", err)
	}
	out := make([]Var, 0, len(params))
	for _, p := range params {
		out = append(out, Var{Name: p.Key, Default: p.DefaultValue})
	}
	return out, nil
}
